package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/protein-representatives/pkg/output"
	"github.com/gilchrisn/protein-representatives/pkg/representative"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "results", "protrep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.BeginRun(ctx, Run{ID: id, Mode: "subclusters", Strategy: "signed", Config: "kmeans:\n  k: 3\n", StartedAt: started}))
	require.NoError(t, s.FinishRun(ctx, id, started.Add(time.Minute), 4, 1))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "subclusters", run.Mode)
	assert.Equal(t, "signed", run.Strategy)
	assert.Equal(t, 4, run.Clusters)
	assert.Equal(t, 1, run.Failures)
	assert.True(t, run.StartedAt.Equal(started))
	assert.True(t, run.FinishedAt.Equal(started.Add(time.Minute)))

	assert.Error(t, s.FinishRun(ctx, "unknown", started, 0, 0))
}

func TestSaveSelections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, s.BeginRun(ctx, Run{ID: id, Mode: "subclusters", StartedAt: time.Now()}))

	sels := []representative.Selection{
		{
			Cluster: "LC00", SubCluster: "KC0", Strategy: "signed",
			Centroid: representative.Valid(0.5),
			Picks: []representative.Pick{
				{Role: representative.RoleClosest, Item: "m", Score: representative.Valid(0.5)},
				{Role: representative.RoleFarthestAbove, Item: "n", Score: representative.Valid(0.7)},
			},
		},
		{Cluster: "LC01", SubCluster: "KC0", Strategy: "signed"},
	}
	require.NoError(t, s.SaveSelections(ctx, id, sels))

	rows, err := s.Selections(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "closest", rows[0].Role)
	assert.Equal(t, "m", rows[0].Item)
	assert.True(t, rows[0].Score.Valid)
	assert.InDelta(t, 0.5, rows[0].Centroid.Float64, 1e-12)
	assert.Equal(t, "farthest_above", rows[1].Role)

	assert.Equal(t, "LC01", rows[2].Cluster)
	assert.Equal(t, "", rows[2].Role)
	assert.False(t, rows[2].Score.Valid)
	assert.False(t, rows[2].Centroid.Valid)
}

func TestSaveMemberships(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := uuid.NewString()
	require.NoError(t, s.BeginRun(ctx, Run{ID: id, Mode: "subclusters", StartedAt: time.Now()}))

	cols := []output.Membership{
		{Cluster: "LC00", SubCluster: "KC0", Items: []string{"c", "a", "b"}},
		{Cluster: "LC00", SubCluster: "KC1", Items: []string{"d"}},
	}
	require.NoError(t, s.SaveMemberships(ctx, id, cols))

	items, err := s.Memberships(ctx, id, "LC00", "KC0")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, items)

	items, err = s.Memberships(ctx, id, "LC00", "KC1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, items)
}

func TestSelectionsRequireRun(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveSelections(context.Background(), "missing-run", []representative.Selection{
		{Cluster: "LC00", Strategy: "highest"},
	})
	assert.Error(t, err)
}
