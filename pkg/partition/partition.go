// Package partition loads the assignment of items to clusters produced by the
// upstream community-detection run.
package partition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultItemColumn    = "protid"
	DefaultClusterColumn = "LeidenCluster"
)

// ErrMissingColumn is matched by every *MissingColumnError.
var ErrMissingColumn = errors.New("required column missing")

// MissingColumnError names the file and the column that could not be found.
type MissingColumnError struct {
	File   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: required column %q not found in header", e.File, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// Options selects the columns holding the item key and the cluster label.
type Options struct {
	ItemColumn    string
	ClusterColumn string
}

// DefaultOptions returns the column names written by the clustering pipeline.
func DefaultOptions() Options {
	return Options{
		ItemColumn:    DefaultItemColumn,
		ClusterColumn: DefaultClusterColumn,
	}
}

// Conflict records an item listed under more than one cluster label. The
// first assignment wins.
type Conflict struct {
	Item     string
	Kept     string
	Rejected string
}

// Partition maps items to cluster labels.
type Partition struct {
	labels     []string
	members    map[string][]string
	assignment map[string]string

	Conflicts []Conflict
}

// Load reads a tab-separated cluster file.
func Load(path string, opts Options) (*Partition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cluster file: %w", err)
	}
	defer f.Close()

	return Read(f, path, opts)
}

// Read parses cluster assignments from r. name is used in error messages.
// Columns other than the item and cluster columns are ignored.
func Read(r io.Reader, name string, opts Options) (*Partition, error) {
	if opts.ItemColumn == "" {
		opts.ItemColumn = DefaultItemColumn
	}
	if opts.ClusterColumn == "" {
		opts.ClusterColumn = DefaultClusterColumn
	}

	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: cluster file is empty", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", name, err)
	}

	itemCol, clusterCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case opts.ItemColumn:
			itemCol = i
		case opts.ClusterColumn:
			clusterCol = i
		}
	}
	if itemCol < 0 {
		return nil, &MissingColumnError{File: name, Column: opts.ItemColumn}
	}
	if clusterCol < 0 {
		return nil, &MissingColumnError{File: name, Column: opts.ClusterColumn}
	}

	p := &Partition{
		members:    make(map[string][]string),
		assignment: make(map[string]string),
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%s: line %d: %w", name, line, err)
		}
		if itemCol >= len(record) || clusterCol >= len(record) {
			return nil, fmt.Errorf("%s: line %d: expected at least %d fields, got %d",
				name, line, max(itemCol, clusterCol)+1, len(record))
		}

		item := strings.TrimSpace(record[itemCol])
		label := strings.TrimSpace(record[clusterCol])
		if item == "" || label == "" {
			continue
		}
		p.add(item, label)
	}

	p.labels = sortLabels(p.members)
	return p, nil
}

// FromAssignments builds a partition from (item, label) pairs in order.
func FromAssignments(pairs [][2]string) *Partition {
	p := &Partition{
		members:    make(map[string][]string),
		assignment: make(map[string]string),
	}
	for _, pair := range pairs {
		p.add(pair[0], pair[1])
	}
	p.labels = sortLabels(p.members)
	return p
}

func (p *Partition) add(item, label string) {
	if existing, ok := p.assignment[item]; ok {
		if existing != label {
			p.Conflicts = append(p.Conflicts, Conflict{Item: item, Kept: existing, Rejected: label})
		}
		return
	}
	p.assignment[item] = label
	p.members[label] = append(p.members[label], item)
}

// Labels returns the cluster labels in processing order.
func (p *Partition) Labels() []string { return append([]string(nil), p.labels...) }

// Members returns the items of a cluster in file order.
func (p *Partition) Members(label string) []string {
	return append([]string(nil), p.members[label]...)
}

// ClusterOf returns the label an item was assigned to.
func (p *Partition) ClusterOf(item string) (string, bool) {
	label, ok := p.assignment[item]
	return label, ok
}

// Len returns the number of assigned items.
func (p *Partition) Len() int { return len(p.assignment) }

// sortLabels orders labels numerically when all of them are integers and
// lexicographically otherwise.
func sortLabels(members map[string][]string) []string {
	labels := make([]string, 0, len(members))
	for label := range members {
		labels = append(labels, label)
	}

	allIntegers := true
	for _, label := range labels {
		if _, err := strconv.Atoi(label); err != nil {
			allIntegers = false
			break
		}
	}

	if allIntegers {
		sort.Slice(labels, func(i, j int) bool {
			a, _ := strconv.Atoi(labels[i])
			b, _ := strconv.Atoi(labels[j])
			return a < b
		})
	} else {
		sort.Strings(labels)
	}
	return labels
}
