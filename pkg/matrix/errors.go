package matrix

import (
	"errors"
	"fmt"
)

// ErrEmptyGroup is matched by every *EmptyGroupError.
var ErrEmptyGroup = errors.New("group has no items present in the similarity matrix")

// EmptyGroupError reports a cluster (or sub-cluster) with no usable items.
type EmptyGroupError struct {
	Cluster    string
	SubCluster string
	Requested  int
	Missing    int
}

func (e *EmptyGroupError) Error() string {
	where := "group"
	switch {
	case e.Cluster != "" && e.SubCluster != "":
		where = fmt.Sprintf("cluster %s/%s", e.Cluster, e.SubCluster)
	case e.Cluster != "":
		where = fmt.Sprintf("cluster %s", e.Cluster)
	}
	if e.Requested > 0 {
		return fmt.Sprintf("%s: none of %d items found in the similarity matrix", where, e.Requested)
	}
	return fmt.Sprintf("%s: no items", where)
}

func (e *EmptyGroupError) Unwrap() error { return ErrEmptyGroup }

// MissingItemError records an item listed in a cluster but absent from the
// similarity matrix. It is collected, not returned.
type MissingItemError struct {
	Item string
}

func (e MissingItemError) Error() string {
	return fmt.Sprintf("item %q not present in similarity matrix", e.Item)
}
