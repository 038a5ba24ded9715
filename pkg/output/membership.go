package output

import "io"

// Membership is one column of the membership table: the items of one
// (cluster, sub-cluster) pair in their original order.
type Membership struct {
	Cluster    string
	SubCluster string
	Items      []string
}

// WriteMembership writes the membership table: a row of cluster labels, a
// row of sub-cluster labels, then the items of every column top-down with
// short columns padded by empty cells. Nothing is written when there are
// no columns.
func WriteMembership(w io.Writer, cols []Membership) error {
	if len(cols) == 0 {
		return nil
	}
	depth := 0
	for _, c := range cols {
		if len(c.Items) > depth {
			depth = len(c.Items)
		}
	}

	records := make([][]string, 2, depth+2)
	records[0] = make([]string, len(cols))
	records[1] = make([]string, len(cols))
	for j, c := range cols {
		records[0][j] = c.Cluster
		records[1][j] = c.SubCluster
	}
	for i := 0; i < depth; i++ {
		row := make([]string, len(cols))
		for j, c := range cols {
			if i < len(c.Items) {
				row[j] = c.Items[i]
			}
		}
		records = append(records, row)
	}
	return writeRecords(w, records)
}
