package aggregates

import "slices"

// Contract names an aggregate write boundary and the tables its transactions
// may write. Guards built for a contract refuse status updates outside Writes.
type Contract struct {
	Name   string
	Writes []string
	Notes  string
}

// Aggregate is implemented by every write boundary.
type Aggregate interface {
	Contract() Contract
}

// AllowsWrite is true for every table when Writes is empty.
func (c Contract) AllowsWrite(table string) bool {
	return len(c.Writes) == 0 || slices.Contains(c.Writes, table)
}
