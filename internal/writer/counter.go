package writer

import (
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

// Only counts what it receives and prints the totals on Close
type Counter struct {
	Nodes    int64
	Points   int64
	Accepted int64
	Rejected int64

	out io.WriteCloser
}

// out may be nil, the totals are then only kept in the fields
func NewCounter(out io.WriteCloser) *Counter {
	return &Counter{out: out}
}

func (c *Counter) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	c.Nodes++
	c.Points += int64(points.NumPoints)
	c.Accepted += numAccepted
	c.Rejected += numRejected
	return nil
}

func (c *Counter) Close() error {
	if c.out == nil {
		return nil
	}
	_, err := fmt.Fprintf(c.out, "nodes: %d, points: %d, accepted: %d, rejected: %d\n",
		c.Nodes, c.Points, c.Accepted, c.Rejected)
	return multierr.Append(err, c.out.Close())
}
