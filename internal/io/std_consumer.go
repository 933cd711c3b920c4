package io

import (
	"context"
	"io"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

// Receives the points of one node. Calls are serialized by the pipeline.
type Sink interface {
	Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error
}

type SinkFunc func(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error

func (f SinkFunc) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	return f(node, points, numAccepted, numRejected)
}

// Point level predicate
type Filter interface {
	Contains(p r3.Vector) bool
}

// Totals of a run, updated while holding the sink lock
type Stats struct {
	Nodes    int64
	Points   int64
	Accepted int64
	Rejected int64
}

type StandardConsumer struct {
	decoder  *decoder.Decoder
	source   io.ReaderAt
	filter   Filter
	sink     Sink
	lock     sync.Locker
	stats    *Stats
	accepted []int
}

// Builds a consumer owning its own decoder. A nil filter hands the decoded
// points to the sink untouched.
func NewStandardConsumer(dec *decoder.Decoder, source io.ReaderAt, filter Filter, sink Sink, lock sync.Locker, stats *Stats) *StandardConsumer {
	return &StandardConsumer{
		decoder: dec,
		source:  source,
		filter:  filter,
		sink:    sink,
		lock:    lock,
		stats:   stats,
	}
}

// Continually consumes WorkUnits until the work channel is closed. Stops at
// the first error, or when the context is cancelled, and returns it.
func (c *StandardConsumer) Consume(ctx context.Context, work <-chan *WorkUnit) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case unit, ok := <-work:
			if !ok {
				// channel was closed by producer
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.doWork(unit); err != nil {
				return err
			}
		}
	}
}

// Decodes, filters and compacts the node, then hands it to the sink
func (c *StandardConsumer) doWork(unit *WorkUnit) error {
	node := unit.Node
	points, err := c.decoder.Decode(c.source, node)
	if err != nil {
		return err
	}
	decoded := int64(points.NumPoints)

	numAccepted, numRejected := decoded, int64(0)
	if c.filter != nil {
		c.accepted = c.accepted[:0]
		for i := 0; i < points.NumPoints; i++ {
			if c.filter.Contains(points.Position(i)) {
				c.accepted = append(c.accepted, i)
			}
		}
		points.Compact(c.accepted)
		numAccepted = int64(len(c.accepted))
		numRejected = decoded - numAccepted
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	c.stats.Nodes++
	c.stats.Points += decoded
	c.stats.Accepted += numAccepted
	c.stats.Rejected += numRejected

	if err := c.sink.Write(node, points, numAccepted, numRejected); err != nil {
		return errors.Wrapf(err, "writing points of node %s", node.Name)
	}
	return nil
}
