package io

import (
	"context"

	"github.com/ecopia-map/potree_extract/internal/octree"
)

type StandardProducer struct{}

func NewStandardProducer() *StandardProducer {
	return &StandardProducer{}
}

// Submits one WorkUnit per candidate node to the provided work channel.
// Closes the channel when all work is submitted or the context is cancelled.
func (p *StandardProducer) Produce(ctx context.Context, work chan<- *WorkUnit, nodes []*octree.Node) error {
	defer close(work)

	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case work <- &WorkUnit{Node: node}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
