package io

import (
	"context"

	"github.com/ecopia-map/potree_extract/internal/octree"
)

type Producer interface {
	Produce(ctx context.Context, work chan<- *WorkUnit, nodes []*octree.Node) error
}
