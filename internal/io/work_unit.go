package io

import (
	"github.com/ecopia-map/potree_extract/internal/octree"
)

// Contains the minimal data needed to process a single candidate node
type WorkUnit struct {
	Node *octree.Node
}
