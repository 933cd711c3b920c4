package octree

import (
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/geometry"
)

var ErrMalformedHierarchy = errors.New("malformed hierarchy")

// Decides whether a proxy subtree is worth loading
type Region interface {
	IntersectsAABB(aabb geometry.AABB) bool
}

// Octree materialized from hierarchy.bin. Nodes live in an arena and refer
// to each other by NodeID. Read only once LoadHierarchy returns.
type Hierarchy struct {
	Root  NodeID
	Nodes []NodeID // pre order

	arena []Node
}

func (h *Hierarchy) Node(id NodeID) *Node {
	return &h.arena[id]
}

func (h *Hierarchy) NumNodes() int {
	return len(h.Nodes)
}

// Visits the nodes in pre order
func (h *Hierarchy) Traverse(fn func(node *Node)) {
	for _, id := range h.Nodes {
		fn(&h.arena[id])
	}
}

// Returns the nodes, in pre order, for which keep returns true
func (h *Hierarchy) Select(keep func(node *Node) bool) []*Node {
	var out []*Node
	h.Traverse(func(node *Node) {
		if keep(node) {
			out = append(out, node)
		}
	})
	return out
}

type hierarchyLoader struct {
	r        io.ReaderAt
	fileSize int64
	region   Region
	maxLevel int
	arena    []Node
	visited  map[int64]bool
}

// Loads the hierarchy starting from the first chunk. Proxy chunks are read
// only if the proxy node intersects the region and is not deeper than maxLevel;
// a pruned proxy is left as a childless PROXY node.
func LoadHierarchy(r io.ReaderAt, fileSize int64, aabb geometry.AABB, firstChunkSize int64, region Region, maxLevel int) (*Hierarchy, error) {
	loader := &hierarchyLoader{
		r:        r,
		fileSize: fileSize,
		region:   region,
		maxLevel: maxLevel,
		visited:  map[int64]bool{},
	}

	root := loader.add("r", aabb, NoNode)
	if err := loader.loadChunk(root, 0, firstChunkSize); err != nil {
		return nil, err
	}

	h := &Hierarchy{
		Root:  root,
		arena: loader.arena,
		Nodes: make([]NodeID, 0, len(loader.arena)),
	}
	h.Nodes = h.preOrder(root, maxLevel, h.Nodes)

	return h, nil
}

// Flattens the tree. Records of a chunk must all be decoded to keep the
// breadth first order aligned, so nodes below maxLevel are unlinked here.
func (h *Hierarchy) preOrder(id NodeID, maxLevel int, out []NodeID) []NodeID {
	out = append(out, id)
	node := &h.arena[id]
	for i, child := range node.Children {
		if child == NoNode {
			continue
		}
		if node.Level() >= maxLevel {
			node.Children[i] = NoNode
			continue
		}
		out = h.preOrder(child, maxLevel, out)
	}
	return out
}

func (l *hierarchyLoader) add(name string, aabb geometry.AABB, parent NodeID) NodeID {
	id := NodeID(len(l.arena))
	l.arena = append(l.arena, newNode(id, name, aabb, parent))
	return id
}

func (l *hierarchyLoader) loadChunk(id NodeID, offset, size int64) error {
	if offset < 0 || size <= 0 || offset+size > l.fileSize {
		return errors.Wrapf(ErrMalformedHierarchy, "chunk [%d, %d) outside of hierarchy file of %d bytes", offset, offset+size, l.fileSize)
	}
	if size%RecordSize != 0 {
		return errors.Wrapf(ErrMalformedHierarchy, "chunk size %d is not a multiple of %d", size, RecordSize)
	}
	if l.visited[offset] {
		return errors.Wrapf(ErrMalformedHierarchy, "chunk at %d is referenced twice", offset)
	}
	l.visited[offset] = true

	data := make([]byte, size)
	if n, err := l.r.ReadAt(data, offset); err != nil && !(err == io.EOF && n == len(data)) {
		return errors.Wrapf(err, "reading hierarchy chunk at %d", offset)
	}

	numRecords := int(size / RecordSize)
	pending := []NodeID{id}
	var proxies []NodeID

	for i := 0; i < numRecords; i++ {
		if i >= len(pending) {
			return errors.Wrapf(ErrMalformedHierarchy, "chunk at %d has %d records for %d nodes", offset, numRecords, len(pending))
		}
		current := pending[i]
		record := DecodeRecord(data[i*RecordSize:])

		if record.ByteOffset < 0 || record.ByteSize < 0 {
			return errors.Wrapf(ErrMalformedHierarchy, "node %s has a negative byte range", l.arena[current].Name)
		}

		node := &l.arena[current]
		node.NumPoints = record.NumPoints
		node.ByteOffset = record.ByteOffset
		node.ByteSize = record.ByteSize

		switch record.Type {
		case Proxy:
			node.Type = Proxy
			proxies = append(proxies, current)
		case Normal, Leaf:
			node.Type = record.Type
			for childIndex := 0; childIndex < 8; childIndex++ {
				if record.ChildMask&(1<<childIndex) == 0 {
					continue
				}
				parent := l.arena[current]
				child := l.add(parent.Name+strconv.Itoa(childIndex), parent.AABB.ChildAABB(childIndex), current)
				l.arena[current].Children[childIndex] = child
				pending = append(pending, child)
			}
		default:
			return errors.Wrapf(ErrMalformedHierarchy, "node %s has unknown type %d", node.Name, record.Type)
		}
	}

	if len(pending) > numRecords {
		return errors.Wrapf(ErrMalformedHierarchy, "chunk at %d has %d records for %d nodes", offset, numRecords, len(pending))
	}

	for _, proxy := range proxies {
		node := l.arena[proxy]
		if !l.region.IntersectsAABB(node.AABB) || node.Level() > l.maxLevel {
			continue
		}
		if err := l.loadChunk(proxy, node.ByteOffset, node.ByteSize); err != nil {
			return err
		}
	}

	return nil
}
