package octree

import (
	"github.com/ecopia-map/potree_extract/internal/geometry"
)

type NodeType int8

const (
	Unvisited NodeType = -1
	Normal    NodeType = 0
	Leaf      NodeType = 1
	Proxy     NodeType = 2
)

func (t NodeType) String() string {
	switch t {
	case Normal:
		return "NORMAL"
	case Leaf:
		return "LEAF"
	case Proxy:
		return "PROXY"
	}
	return "UNVISITED"
}

// Index of a node inside its hierarchy arena
type NodeID int32

const NoNode NodeID = -1

// Octree node. For proxy nodes ByteOffset and ByteSize address a chunk of
// hierarchy.bin, for the other types they address the node points in
// octree.bin.
type Node struct {
	ID         NodeID
	Name       string
	AABB       geometry.AABB
	Parent     NodeID
	Children   [8]NodeID
	Type       NodeType
	ByteOffset int64
	ByteSize   int64
	NumPoints  uint32
}

// Depth of the node, the root "r" is level 0
func (n *Node) Level() int {
	return len(n.Name) - 1
}

func (n *Node) IsLeaf() bool {
	for _, child := range n.Children {
		if child != NoNode {
			return false
		}
	}
	return true
}

// True for nodes whose points can be decoded from octree.bin
func (n *Node) HasPoints() bool {
	return n.Type == Normal || n.Type == Leaf
}

func newNode(id NodeID, name string, aabb geometry.AABB, parent NodeID) Node {
	node := Node{
		ID:     id,
		Name:   name,
		AABB:   aabb,
		Parent: parent,
		Type:   Unvisited,
	}
	for i := range node.Children {
		node.Children[i] = NoNode
	}
	return node
}
