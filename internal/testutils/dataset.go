// Package testutils writes small synthetic potree point clouds for tests.
package testutils

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/andybalholm/brotli"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/geometry"
	"github.com/ecopia-map/potree_extract/internal/octree"
	"github.com/ecopia-map/potree_extract/internal/potree"
)

type Point struct {
	Position  r3.Vector
	Intensity uint16
	RGB       [3]uint16
}

type Node struct {
	Name   string
	Points []Point
	// the node record starts a new hierarchy chunk referenced by a proxy
	ChunkRoot bool
}

type Dataset struct {
	AABB     geometry.AABB
	Scale    float64
	Encoding decoder.Encoding
	Nodes    []*Node
}

func (d *Dataset) Node(name string) *Node {
	for _, node := range d.Nodes {
		if node.Name == name {
			return node
		}
	}
	return nil
}

// Schema of the datasets: position, intensity and rgb
func Attributes(scale float64) *attributes.Attributes {
	attrs, err := attributes.NewAttributes([]attributes.Attribute{
		attributes.NewAttribute("position", attributes.Int32, 3),
		attributes.NewAttribute("intensity", attributes.Uint16, 1),
		attributes.NewAttribute("rgb", attributes.Uint16, 3),
	}, r3.Vector{X: scale, Y: scale, Z: scale}, r3.Vector{})
	if err != nil {
		panic(err)
	}
	return attrs
}

// Root [0,8]^3 and its eight children, each with n random points inside
// its own bounds. Coordinates are multiples of the scale.
func TwoLevelOctree(seed int64, n int, encoding decoder.Encoding) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	d := &Dataset{
		AABB:     geometry.NewAABB(r3.Vector{}, r3.Vector{X: 8, Y: 8, Z: 8}),
		Scale:    0.001,
		Encoding: encoding,
	}
	d.Nodes = append(d.Nodes, &Node{Name: "r", Points: RandomPoints(rng, d.AABB, n, d.Scale)})
	for i := 0; i < 8; i++ {
		d.Nodes = append(d.Nodes, &Node{
			Name:   "r" + strconv.Itoa(i),
			Points: RandomPoints(rng, d.AABB.ChildAABB(i), n, d.Scale),
		})
	}
	return d
}

func RandomPoints(rng *rand.Rand, aabb geometry.AABB, n int, scale float64) []Point {
	points := make([]Point, n)
	size := aabb.Size()
	for i := range points {
		p := r3.Vector{
			X: aabb.Min.X + rng.Float64()*size.X,
			Y: aabb.Min.Y + rng.Float64()*size.Y,
			Z: aabb.Min.Z + rng.Float64()*size.Z,
		}
		points[i] = Point{
			Position: r3.Vector{
				X: math.Round(p.X/scale) * scale,
				Y: math.Round(p.Y/scale) * scale,
				Z: math.Round(p.Z/scale) * scale,
			},
			Intensity: uint16(rng.Intn(65536)),
			RGB:       [3]uint16{uint16(rng.Intn(65536)), uint16(rng.Intn(65536)), uint16(rng.Intn(65536))},
		}
	}
	return points
}

type treeNode struct {
	*Node
	children [8]*treeNode
	record   octree.Record
	chunk    []*treeNode // for chunk roots, the nodes of their chunk
}

// Writes metadata.json, hierarchy.bin and octree.bin into dir
func (d *Dataset) Write(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	nodes := map[string]*treeNode{}
	for _, node := range d.Nodes {
		nodes[node.Name] = &treeNode{Node: node}
	}
	root, ok := nodes["r"]
	if !ok {
		return errors.New("dataset has no root node")
	}
	for name, node := range nodes {
		if name == "r" {
			continue
		}
		parent, ok := nodes[name[:len(name)-1]]
		if !ok {
			return errors.Errorf("node %s has no parent", name)
		}
		index, _ := strconv.Atoi(name[len(name)-1:])
		parent.children[index] = node
	}

	attrs := Attributes(d.Scale)
	var octreeData []byte
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		node := nodes[name]
		encoded, err := d.encodeNode(attrs, node.Points)
		if err != nil {
			return err
		}
		var mask uint8
		for i, child := range node.children {
			if child != nil {
				mask |= 1 << i
			}
		}
		nodeType := octree.Leaf
		if mask != 0 {
			nodeType = octree.Normal
		}
		node.record = octree.Record{
			Type:       nodeType,
			ChildMask:  mask,
			NumPoints:  uint32(len(node.Points)),
			ByteOffset: int64(len(octreeData)),
			ByteSize:   int64(len(encoded)),
		}
		octreeData = append(octreeData, encoded...)
	}

	// lay the chunks out breadth first, each chunk stops at nested chunk roots
	chunks := []*treeNode{root}
	offsets := map[*treeNode]int64{}
	var size int64
	for i := 0; i < len(chunks); i++ {
		start := chunks[i]
		start.chunk = []*treeNode{start}
		for j := 0; j < len(start.chunk); j++ {
			current := start.chunk[j]
			if current != start && current.ChunkRoot {
				chunks = append(chunks, current)
				continue
			}
			for _, child := range current.children {
				if child != nil {
					start.chunk = append(start.chunk, child)
				}
			}
		}
		offsets[start] = size
		size += int64(len(start.chunk) * octree.RecordSize)
	}

	var hierarchy []byte
	for _, start := range chunks {
		for _, node := range start.chunk {
			record := node.record
			if node != start && node.ChunkRoot {
				record = octree.Record{
					Type:       octree.Proxy,
					NumPoints:  record.NumPoints,
					ByteOffset: offsets[node],
					ByteSize:   int64(len(node.chunk) * octree.RecordSize),
				}
			}
			hierarchy = record.Append(hierarchy)
		}
	}

	var total int64
	for _, node := range d.Nodes {
		total += int64(len(node.Points))
	}
	md := &potree.Metadata{
		Version:    "2.0",
		Name:       "synthetic",
		Points:     total,
		Projection: "",
		Hierarchy: potree.HierarchyInfo{
			FirstChunkSize: int64(len(root.chunk) * octree.RecordSize),
			StepSize:       4,
			Depth:          maxDepth(d.Nodes),
		},
		Offset:  [3]float64{0, 0, 0},
		Scale:   [3]float64{d.Scale, d.Scale, d.Scale},
		Spacing: 1,
		BoundingBox: potree.BoundingBox{
			Min: [3]float64{d.AABB.Min.X, d.AABB.Min.Y, d.AABB.Min.Z},
			Max: [3]float64{d.AABB.Max.X, d.AABB.Max.Y, d.AABB.Max.Z},
		},
		Encoding:   string(d.Encoding),
		Attributes: potree.AttributeInfos(attrs),
	}

	if err := os.WriteFile(filepath.Join(dir, potree.HierarchyFile), hierarchy, 0644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, potree.OctreeFile), octreeData, 0644); err != nil {
		return err
	}
	return potree.WriteMetadata(filepath.Join(dir, potree.MetadataFile), md)
}

func maxDepth(nodes []*Node) int {
	depth := 0
	for _, node := range nodes {
		if len(node.Name)-1 > depth {
			depth = len(node.Name) - 1
		}
	}
	return depth
}

func (d *Dataset) encodeNode(attrs *attributes.Attributes, points []Point) ([]byte, error) {
	raw := make([][3]int32, len(points))
	for i, p := range points {
		raw[i] = [3]int32{
			int32(math.Round(p.Position.X / d.Scale)),
			int32(math.Round(p.Position.Y / d.Scale)),
			int32(math.Round(p.Position.Z / d.Scale)),
		}
	}

	if d.Encoding != decoder.EncodingBrotli {
		out := make([]byte, 0, len(points)*attrs.Bytes)
		for i, p := range points {
			for _, v := range raw[i] {
				out = binary.LittleEndian.AppendUint32(out, uint32(v))
			}
			out = binary.LittleEndian.AppendUint16(out, p.Intensity)
			for _, c := range p.RGB {
				out = binary.LittleEndian.AppendUint16(out, c)
			}
		}
		return out, nil
	}

	var stream []byte
	for _, v := range raw {
		stream = append(stream, EncodeMortonPosition(uint32(v[0]), uint32(v[1]), uint32(v[2]))...)
	}
	for _, p := range points {
		stream = binary.LittleEndian.AppendUint16(stream, p.Intensity)
	}
	for _, p := range points {
		stream = append(stream, EncodeMortonColor(p.RGB[0], p.RGB[1], p.RGB[2])...)
	}
	return Compress(stream)
}

func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
