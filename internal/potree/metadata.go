package potree

import (
	"encoding/json"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/geometry"
)

const (
	MetadataFile  = "metadata.json"
	HierarchyFile = "hierarchy.bin"
	OctreeFile    = "octree.bin"
)

type HierarchyInfo struct {
	FirstChunkSize int64 `json:"firstChunkSize"`
	StepSize       int   `json:"stepSize"`
	Depth          int   `json:"depth"`
}

type BoundingBox struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

type AttributeInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Size        int       `json:"size"`
	NumElements int       `json:"numElements"`
	ElementSize int       `json:"elementSize"`
	Type        string    `json:"type"`
	Min         []float64 `json:"min,omitempty"`
	Max         []float64 `json:"max,omitempty"`
}

// Content of metadata.json
type Metadata struct {
	Version     string          `json:"version"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Points      int64           `json:"points"`
	Projection  string          `json:"projection"`
	Hierarchy   HierarchyInfo   `json:"hierarchy"`
	Offset      [3]float64      `json:"offset"`
	Scale       [3]float64      `json:"scale"`
	Spacing     float64         `json:"spacing"`
	BoundingBox BoundingBox     `json:"boundingBox"`
	Encoding    string          `json:"encoding"`
	Attributes  []AttributeInfo `json:"attributes"`
}

func ReadMetadata(path string) (*Metadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md := &Metadata{}
	if err := json.Unmarshal(content, md); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return md, nil
}

func WriteMetadata(path string, md *Metadata) error {
	content, err := json.MarshalIndent(md, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0644)
}

func (md *Metadata) AABB() geometry.AABB {
	b := md.BoundingBox
	return geometry.NewAABB(
		r3.Vector{X: b.Min[0], Y: b.Min[1], Z: b.Min[2]},
		r3.Vector{X: b.Max[0], Y: b.Max[1], Z: b.Max[2]},
	)
}

func (md *Metadata) EncodingType() decoder.Encoding {
	if md.Encoding == string(decoder.EncodingBrotli) {
		return decoder.EncodingBrotli
	}
	return decoder.EncodingDefault
}

// Builds the point schema, checking it against what the decoder supports
func (md *Metadata) ParseAttributes() (*attributes.Attributes, error) {
	list := make([]attributes.Attribute, 0, len(md.Attributes))
	for _, info := range md.Attributes {
		attr := attributes.Attribute{
			Name:        info.Name,
			Description: info.Description,
			Size:        info.Size,
			NumElements: info.NumElements,
			ElementSize: info.ElementSize,
			Type:        attributes.ParseType(info.Type),
			Min:         info.Min,
			Max:         info.Max,
		}
		if attr.NumElements*attr.ElementSize != attr.Size {
			return nil, errors.Errorf("attribute %q: size %d does not match %d elements of %d bytes",
				attr.Name, attr.Size, attr.NumElements, attr.ElementSize)
		}
		list = append(list, attr)
	}

	scale := r3.Vector{X: md.Scale[0], Y: md.Scale[1], Z: md.Scale[2]}
	offset := r3.Vector{X: md.Offset[0], Y: md.Offset[1], Z: md.Offset[2]}
	attrs, err := attributes.NewAttributes(list, scale, offset)
	if err != nil {
		return nil, err
	}

	position, ok := attrs.Get("position")
	if !ok {
		return nil, errors.New("missing position attribute")
	}
	if position.Size != 12 {
		return nil, errors.Errorf("position attribute must be 3 x int32, got %d bytes", position.Size)
	}
	for _, name := range []string{"rgb", "rgba"} {
		if color, ok := attrs.Get(name); ok && color.Size < 6 {
			return nil, errors.Errorf("%s attribute needs at least 3 x uint16, got %d bytes", name, color.Size)
		}
	}

	return attrs, nil
}

func infoFromAttribute(attr attributes.Attribute) AttributeInfo {
	return AttributeInfo{
		Name:        attr.Name,
		Description: attr.Description,
		Size:        attr.Size,
		NumElements: attr.NumElements,
		ElementSize: attr.ElementSize,
		Type:        attr.Type.String(),
		Min:         attr.Min,
		Max:         attr.Max,
	}
}

// Metadata entries for an attribute schema
func AttributeInfos(attrs *attributes.Attributes) []AttributeInfo {
	out := make([]AttributeInfo, len(attrs.List))
	for i, attr := range attrs.List {
		out[i] = infoFromAttribute(attr)
	}
	return out
}
