package potree

import (
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/geometry"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

var ErrInvalidSource = errors.New("invalid potree source")

// A potree 2.0 point cloud directory
type Source struct {
	Dir        string
	Metadata   *Metadata
	Attributes *attributes.Attributes
	AABB       geometry.AABB
	Encoding   decoder.Encoding
}

// Accepts either the point cloud directory or its metadata.json
func ResolveSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(ErrInvalidSource, err.Error())
	}
	if !info.IsDir() {
		if filepath.Base(path) != MetadataFile {
			return "", errors.Wrapf(ErrInvalidSource, "%s is not a %s file", path, MetadataFile)
		}
		return filepath.Dir(path), nil
	}
	if _, err := os.Stat(filepath.Join(path, MetadataFile)); err != nil {
		return "", errors.Wrapf(ErrInvalidSource, "%s does not contain %s", path, MetadataFile)
	}
	return path, nil
}

func Open(path string) (*Source, error) {
	dir, err := ResolveSource(path)
	if err != nil {
		return nil, err
	}

	md, err := ReadMetadata(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSource, "%s: %v", dir, err)
	}

	for _, name := range []string{HierarchyFile, OctreeFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, errors.Wrapf(ErrInvalidSource, "%s: missing %s", dir, name)
		}
	}

	aabb := md.AABB()
	if aabb.IsEmpty() {
		return nil, errors.Wrapf(ErrInvalidSource, "%s: bounding box min is greater than max", dir)
	}
	if md.Scale[0] == 0 || md.Scale[1] == 0 || md.Scale[2] == 0 {
		return nil, errors.Wrapf(ErrInvalidSource, "%s: scale must not be zero", dir)
	}
	if md.Hierarchy.FirstChunkSize <= 0 {
		return nil, errors.Wrapf(ErrInvalidSource, "%s: hierarchy.firstChunkSize must be positive", dir)
	}

	attrs, err := md.ParseAttributes()
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidSource, "%s: %v", dir, err)
	}

	return &Source{
		Dir:        dir,
		Metadata:   md,
		Attributes: attrs,
		AABB:       aabb,
		Encoding:   md.EncodingType(),
	}, nil
}

func (s *Source) HierarchyPath() string {
	return filepath.Join(s.Dir, HierarchyFile)
}

func (s *Source) OctreePath() string {
	return filepath.Join(s.Dir, OctreeFile)
}

// Reads the hierarchy, pruning proxies outside region or deeper than maxLevel
func (s *Source) LoadHierarchy(region octree.Region, maxLevel int) (*octree.Hierarchy, error) {
	file, err := os.Open(s.HierarchyPath())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	h, err := octree.LoadHierarchy(file, info.Size(), s.AABB, s.Metadata.Hierarchy.FirstChunkSize, region, maxLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "loading hierarchy of %s", s.Dir)
	}
	return h, nil
}

func (s *Source) OpenOctree() (*os.File, error) {
	return os.Open(s.OctreePath())
}

// Aggregate bounds of several sources
type Stats struct {
	AABB      geometry.AABB
	Scale     r3.Vector // smallest scale of all sources
	NumPoints int64
}

func ComputeStats(sources []*Source) Stats {
	inf := math.Inf(1)
	stats := Stats{
		AABB:  geometry.EmptyAABB(),
		Scale: r3.Vector{X: inf, Y: inf, Z: inf},
	}
	for _, source := range sources {
		stats.AABB.ExpandAABB(source.AABB)
		scale := source.Attributes.PosScale
		stats.Scale = r3.Vector{
			X: math.Min(stats.Scale.X, scale.X),
			Y: math.Min(stats.Scale.Y, scale.Y),
			Z: math.Min(stats.Scale.Z, scale.Z),
		}
		stats.NumPoints += source.Metadata.Points
	}
	return stats
}

// Picks an offset at the center of aabb and the finest scale, not smaller
// than target, that still fits the whole box into 32 bit integers.
func ComputeScaleOffset(aabb geometry.AABB, target r3.Vector) (scale, offset r3.Vector) {
	center := aabb.Center()
	size := aabb.Size()
	limit := math.Pow(2, 31)
	scale = r3.Vector{
		X: math.Max(target.X, size.X/limit),
		Y: math.Max(target.Y, size.Y/limit),
		Z: math.Max(target.Z, size.Z/limit),
	}
	return scale, center
}
