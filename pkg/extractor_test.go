package pkg

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/ecopia-map/potree_extract/internal/area"
	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/converters"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/extract"
	"github.com/ecopia-map/potree_extract/internal/octree"
	"github.com/ecopia-map/potree_extract/internal/potree"
	"github.com/ecopia-map/potree_extract/internal/testutils"
	"github.com/ecopia-map/potree_extract/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/potree_extract/tools"
)

func TestProfileArea(t *testing.T) {
	region, err := ProfileArea("{0,2},{8,2}", 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, region.Profiles, test.ShouldHaveLength, 1)
	test.That(t, region.Profiles[0].Length(), test.ShouldAlmostEqual, 8.0)
	test.That(t, region.Contains(r3.Vector{X: 3, Y: 2.4, Z: 100}), test.ShouldBeTrue)
	test.That(t, region.Contains(r3.Vector{X: 3, Y: 2.6}), test.ShouldBeFalse)

	_, err = ProfileArea("{0,2}", 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ProfileArea("{0,2},{8,2}", 0)
	var parseErr *area.ParseError
	test.That(t, errors.As(err, &parseErr), test.ShouldBeTrue)
}

func TestBuildArea(t *testing.T) {
	region, err := BuildArea(&extract.ExtractOptions{Area: "{1,0,0,0, 0,1,0,0, 0,0,1,0, 0,0,0,1}"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, region.OrientedBoxes, test.ShouldHaveLength, 1)

	_, err = BuildArea(&extract.ExtractOptions{Area: "  "})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = BuildArea(&extract.ExtractOptions{Command: extract.CommandExtractProfile})
	test.That(t, err, test.ShouldNotBeNil)

	region, err = BuildArea(&extract.ExtractOptions{
		Command:        extract.CommandExtractProfile,
		ProfileOptions: &extract.ProfileOptions{Coordinates: "{0,0},{1,1},{2,0}", Width: 0.5},
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, region.Profiles[0].Segments, test.ShouldHaveLength, 2)
}

func TestComputeOutputAttributes(t *testing.T) {
	source := writeDataset(t, testutils.TwoLevelOctree(1, 4, decoder.EncodingDefault))
	sources := []*potree.Source{source}

	attrs, err := ComputeOutputAttributes(sources, nil, false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names(attrs.List), test.ShouldResemble, []string{"position", "intensity", "rgb"})

	attrs, err = ComputeOutputAttributes(sources, []string{"rgb", "gps-time", "rgb", "position"}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names(attrs.List), test.ShouldResemble, []string{"position", "rgb", converters.ProjectedProfileAttribute})

	attrs, err = ComputeOutputAttributes(sources, []string{converters.ProjectedProfileAttribute, "intensity"}, true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names(attrs.List), test.ShouldResemble, []string{"position", "intensity", converters.ProjectedProfileAttribute})

	_, err = ComputeOutputAttributes(nil, nil, false)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOpenSourcesReportsAll(t *testing.T) {
	good := writeDataset(t, testutils.TwoLevelOctree(1, 4, decoder.EncodingDefault))
	_, err := OpenSources([]string{filepath.Join(t.TempDir(), "a"), good.Dir, filepath.Join(t.TempDir(), "b")})
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 2)
	test.That(t, errors.Is(err, potree.ErrInvalidSource), test.ShouldBeTrue)
}

func TestExtractProfile(t *testing.T) {
	d := testutils.TwoLevelOctree(21, pointsPerNode, decoder.EncodingBrotli)
	source := writeDataset(t, d)
	region, err := ProfileArea("{0,2},{8,2}", 1)
	test.That(t, err, test.ShouldBeNil)

	var count int64
	sink := SinkFunc(func(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
		index := points.Attributes.Index(converters.ProjectedProfileAttribute)
		test.That(t, index, test.ShouldBeGreaterThan, 0)
		test.That(t, int64(points.NumPoints), test.ShouldEqual, numAccepted)
		for i := 0; i < points.NumPoints; i++ {
			p := points.Position(i)
			test.That(t, math.Abs(p.Y-2), test.ShouldBeLessThanOrEqualTo, 0.5)

			distance, z := converters.DecodeProjected(points.Record(index, i), points.Attributes.PosScale)
			test.That(t, distance, test.ShouldAlmostEqual, p.X, 1e-6)
			test.That(t, z, test.ShouldAlmostEqual, p.Z, 1e-6)
		}
		count += numAccepted
		return nil
	})

	projector := converters.NewProfileProjector(region.Profiles)
	stats, err := ExtractProfile(context.Background(), source, region, projector, 0, 10, sink, PipelineOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.Accepted, test.ShouldEqual, count)
	test.That(t, stats.Accepted+stats.Rejected, test.ShouldEqual, stats.Points)
	test.That(t, count, test.ShouldEqual, expectedInside(d, region, "r", "r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"))
}

func TestRunExtractorCsv(t *testing.T) {
	d := testutils.TwoLevelOctree(17, pointsPerNode, decoder.EncodingDefault)
	source := writeDataset(t, d)
	output := filepath.Join(t.TempDir(), "nested", "out.csv")

	opts := &extract.ExtractOptions{
		Inputs:           []string{filepath.Join(source.Dir, potree.MetadataFile)},
		Area:             "minmax([0.5,0.5,0.5],[3.5,3.5,3.5])",
		MinLevel:         0,
		MaxLevel:         extract.DefaultMaxLevel,
		Output:           output,
		OutputAttributes: []string{"intensity"},
		ZOffset:          10,
		Command:          extract.CommandExtractArea,
	}
	extractor := NewExtractor(tools.NewStandardFileFinder(), std_algorithm_manager.NewAlgorithmManager(opts))
	test.That(t, extractor.RunExtractor(context.Background(), opts), test.ShouldBeNil)

	file, err := os.Open(output)
	test.That(t, err, test.ShouldBeNil)
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	test.That(t, err, test.ShouldBeNil)

	region := mustParse(t, opts.Area)
	test.That(t, int64(len(rows)-1), test.ShouldEqual, expectedInside(d, region, "r", "r0"))
	test.That(t, rows[0], test.ShouldResemble, []string{"x", "y", "z", "intensity"})
	for _, row := range rows[1:] {
		z, err := strconv.ParseFloat(row[2], 64)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, z, test.ShouldBeBetweenOrEqual, 10.5, 13.5)
	}
}

func names(list []attributes.Attribute) []string {
	out := make([]string, len(list))
	for i, attr := range list {
		out[i] = attr.Name
	}
	return out
}
