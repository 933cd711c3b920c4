package pkg

import (
	"context"
	"math"
	"sort"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/ecopia-map/potree_extract/internal/area"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/octree"
	"github.com/ecopia-map/potree_extract/internal/potree"
	"github.com/ecopia-map/potree_extract/internal/testutils"
)

const pointsPerNode = 60

func writeDataset(t *testing.T, d *testutils.Dataset) *potree.Source {
	dir := t.TempDir()
	test.That(t, d.Write(dir), test.ShouldBeNil)
	source, err := potree.Open(dir)
	test.That(t, err, test.ShouldBeNil)
	return source
}

// Position as the decoder will return it
func quantized(p r3.Vector, scale float64) r3.Vector {
	return r3.Vector{
		X: math.Round(p.X/scale) * scale,
		Y: math.Round(p.Y/scale) * scale,
		Z: math.Round(p.Z/scale) * scale,
	}
}

func expectedInside(d *testutils.Dataset, region *area.Area, names ...string) int64 {
	var n int64
	for _, name := range names {
		for _, p := range d.Node(name).Points {
			if region.Contains(quantized(p.Position, d.Scale)) {
				n++
			}
		}
	}
	return n
}

type collector struct {
	nodes     []string
	positions []r3.Vector
	accepted  int64
	rejected  int64
}

func (c *collector) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	c.nodes = append(c.nodes, node.Name)
	for i := 0; i < points.NumPoints; i++ {
		c.positions = append(c.positions, points.Position(i))
	}
	c.accepted += numAccepted
	c.rejected += numRejected
	return nil
}

func (c *collector) sortedNodes() []string {
	names := append([]string(nil), c.nodes...)
	sort.Strings(names)
	return names
}

func mustParse(t *testing.T, text string) *area.Area {
	region, err := area.Parse(text)
	test.That(t, err, test.ShouldBeNil)
	return region
}

func TestFilterPointcloudOneOctant(t *testing.T) {
	for _, encoding := range []decoder.Encoding{decoder.EncodingDefault, decoder.EncodingBrotli} {
		t.Run(string(encoding), func(t *testing.T) {
			d := testutils.TwoLevelOctree(11, pointsPerNode, encoding)
			source := writeDataset(t, d)
			region := mustParse(t, "minmax([0.5,0.5,0.5],[3.5,3.5,3.5])")

			sink := &collector{}
			stats, err := FilterPointcloud(context.Background(), source, region, 0, 1, sink, PipelineOptions{Workers: 3})
			test.That(t, err, test.ShouldBeNil)

			test.That(t, sink.sortedNodes(), test.ShouldResemble, []string{"r", "r0"})
			for _, p := range sink.positions {
				test.That(t, region.Contains(p), test.ShouldBeTrue)
			}

			expected := expectedInside(d, region, "r", "r0")
			test.That(t, sink.accepted, test.ShouldEqual, expected)
			test.That(t, int64(len(sink.positions)), test.ShouldEqual, expected)
			test.That(t, sink.accepted+sink.rejected, test.ShouldEqual, int64(2*pointsPerNode))

			test.That(t, stats.Candidates, test.ShouldEqual, int64(2))
			test.That(t, stats.Nodes, test.ShouldEqual, int64(2))
			test.That(t, stats.Points, test.ShouldEqual, int64(2*pointsPerNode))
			test.That(t, stats.Accepted, test.ShouldEqual, expected)
		})
	}
}

func TestFilterPointcloudLevels(t *testing.T) {
	d := testutils.TwoLevelOctree(5, pointsPerNode, decoder.EncodingDefault)
	source := writeDataset(t, d)
	region := area.All()

	sink := &collector{}
	_, err := FilterPointcloud(context.Background(), source, region, 1, 1, sink, PipelineOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.sortedNodes(), test.ShouldResemble, []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7"})

	sink = &collector{}
	_, err = FilterPointcloud(context.Background(), source, region, 0, 0, sink, PipelineOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.nodes, test.ShouldResemble, []string{"r"})
	test.That(t, sink.accepted, test.ShouldEqual, int64(pointsPerNode))

	sink = &collector{}
	stats, err := FilterPointcloud(context.Background(), source, region, 2, 5, sink, PipelineOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.nodes, test.ShouldBeEmpty)
	test.That(t, stats.Candidates, test.ShouldEqual, int64(0))
}

func TestFilterPointcloudEmptyArea(t *testing.T) {
	source := writeDataset(t, testutils.TwoLevelOctree(2, pointsPerNode, decoder.EncodingDefault))

	sink := &collector{}
	_, err := FilterPointcloud(context.Background(), source, &area.Area{}, 0, 10, sink, PipelineOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.nodes, test.ShouldBeEmpty)
}

func TestGetNumCandidatesWithProxy(t *testing.T) {
	d := testutils.TwoLevelOctree(3, pointsPerNode, decoder.EncodingBrotli)
	d.Node("r0").ChunkRoot = true
	source := writeDataset(t, d)

	n, err := GetNumCandidates(source, area.All(), 0, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, int64(9*pointsPerNode))

	// the r0 chunk is never loaded for a region in the opposite octant
	n, err = GetNumCandidates(source, mustParse(t, "minmax([4.5,4.5,4.5],[7.5,7.5,7.5])"), 0, 10)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, int64(2*pointsPerNode))

	sink := &collector{}
	_, err = FilterPointcloud(context.Background(), source, mustParse(t, "minmax([0.5,0.5,0.5],[3.5,3.5,3.5])"), 0, 10, sink, PipelineOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.sortedNodes(), test.ShouldResemble, []string{"r", "r0"})
}

func TestLoadPoints(t *testing.T) {
	source := writeDataset(t, testutils.TwoLevelOctree(8, pointsPerNode, decoder.EncodingBrotli))
	region := mustParse(t, "minmax([0.5,0.5,0.5],[3.5,3.5,3.5])")

	var total int
	stats, err := LoadPoints(context.Background(), source, region, 0, 1, func(node *octree.Node, points *data.Points) error {
		test.That(t, points.NumPoints, test.ShouldEqual, pointsPerNode)
		total += points.NumPoints
		return nil
	}, PipelineOptions{Workers: 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, total, test.ShouldEqual, 2*pointsPerNode)
	test.That(t, stats.Rejected, test.ShouldEqual, int64(0))
}

func TestFilterPointcloudSinkError(t *testing.T) {
	source := writeDataset(t, testutils.TwoLevelOctree(4, pointsPerNode, decoder.EncodingDefault))
	failure := errors.New("disk full")

	calls := 0
	sink := SinkFunc(func(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
		calls++
		return failure
	})
	_, err := FilterPointcloud(context.Background(), source, area.All(), 0, 10, sink, PipelineOptions{Workers: 2})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, failure), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldBeLessThanOrEqualTo, 2)
}

func TestFilterPointcloudCancelled(t *testing.T) {
	source := writeDataset(t, testutils.TwoLevelOctree(4, pointsPerNode, decoder.EncodingDefault))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FilterPointcloud(ctx, source, area.All(), 0, 10, &collector{}, PipelineOptions{Workers: 1})
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}
