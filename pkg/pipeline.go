package pkg

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ecopia-map/potree_extract/internal/area"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/decoder"
	"github.com/ecopia-map/potree_extract/internal/io"
	"github.com/ecopia-map/potree_extract/internal/octree"
	"github.com/ecopia-map/potree_extract/internal/potree"
)

// Receives the accepted points of every candidate node, one call at a time
type Sink = io.Sink

type SinkFunc = io.SinkFunc

// Receives every decoded batch unfiltered, one call at a time
type LoadSink func(node *octree.Node, points *data.Points) error

type PipelineOptions struct {
	Workers        int // 0 means one per CPU
	DecodeAttempts int // 0 means decoder.DefaultMaxDecodeAttempts
}

type Stats struct {
	io.Stats
	Candidates int64 // nodes selected for decoding
	Duration   time.Duration
}

func (s *Stats) Add(other Stats) {
	s.Nodes += other.Nodes
	s.Points += other.Points
	s.Accepted += other.Accepted
	s.Rejected += other.Rejected
	s.Candidates += other.Candidates
	s.Duration += other.Duration
}

// Loads the hierarchy pruned by region and maxLevel and selects the nodes
// holding points whose level is in [minLevel, maxLevel]
func selectCandidates(source *potree.Source, region *area.Area, minLevel, maxLevel int) ([]*octree.Node, error) {
	if region == nil {
		region = area.All()
	}
	hierarchy, err := source.LoadHierarchy(region, maxLevel)
	if err != nil {
		return nil, err
	}

	return hierarchy.Select(func(node *octree.Node) bool {
		level := node.Level()
		return node.HasPoints() &&
			level >= minLevel && level <= maxLevel &&
			region.IntersectsAABB(node.AABB)
	}), nil
}

// Sum of the point counts of the candidate nodes, no point data is read
func GetNumCandidates(source *potree.Source, region *area.Area, minLevel, maxLevel int) (int64, error) {
	nodes, err := selectCandidates(source, region, minLevel, maxLevel)
	if err != nil {
		return 0, err
	}

	var numCandidates int64
	for _, node := range nodes {
		numCandidates += int64(node.NumPoints)
	}
	return numCandidates, nil
}

// Decodes every candidate node of source, keeps the points inside region and
// hands them to sink. The first error stops the run and is returned.
func FilterPointcloud(ctx context.Context, source *potree.Source, region *area.Area, minLevel, maxLevel int, sink Sink, opts PipelineOptions) (Stats, error) {
	if region == nil {
		region = area.All()
	}
	return runPipeline(ctx, source, region, minLevel, maxLevel, region, sink, opts)
}

// Same node selection as FilterPointcloud, without the point filter
func LoadPoints(ctx context.Context, source *potree.Source, region *area.Area, minLevel, maxLevel int, sink LoadSink, opts PipelineOptions) (Stats, error) {
	unfiltered := SinkFunc(func(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
		return sink(node, points)
	})
	return runPipeline(ctx, source, region, minLevel, maxLevel, nil, unfiltered, opts)
}

func runPipeline(ctx context.Context, source *potree.Source, region *area.Area, minLevel, maxLevel int, filter io.Filter, sink Sink, opts PipelineOptions) (stats Stats, err error) {
	start := time.Now()
	defer func() {
		stats.Duration = time.Since(start)
	}()

	nodes, err := selectCandidates(source, region, minLevel, maxLevel)
	if err != nil {
		return stats, err
	}
	stats.Candidates = int64(len(nodes))
	if len(nodes) == 0 {
		glog.Infof("no candidate node in %s", source.Dir)
		return stats, nil
	}

	octreeFile, err := source.OpenOctree()
	if err != nil {
		return stats, errors.Wrapf(err, "opening octree of %s", source.Dir)
	}
	defer func() {
		err = multierr.Append(err, octreeFile.Close())
	}()

	// a consumer goroutine per CPU, never more than the candidates
	numConsumers := opts.Workers
	if numConsumers <= 0 {
		numConsumers = runtime.NumCPU()
	}
	if numConsumers > len(nodes) {
		numConsumers = len(nodes)
	}

	group, ctx := errgroup.WithContext(ctx)

	// init channel where to submit work with a buffer 5 times greater than the number of consumers
	workChannel := make(chan *io.WorkUnit, numConsumers*5)

	producer := io.NewStandardProducer()
	group.Go(func() error {
		return producer.Produce(ctx, workChannel, nodes)
	})

	var lock sync.Mutex
	for i := 0; i < numConsumers; i++ {
		dec := decoder.NewDecoder(source.Attributes, source.Encoding, opts.DecodeAttempts)
		consumer := io.NewStandardConsumer(dec, octreeFile, filter, sink, &lock, &stats.Stats)
		group.Go(func() error {
			return consumer.Consume(ctx, workChannel)
		})
	}

	if err := group.Wait(); err != nil {
		return stats, errors.Wrapf(err, "extracting from %s", source.Dir)
	}
	return stats, nil
}
