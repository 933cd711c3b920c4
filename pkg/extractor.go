package pkg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/area"
	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/converters"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/extract"
	"github.com/ecopia-map/potree_extract/internal/octree"
	"github.com/ecopia-map/potree_extract/internal/potree"
	"github.com/ecopia-map/potree_extract/internal/writer"
	"github.com/ecopia-map/potree_extract/pkg/algorithm_manager"
	"github.com/ecopia-map/potree_extract/tools"
)

type IExtractor interface {
	RunExtractor(ctx context.Context, opts *extract.ExtractOptions) error
}

type Extractor struct {
	fileFinder       tools.FileFinder
	algorithmManager algorithm_manager.AlgorithmManager
}

func NewExtractor(fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager) IExtractor {
	return &Extractor{
		fileFinder:       fileFinder,
		algorithmManager: algorithmManager,
	}
}

// Starts the extraction process
func (e *Extractor) RunExtractor(ctx context.Context, opts *extract.ExtractOptions) error {
	tools.LogOutput("Preparing list of point clouds to process...")

	paths, err := e.fileFinder.GetSourcesToProcess(opts)
	if err != nil {
		return err
	}
	for i, path := range paths {
		glog.Infof("source %d [%s]", i, path)
	}

	sources, err := OpenSources(paths)
	if err != nil {
		return err
	}

	region, err := BuildArea(opts)
	if err != nil {
		return err
	}
	glog.Infof("area %s", region)

	if opts.GetCandidates || opts.Command == extract.CommandCandidates {
		var numCandidates int64
		for _, source := range sources {
			n, err := GetNumCandidates(source, region, opts.MinLevel, opts.MaxLevel)
			if err != nil {
				return err
			}
			numCandidates += n
		}
		fmt.Println(tools.FormatNumber(numCandidates))
		return nil
	}

	return e.extract(ctx, opts, sources, region)
}

func (e *Extractor) extract(ctx context.Context, opts *extract.ExtractOptions, sources []*potree.Source, region *area.Area) (err error) {
	profile := opts.Command == extract.CommandExtractProfile

	sourceStats := potree.ComputeStats(sources)
	scale, offset := potree.ComputeScaleOffset(sourceStats.AABB, sourceStats.Scale)

	outputAttributes, err := ComputeOutputAttributes(sources, opts.OutputAttributes, profile)
	if err != nil {
		return err
	}
	outputAttributes.PosScale = scale
	outputAttributes.PosOffset = offset

	if err := tools.PrepareOutputPath(opts.Output); err != nil {
		return err
	}
	w, err := e.algorithmManager.GetWriter(outputAttributes, writer.Options{
		Scale:     scale,
		Offset:    offset,
		Elevation: e.algorithmManager.GetElevationCorrectionAlgorithm(),
	})
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, w.Close())
	}()

	pipelineOpts := PipelineOptions{
		Workers:        opts.Workers,
		DecodeAttempts: opts.DecodeAttempts,
	}

	var total Stats
	for i, source := range sources {
		tools.LogOutput("Processing point cloud " + strconv.Itoa(i+1) + "/" + strconv.Itoa(len(sources)))

		var stats Stats
		if profile {
			projector := converters.NewProfileProjector(region.Profiles)
			stats, err = ExtractProfile(ctx, source, region, projector, opts.MinLevel, opts.MaxLevel, w, pipelineOpts)
		} else {
			stats, err = FilterPointcloud(ctx, source, region, opts.MinLevel, opts.MaxLevel, w, pipelineOpts)
		}
		if err != nil {
			return err
		}
		logStats(source.Dir, stats)
		total.Add(stats)
	}

	if len(sources) > 1 {
		logStats("total", total)
	}
	tools.LogOutput("> done extracting", total.Accepted, "points")
	return nil
}

// Keeps the points inside region, appends their projection on the profiles
// of projector and forwards them to sink
func ExtractProfile(ctx context.Context, source *potree.Source, region *area.Area, projector *converters.ProfileProjector, minLevel, maxLevel int, sink Sink, opts PipelineOptions) (Stats, error) {
	var accepted []int
	var numAccepted, numRejected int64

	// the load sink runs under the pipeline lock, accepted can be shared
	stats, err := LoadPoints(ctx, source, region, minLevel, maxLevel, func(node *octree.Node, points *data.Points) error {
		accepted = accepted[:0]
		for i := 0; i < points.NumPoints; i++ {
			if region.Contains(points.Position(i)) {
				accepted = append(accepted, i)
			}
		}
		rejected := int64(points.NumPoints - len(accepted))
		points.Compact(accepted)

		projected, err := projector.Apply(points)
		if err != nil {
			return errors.Wrapf(err, "projecting node %s", node.Name)
		}

		numAccepted += int64(len(accepted))
		numRejected += rejected
		return sink.Write(node, projected, int64(len(accepted)), rejected)
	}, opts)

	stats.Accepted = numAccepted
	stats.Rejected = numRejected
	return stats, err
}

func logStats(name string, stats Stats) {
	glog.Infof("%s: %d candidate nodes, %d nodes read, %d points decoded, %d accepted, %d rejected in %s",
		name, stats.Candidates, stats.Nodes, stats.Points, stats.Accepted, stats.Rejected, stats.Duration)
}

// Opens every source, all the invalid ones are reported together
func OpenSources(paths []string) ([]*potree.Source, error) {
	var sources []*potree.Source
	var errs error
	for _, path := range paths {
		source, err := potree.Open(path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		sources = append(sources, source)
	}
	if errs != nil {
		return nil, errs
	}
	return sources, nil
}

// Region of the run: the profile corridor for profile extraction, the
// parsed area text otherwise
func BuildArea(opts *extract.ExtractOptions) (*area.Area, error) {
	if opts.Command == extract.CommandExtractProfile {
		if opts.ProfileOptions == nil {
			return nil, errors.New("missing profile coordinates and width")
		}
		return ProfileArea(opts.ProfileOptions.Coordinates, opts.ProfileOptions.Width)
	}

	if strings.TrimSpace(opts.Area) == "" {
		return nil, errors.New("missing argument: --area")
	}
	return area.Parse(area.NormalizeMatrixShorthand(opts.Area))
}

// Builds a profile area from "{x0,y0},{x1,y1},..." coordinates
func ProfileArea(coordinates string, width float64) (*area.Area, error) {
	points := strings.NewReplacer("{", "[", "}", "]").Replace(coordinates)
	return area.Parse("profile(" + strconv.FormatFloat(width, 'g', -1, 64) + "," + points + ")")
}

// Union of the source attributes, the first source wins on duplicated
// names. names selects and orders the attributes, position always comes
// first. Profiles add the projected attribute.
func ComputeOutputAttributes(sources []*potree.Source, names []string, profile bool) (*attributes.Attributes, error) {
	var union []attributes.Attribute
	known := map[string]attributes.Attribute{}
	for _, source := range sources {
		for _, attr := range source.Attributes.List {
			if _, ok := known[attr.Name]; !ok {
				known[attr.Name] = attr
				union = append(union, attr)
			}
		}
	}

	position, ok := known["position"]
	if !ok {
		return nil, errors.New("sources have no position attribute")
	}
	chosen := []attributes.Attribute{position}
	picked := map[string]bool{"position": true}

	if len(names) == 0 {
		for _, attr := range union {
			names = append(names, attr.Name)
		}
	}
	for _, name := range names {
		if picked[name] {
			continue
		}
		attr, ok := known[name]
		if !ok && !(profile && name == converters.ProjectedProfileAttribute) {
			glog.Warningf("could not find attribute %q, it will be ignored", name)
			continue
		}
		if !ok {
			continue
		}
		picked[name] = true
		chosen = append(chosen, attr)
	}

	if profile && !picked[converters.ProjectedProfileAttribute] {
		chosen = append(chosen, converters.ProjectedProfile())
	}

	return attributes.NewAttributes(chosen, sources[0].Attributes.PosScale, sources[0].Attributes.PosOffset)
}
