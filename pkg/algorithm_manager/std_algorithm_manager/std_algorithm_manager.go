package std_algorithm_manager

import (
	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/converters"
	"github.com/ecopia-map/potree_extract/internal/converters/elevation"
	"github.com/ecopia-map/potree_extract/internal/extract"
	"github.com/ecopia-map/potree_extract/internal/writer"
	"github.com/ecopia-map/potree_extract/pkg/algorithm_manager"
)

type StandardAlgorithmManager struct {
	options             *extract.ExtractOptions
	elevationCorrection converters.ElevationCorrector
}

func NewAlgorithmManager(opts *extract.ExtractOptions) algorithm_manager.AlgorithmManager {
	var elevationCorrection converters.ElevationCorrector
	if opts.ZOffset != 0 {
		elevationCorrection = elevation.NewOffset(opts.ZOffset)
	}

	return &StandardAlgorithmManager{
		options:             opts,
		elevationCorrection: elevationCorrection,
	}
}

// nil when no correction is configured
func (am *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return am.elevationCorrection
}

// Opens the writer selected by the output format or, when unset, by the
// extension of the output path
func (am *StandardAlgorithmManager) GetWriter(outputAttributes *attributes.Attributes, opts writer.Options) (writer.Writer, error) {
	format, err := writer.ResolveFormat(am.options.Format, am.options.Output)
	if err != nil {
		return nil, err
	}
	if opts.Elevation == nil {
		opts.Elevation = am.elevationCorrection
	}
	return writer.New(format, am.options.Output, outputAttributes, opts)
}
