package algorithm_manager

import (
	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/converters"
	"github.com/ecopia-map/potree_extract/internal/writer"
)

type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	GetWriter(outputAttributes *attributes.Attributes, opts writer.Options) (writer.Writer, error)
}
