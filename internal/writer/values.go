package writer

import (
	"math"
	"strconv"

	"github.com/golang/geo/r3"
	"github.com/shopspring/decimal"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/converters"
	"github.com/ecopia-map/potree_extract/internal/data"
)

const defaultPrecision = 3

// Reads the output attributes out of decoded batches. Attributes missing
// from a batch read as zeros.
type recordFormatter struct {
	attrs     *attributes.Attributes
	precision int32
	elevation converters.ElevationCorrector

	batch   *attributes.Attributes
	indices []int
}

func newRecordFormatter(attrs *attributes.Attributes, opts Options) *recordFormatter {
	return &recordFormatter{
		attrs:     attrs,
		precision: precisionOf(opts.Scale),
		elevation: opts.Elevation,
		indices:   make([]int, len(attrs.List)),
	}
}

// Number of decimals needed to print coordinates quantized with scale
func precisionOf(scale r3.Vector) int32 {
	finest := math.Min(scale.X, math.Min(scale.Y, scale.Z))
	if finest <= 0 || math.IsInf(finest, 0) || math.IsNaN(finest) {
		return defaultPrecision
	}
	digits := int32(math.Ceil(-math.Log10(finest) - 1e-9))
	if digits < 0 {
		return 0
	}
	return digits
}

// Maps output attributes to the buffers of the batch schema
func (f *recordFormatter) bind(points *data.Points) {
	if points.Attributes == f.batch {
		return
	}
	f.batch = points.Attributes
	for k, attr := range f.attrs.List {
		f.indices[k] = points.Attributes.Index(attr.Name)
	}
}

func (f *recordFormatter) position(points *data.Points, i int) r3.Vector {
	p := points.Position(i)
	if f.elevation != nil {
		p.Z = f.elevation.CorrectElevation(p.X, p.Y, p.Z)
	}
	return p
}

// Values of output attribute k for point i. bind must have been called for
// the batch.
func (f *recordFormatter) values(points *data.Points, k, i int) []float64 {
	attr := f.attrs.List[k]
	index := f.indices[k]

	switch {
	case attr.Name == "position":
		p := f.position(points, i)
		return []float64{p.X, p.Y, p.Z}
	case index < 0:
		return make([]float64, numElements(attr))
	case attr.Name == converters.ProjectedProfileAttribute:
		distance, z := converters.DecodeProjected(points.Record(index, i), points.Attributes.PosScale)
		if f.elevation != nil {
			p := points.Position(i)
			z = f.elevation.CorrectElevation(p.X, p.Y, z)
		}
		return []float64{distance, z}
	}

	n := numElements(attr)
	source := points.Attributes.List[index]
	record := points.Record(index, i)
	if source.Type == attributes.Undefined {
		return rawValues(source, record, n)
	}
	values := source.Values(record)
	if len(values) != n {
		values = append(values, make([]float64, n)...)[:n]
	}
	return values
}

// Extra bytes without a declared type. Each element is read as an unsigned
// little endian integer, at most 8 bytes wide.
func rawValues(attr attributes.Attribute, record []byte, n int) []float64 {
	out := make([]float64, n)
	stride := attr.ElementSize
	if stride <= 0 {
		stride = len(record) / n
	}
	width := stride
	if width > 8 {
		width = 8
	}
	for i := range out {
		start := i * stride
		if width == 0 || start+width > len(record) {
			break
		}
		var v uint64
		for j := width - 1; j >= 0; j-- {
			v = v<<8 | uint64(record[start+j])
		}
		out[i] = float64(v)
	}
	return out
}

func numElements(attr attributes.Attribute) int {
	if attr.NumElements < 1 {
		return 1
	}
	return attr.NumElements
}

// Column names of output attribute k, one per element
func (f *recordFormatter) columns(k int) []string {
	attr := f.attrs.List[k]
	if attr.Name == "position" {
		return []string{"x", "y", "z"}
	}
	n := numElements(attr)
	if n == 1 {
		return []string{attr.Name}
	}
	names := make([]string, n)
	for i := range names {
		names[i] = attr.Name + "_" + strconv.Itoa(i)
	}
	return names
}

func (f *recordFormatter) isCoordinate(k int) bool {
	name := f.attrs.List[k].Name
	return name == "position" || name == converters.ProjectedProfileAttribute
}

func (f *recordFormatter) format(k int, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	if f.isCoordinate(k) {
		return decimal.NewFromFloat(v).StringFixed(f.precision)
	}
	switch f.attrs.List[k].Type {
	case attributes.Float, attributes.Double, attributes.Undefined:
		return decimal.NewFromFloat(v).String()
	}
	return strconv.FormatInt(int64(v), 10)
}
