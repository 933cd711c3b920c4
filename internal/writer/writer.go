// Package writer serializes extracted point batches into output files.
//
// Writers are not safe for concurrent use, the extraction pipeline
// serializes every Write call.
package writer

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/converters"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

type Format string

const (
	FormatLAS     Format = "LAS"
	FormatCSV     Format = "CSV"
	FormatJSON    Format = "JSON"
	FormatGeoJSON Format = "GEOJSON"
	FormatCount   Format = "COUNT"
)

// Output path meaning standard output
const Stdout = "stdout"

type Writer interface {
	Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error
	Close() error
}

type Options struct {
	// Quantization of the output, decides the number of printed decimals
	Scale  r3.Vector
	Offset r3.Vector
	// Applied to every written elevation when not nil
	Elevation converters.ElevationCorrector
}

// Picks the format from its explicit name or, when empty, from the
// extension of path. Standard output defaults to CSV.
func ResolveFormat(name string, path string) (Format, error) {
	if name != "" {
		format := Format(strings.ToUpper(strings.TrimSpace(name)))
		switch format {
		case FormatLAS, FormatCSV, FormatJSON, FormatGeoJSON, FormatCount:
			return format, nil
		}
		return "", errors.Errorf("unknown output format %q", name)
	}

	if path == "" || path == Stdout {
		return FormatCSV, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".las":
		return FormatLAS, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".geojson":
		return FormatGeoJSON, nil
	}
	return "", errors.Errorf("unknown output format, extension not known: %s", path)
}

// Creates the writer for format. outputAttributes selects and orders the
// written attributes, position is always the first one.
func New(format Format, path string, outputAttributes *attributes.Attributes, opts Options) (Writer, error) {
	if format == FormatCount {
		out, err := openOutput(path)
		if err != nil {
			return nil, err
		}
		return NewCounter(out), nil
	}
	if outputAttributes.Index("position") != 0 {
		return nil, errors.New("output attributes must start with position")
	}

	if format == FormatLAS {
		if path == "" || path == Stdout {
			return nil, errors.New("LAS output needs a file path")
		}
		return NewLasWriter(path, outputAttributes, opts)
	}

	out, err := openOutput(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return NewCsvWriter(out, outputAttributes, opts), nil
	case FormatJSON:
		return NewJsonWriter(out, outputAttributes, opts), nil
	case FormatGeoJSON:
		return NewGeoJsonWriter(out, outputAttributes, opts), nil
	}

	_ = out.Close()
	return nil, errors.Errorf("unsupported output format %q", format)
}

// Buffered output that flushes on Close and never closes standard output
type output struct {
	*bufio.Writer
	closer io.Closer
}

func openOutput(path string) (*output, error) {
	if path == "" || path == Stdout {
		return &output{Writer: bufio.NewWriter(os.Stdout)}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating output %s", path)
	}
	return &output{Writer: bufio.NewWriter(file), closer: file}, nil
}

func (o *output) Close() error {
	err := o.Flush()
	if o.closer != nil {
		err = multierr.Append(err, o.closer.Close())
	}
	return err
}
