package writer

import (
	"encoding/csv"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

// One row per point with a header line. Colors are printed with 8 bits per
// channel.
type CsvWriter struct {
	out       *output
	csv       *csv.Writer
	formatter *recordFormatter
	header    bool
	row       []string
}

func NewCsvWriter(out *output, attrs *attributes.Attributes, opts Options) *CsvWriter {
	return &CsvWriter{
		out:       out,
		csv:       csv.NewWriter(out),
		formatter: newRecordFormatter(attrs, opts),
	}
}

func (w *CsvWriter) writeHeader() error {
	var names []string
	for k := range w.formatter.attrs.List {
		names = append(names, w.formatter.columns(k)...)
	}
	w.header = true
	return w.csv.Write(names)
}

func (w *CsvWriter) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	if !w.header {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}

	w.formatter.bind(points)
	for i := 0; i < points.NumPoints; i++ {
		w.row = w.row[:0]
		for k, attr := range w.formatter.attrs.List {
			for _, v := range w.formatter.values(points, k, i) {
				if attr.Name == "rgb" || attr.Name == "rgba" {
					w.row = append(w.row, strconv.Itoa(to8Bit(v)))
					continue
				}
				w.row = append(w.row, w.formatter.format(k, v))
			}
		}
		if err := w.csv.Write(w.row); err != nil {
			return errors.Wrapf(err, "writing csv row of node %s", node.Name)
		}
	}
	return nil
}

func (w *CsvWriter) Close() error {
	var err error
	if !w.header {
		err = w.writeHeader()
	}
	w.csv.Flush()
	return multierr.Combine(err, w.csv.Error(), w.out.Close())
}

// 16 bit colors are reduced to 8 bits, values already in 8 bit range are kept
func to8Bit(v float64) int {
	c := int(v)
	if c > 255 {
		return c / 256
	}
	return c
}
