package writer

import (
	"encoding/binary"

	"github.com/edaniels/lidario"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

// Writes point format 2 when rgb is among the output attributes, point
// format 0 otherwise. Intensity and classification are copied when present.
type LasWriter struct {
	path      string
	file      *lidario.LasFile
	formatter *recordFormatter
	hasColor  bool

	batch          *attributes.Attributes
	intensity      int
	classification int
	rgb            int
}

func NewLasWriter(path string, attrs *attributes.Attributes, opts Options) (*LasWriter, error) {
	file, err := lidario.NewLasFile(path, "w")
	if err != nil {
		return nil, errors.Wrapf(err, "creating las file %s", path)
	}

	hasColor := attrs.Index("rgb") >= 0
	pointFormatID := 0
	if hasColor {
		pointFormatID = 2
	}
	if err := file.AddHeader(lidario.LasHeader{
		PointFormatID: byte(pointFormatID),
	}); err != nil {
		return nil, multierr.Append(err, file.Close())
	}

	return &LasWriter{
		path:      path,
		file:      file,
		formatter: newRecordFormatter(attrs, opts),
		hasColor:  hasColor,
	}, nil
}

func (w *LasWriter) bind(points *data.Points) {
	w.formatter.bind(points)
	if points.Attributes == w.batch {
		return
	}
	w.batch = points.Attributes
	w.intensity = points.Attributes.Index("intensity")
	w.classification = points.Attributes.Index("classification")
	w.rgb = points.Attributes.Index("rgb")
}

func (w *LasWriter) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	w.bind(points)
	for i := 0; i < points.NumPoints; i++ {
		p := w.formatter.position(points, i)
		pr0 := &lidario.PointRecord0{
			X: p.X,
			Y: p.Y,
			Z: p.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}
		if w.intensity >= 0 {
			pr0.Intensity = uint16(readUint(points.Record(w.intensity, i)))
		}
		if w.classification >= 0 {
			pr0.ClassBitField = lidario.ClassificationBitField{
				Value: byte(readUint(points.Record(w.classification, i))),
			}
		}

		var lp lidario.LasPointer = pr0
		if w.hasColor {
			rgb := &lidario.RgbData{}
			if w.rgb >= 0 {
				record := points.Record(w.rgb, i)
				rgb.Red = binary.LittleEndian.Uint16(record[0:])
				rgb.Green = binary.LittleEndian.Uint16(record[2:])
				rgb.Blue = binary.LittleEndian.Uint16(record[4:])
			}
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB:          rgb,
			}
		}

		if err := w.file.AddLasPoint(lp); err != nil {
			return errors.Wrapf(err, "adding point of node %s to %s", node.Name, w.path)
		}
	}
	return nil
}

func (w *LasWriter) Close() error {
	return errors.Wrapf(w.file.Close(), "closing las file %s", w.path)
}

// First element of an unsigned record, whatever its width
func readUint(record []byte) uint64 {
	switch len(record) {
	case 0:
		return 0
	case 1:
		return uint64(record[0])
	case 2, 3:
		return uint64(binary.LittleEndian.Uint16(record))
	case 4, 5, 6, 7:
		return uint64(binary.LittleEndian.Uint32(record))
	}
	return binary.LittleEndian.Uint64(record)
}
