package writer

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/octree"
)

// Streams a JSON array with one object per point. Multi element attributes
// are written as arrays.
type JsonWriter struct {
	out       *output
	formatter *recordFormatter
	keys      []string
	count     int64
}

func NewJsonWriter(out *output, attrs *attributes.Attributes, opts Options) *JsonWriter {
	keys := make([]string, len(attrs.List))
	for k, attr := range attrs.List {
		key, _ := json.Marshal(strings.ReplaceAll(attr.Name, " ", "_"))
		keys[k] = string(key)
	}
	return &JsonWriter{
		out:       out,
		formatter: newRecordFormatter(attrs, opts),
		keys:      keys,
	}
}

func (w *JsonWriter) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	w.formatter.bind(points)
	for i := 0; i < points.NumPoints; i++ {
		if w.count == 0 {
			w.out.WriteString("[\n")
		} else {
			w.out.WriteString(",\n")
		}
		w.count++

		w.out.WriteByte('{')
		for k, attr := range w.formatter.attrs.List {
			if k > 0 {
				w.out.WriteString(", ")
			}
			w.out.WriteString(w.keys[k])
			w.out.WriteString(": ")

			values := w.formatter.values(points, k, i)
			multi := attr.Name == "position" || len(values) > 1
			if multi {
				w.out.WriteByte('[')
			}
			for j, v := range values {
				if j > 0 {
					w.out.WriteString(", ")
				}
				w.out.WriteString(w.number(k, v))
			}
			if multi {
				w.out.WriteByte(']')
			}
		}
		if _, err := w.out.WriteString("}"); err != nil {
			return errors.Wrapf(err, "writing json of node %s", node.Name)
		}
	}
	return nil
}

func (w *JsonWriter) number(k int, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "null"
	}
	return w.formatter.format(k, v)
}

func (w *JsonWriter) Close() error {
	var err error
	if w.count == 0 {
		_, err = w.out.WriteString("[]\n")
	} else {
		_, err = w.out.WriteString("\n]\n")
	}
	return multierr.Append(err, w.out.Close())
}

// Collects one Point feature per point and writes the FeatureCollection on
// Close. The elevation and the other attributes go into the properties.
type GeoJsonWriter struct {
	out       *output
	formatter *recordFormatter
	fc        *geojson.FeatureCollection
}

func NewGeoJsonWriter(out *output, attrs *attributes.Attributes, opts Options) *GeoJsonWriter {
	return &GeoJsonWriter{
		out:       out,
		formatter: newRecordFormatter(attrs, opts),
		fc:        geojson.NewFeatureCollection(),
	}
}

func (w *GeoJsonWriter) Write(node *octree.Node, points *data.Points, numAccepted, numRejected int64) error {
	w.formatter.bind(points)
	for i := 0; i < points.NumPoints; i++ {
		p := w.formatter.position(points, i)
		feature := geojson.NewFeature(orb.Point{p.X, p.Y})
		feature.Properties["z"] = p.Z
		feature.Properties["node"] = node.Name

		for k, attr := range w.formatter.attrs.List {
			if attr.Name == "position" {
				continue
			}
			values := finite(w.formatter.values(points, k, i))
			name := strings.ReplaceAll(attr.Name, " ", "_")
			if len(values) == 1 {
				feature.Properties[name] = values[0]
			} else {
				feature.Properties[name] = values
			}
		}
		w.fc.Append(feature)
	}
	return nil
}

func (w *GeoJsonWriter) Close() error {
	raw, err := w.fc.MarshalJSON()
	if err == nil {
		_, err = w.out.Write(raw)
	}
	return multierr.Append(err, w.out.Close())
}

// json cannot encode NaN or infinities
func finite(values []float64) []float64 {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			values[i] = 0
		}
	}
	return values
}
