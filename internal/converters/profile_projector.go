package converters

import (
	"encoding/binary"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/ecopia-map/potree_extract/internal/attributes"
	"github.com/ecopia-map/potree_extract/internal/data"
	"github.com/ecopia-map/potree_extract/internal/geometry"
)

const ProjectedProfileAttribute = "position_projected_profile"

// Two int32 per point: distance along the profile and elevation, both
// quantized with the position scale of the batch.
func ProjectedProfile() attributes.Attribute {
	return attributes.NewAttribute(ProjectedProfileAttribute, attributes.Int32, 2)
}

// Unrolls points onto the vertical plane of a polyline
type ProfileProjector struct {
	profiles []*geometry.Profile
}

func NewProfileProjector(profiles []*geometry.Profile) *ProfileProjector {
	return &ProfileProjector{profiles: profiles}
}

// Returns the mileage and elevation of p. ok is false when no segment of any
// profile contains p.
func (pp *ProfileProjector) Project(p r3.Vector) (distance, z float64, ok bool) {
	for _, profile := range pp.profiles {
		i, local, found := profile.Locate(p)
		if found {
			return profile.Segments[i].Mileage + local.X, p.Z, true
		}
	}
	return 0, 0, false
}

// Appends the projected profile attribute to points. Points outside every
// profile are projected to (0, z).
func (pp *ProfileProjector) Apply(points *data.Points) (*data.Points, error) {
	attr := ProjectedProfile()
	scale := points.Attributes.PosScale
	buffer := make([]byte, points.NumPoints*attr.Size)

	for i := 0; i < points.NumPoints; i++ {
		distance, z, _ := pp.Project(points.Position(i))
		x, err := quantize(distance, scale.X)
		if err != nil {
			return nil, err
		}
		y, err := quantize(z, scale.Z)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(buffer[i*8:], uint32(x))
		binary.LittleEndian.PutUint32(buffer[i*8+4:], uint32(y))
	}

	return points.WithAttribute(attr, buffer)
}

func quantize(v, scale float64) (int32, error) {
	q := math.Round(v / scale)
	if q > math.MaxInt32 || q < math.MinInt32 {
		return 0, errors.Errorf("projected value %f does not fit scale %g", v, scale)
	}
	return int32(q), nil
}

// Reads back the world distance and elevation stored in a projected record
func DecodeProjected(record []byte, scale r3.Vector) (distance, z float64) {
	distance = float64(int32(binary.LittleEndian.Uint32(record[0:]))) * scale.X
	z = float64(int32(binary.LittleEndian.Uint32(record[4:]))) * scale.Z
	return distance, z
}
