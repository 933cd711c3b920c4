package area

import (
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/ecopia-map/potree_extract/internal/geometry"
)

// Union of boxes, oriented boxes and profiles. A node or a point belongs to
// the area if it belongs to any of its members. Read only once built.
type Area struct {
	MinMaxes      []geometry.AABB
	OrientedBoxes []*geometry.OrientedBox
	Profiles      []*geometry.Profile
}

// Area that matches the whole space
func All() *Area {
	return &Area{MinMaxes: []geometry.AABB{geometry.InfiniteAABB()}}
}

func (a *Area) Empty() bool {
	return len(a.MinMaxes) == 0 && len(a.OrientedBoxes) == 0 && len(a.Profiles) == 0
}

func (a *Area) AddMinMax(box geometry.AABB) {
	a.MinMaxes = append(a.MinMaxes, box)
}

func (a *Area) AddOrientedBox(box *geometry.OrientedBox) {
	a.OrientedBoxes = append(a.OrientedBoxes, box)
}

func (a *Area) AddProfile(profile *geometry.Profile) {
	a.Profiles = append(a.Profiles, profile)
}

// Node level pre filter. An empty area intersects nothing.
func (a *Area) IntersectsAABB(aabb geometry.AABB) bool {
	for _, box := range a.MinMaxes {
		if box.Intersects(aabb) {
			return true
		}
	}
	for _, obb := range a.OrientedBoxes {
		if obb.Intersects(aabb) {
			return true
		}
	}
	for _, profile := range a.Profiles {
		if profile.Intersects(aabb) {
			return true
		}
	}
	return false
}

// Point level predicate
func (a *Area) Contains(p r3.Vector) bool {
	for _, box := range a.MinMaxes {
		if box.Contains(p) {
			return true
		}
	}
	for _, obb := range a.OrientedBoxes {
		if obb.Inside(p) {
			return true
		}
	}
	for _, profile := range a.Profiles {
		if profile.Inside(p) {
			return true
		}
	}
	return false
}

// Formats the area with the same grammar accepted by Parse
func (a *Area) String() string {
	clauses := make([]string, 0, len(a.MinMaxes)+len(a.OrientedBoxes)+len(a.Profiles))

	for _, box := range a.MinMaxes {
		clauses = append(clauses, "minmax("+formatCorner(box.Min)+","+formatCorner(box.Max)+")")
	}
	for _, obb := range a.OrientedBoxes {
		values := make([]string, len(obb.Box))
		for i, v := range obb.Box {
			values[i] = formatFloat(v)
		}
		clauses = append(clauses, "matrix("+strings.Join(values, ",")+")")
	}
	for _, profile := range a.Profiles {
		parts := []string{formatFloat(profile.Width)}
		for _, p := range profile.Points {
			parts = append(parts, "["+formatFloat(p.X)+","+formatFloat(p.Y)+"]")
		}
		clauses = append(clauses, "profile("+strings.Join(parts, ",")+")")
	}

	return strings.Join(clauses, ",")
}

func formatCorner(v r3.Vector) string {
	return "[" + formatFloat(v.X) + "," + formatFloat(v.Y) + "," + formatFloat(v.Z) + "]"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
