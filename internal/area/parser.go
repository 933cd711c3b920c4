package area

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/golang/geo/r3"

	"github.com/ecopia-map/potree_extract/internal/geometry"
)

// Returned for any malformed area text. Parsing never partially succeeds.
type ParseError struct {
	Clause string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Clause == "" {
		return "could not parse area: " + e.Reason
	}
	return fmt.Sprintf("could not parse area clause %q: %s", e.Clause, e.Reason)
}

func parseErrorf(clause string, format string, args ...interface{}) *ParseError {
	return &ParseError{Clause: clause, Reason: fmt.Sprintf(format, args...)}
}

var braceGroup = regexp.MustCompile(`\{([^{}]*)\}`)

// Rewrites every {m0,...,m15} group into a matrix(m0,...,m15) clause
func NormalizeMatrixShorthand(text string) string {
	return braceGroup.ReplaceAllString(stripSpaces(text), "matrix($1)")
}

// Parses a sequence of minmax(...), matrix(...) and profile(...) clauses.
// Clauses may appear in any order, separated by optional commas.
func Parse(text string) (*Area, error) {
	text = stripSpaces(text)
	if text == "" {
		return nil, &ParseError{Reason: "empty area"}
	}

	area := &Area{}
	for pos := 0; pos < len(text); {
		if text[pos] == ',' {
			pos++
			continue
		}

		open := strings.IndexByte(text[pos:], '(')
		if open < 0 {
			return nil, parseErrorf(text[pos:], "expected a clause name followed by '('")
		}
		name := strings.ToLower(text[pos : pos+open])
		end := strings.IndexByte(text[pos+open:], ')')
		if end < 0 {
			return nil, parseErrorf(text[pos:], "missing closing parenthesis")
		}
		clause := text[pos : pos+open+end+1]
		body := text[pos+open+1 : pos+open+end]
		pos += open + end + 1

		var err error
		switch name {
		case "minmax":
			err = parseMinMax(area, clause, body)
		case "matrix":
			err = parseMatrix(area, clause, body)
		case "profile":
			err = parseProfile(area, clause, body)
		default:
			err = parseErrorf(clause, "unknown clause %q", name)
		}
		if err != nil {
			return nil, err
		}
	}

	return area, nil
}

func parseMinMax(area *Area, clause, body string) error {
	arrays, rest, err := splitArrays(clause, body)
	if err != nil {
		return err
	}
	if len(arrays) != 2 || rest != "" {
		return parseErrorf(clause, "expected two minmax arrays, got %d", len(arrays))
	}

	box := geometry.InfiniteAABB()
	min, err := parseCorner(clause, "min", arrays[0], box.Min)
	if err != nil {
		return err
	}
	max, err := parseCorner(clause, "max", arrays[1], box.Max)
	if err != nil {
		return err
	}

	area.AddMinMax(geometry.NewAABB(min, max))
	return nil
}

// Parses [x,y] or [x,y,z]; a missing z keeps the value of fallback
func parseCorner(clause, which string, array []string, fallback r3.Vector) (r3.Vector, error) {
	if len(array) != 2 && len(array) != 3 {
		return r3.Vector{}, parseErrorf(clause, "expected two or three %s values, got %d", which, len(array))
	}
	values, err := parseFloats(clause, array)
	if err != nil {
		return r3.Vector{}, err
	}
	corner := r3.Vector{X: values[0], Y: values[1], Z: fallback.Z}
	if len(values) == 3 {
		corner.Z = values[2]
	}
	return corner, nil
}

func parseMatrix(area *Area, clause, body string) error {
	tokens := splitTopLevel(body)
	if len(tokens) != 16 {
		return parseErrorf(clause, "expected 16 matrix component values, got %d", len(tokens))
	}
	values, err := parseFloats(clause, tokens)
	if err != nil {
		return err
	}

	var m geometry.Mat4
	copy(m[:], values)
	box, err := geometry.NewOrientedBox(m)
	if err != nil {
		return parseErrorf(clause, "%v", err)
	}
	area.AddOrientedBox(box)
	return nil
}

func parseProfile(area *Area, clause, body string) error {
	tokens := splitTopLevel(body)
	if len(tokens) < 3 {
		return parseErrorf(clause, "expected a width and at least two points")
	}
	width, err := parseFloat(clause, tokens[0])
	if err != nil {
		return err
	}
	if width <= 0 || math.IsInf(width, 0) {
		return parseErrorf(clause, "profile width must be a positive number, got %v", width)
	}

	for _, token := range tokens[1:] {
		if token == "" {
			return parseErrorf(clause, "empty profile point")
		}
	}

	arrays, rest, err := splitArrays(clause, strings.Join(tokens[1:], ","))
	if err != nil {
		return err
	}
	if rest != "" || len(arrays) < 2 {
		return parseErrorf(clause, "expected at least two [x,y] points")
	}

	points := make([]r3.Vector, len(arrays))
	for i, array := range arrays {
		if len(array) != 2 {
			return parseErrorf(clause, "expected two values per profile point, got %d", len(array))
		}
		values, err := parseFloats(clause, array)
		if err != nil {
			return err
		}
		points[i] = r3.Vector{X: values[0], Y: values[1]}
	}

	area.AddProfile(geometry.NewProfile(points, width))
	return nil
}

// Extracts the [..] groups of a comma separated list. Whatever does not
// belong to a group is returned as rest.
func splitArrays(clause, body string) ([][]string, string, error) {
	var arrays [][]string
	var rest strings.Builder
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '[':
			end := strings.IndexByte(body[i:], ']')
			if end < 0 {
				return nil, "", parseErrorf(clause, "missing closing bracket")
			}
			arrays = append(arrays, splitTopLevel(body[i+1:i+end]))
			i += end
		case ',':
		default:
			rest.WriteByte(body[i])
		}
	}
	return arrays, rest.String(), nil
}

// Splits on commas that are not nested inside brackets
func splitTopLevel(body string) []string {
	var tokens []string
	depth := 0
	start := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				tokens = append(tokens, body[start:i])
				start = i + 1
			}
		}
	}
	return append(tokens, body[start:])
}

func parseFloats(clause string, tokens []string) ([]float64, error) {
	values := make([]float64, len(tokens))
	for i, token := range tokens {
		v, err := parseFloat(clause, token)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func parseFloat(clause, token string) (float64, error) {
	if token == "" {
		return 0, parseErrorf(clause, "empty value")
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) {
		return 0, parseErrorf(clause, "invalid number %q", token)
	}
	return v, nil
}

func stripSpaces(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
}
