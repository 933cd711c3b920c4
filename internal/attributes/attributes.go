package attributes

import (
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

type Type int

const (
	Undefined Type = iota
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float
	Double
)

var typeNames = map[Type]string{
	Int8:   "int8",
	Int16:  "int16",
	Int32:  "int32",
	Int64:  "int64",
	Uint8:  "uint8",
	Uint16: "uint16",
	Uint32: "uint32",
	Uint64: "uint64",
	Float:  "float",
	Double: "double",
}

var typeSizes = map[Type]int{
	Int8:   1,
	Int16:  2,
	Int32:  4,
	Int64:  8,
	Uint8:  1,
	Uint16: 2,
	Uint32: 4,
	Uint64: 8,
	Float:  4,
	Double: 8,
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "undefined"
}

// Size in bytes of one element of this type, 0 for Undefined
func (t Type) Size() int {
	return typeSizes[t]
}

func ParseType(name string) Type {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == normalized {
			return t
		}
	}
	return Undefined
}

// A named, fixed size field of a point record
type Attribute struct {
	Name        string
	Description string
	Size        int
	NumElements int
	ElementSize int
	Type        Type
	Min         []float64
	Max         []float64
}

func NewAttribute(name string, t Type, numElements int) Attribute {
	return Attribute{
		Name:        name,
		Size:        t.Size() * numElements,
		NumElements: numElements,
		ElementSize: t.Size(),
		Type:        t,
	}
}

// Ordered point layout plus the position quantization parameters.
// Bytes is the stride of an interleaved point record.
type Attributes struct {
	List      []Attribute
	Bytes     int
	PosScale  r3.Vector
	PosOffset r3.Vector

	index   map[string]int
	offsets []int
}

func NewAttributes(list []Attribute, scale, offset r3.Vector) (*Attributes, error) {
	a := &Attributes{
		List:      make([]Attribute, len(list)),
		PosScale:  scale,
		PosOffset: offset,
		index:     make(map[string]int, len(list)),
		offsets:   make([]int, len(list)),
	}
	copy(a.List, list)

	for i, attr := range a.List {
		if attr.Size <= 0 {
			return nil, errors.Errorf("attribute %q has invalid size %d", attr.Name, attr.Size)
		}
		if _, dup := a.index[attr.Name]; dup {
			return nil, errors.Errorf("attribute %q is declared twice", attr.Name)
		}
		a.index[attr.Name] = i
		a.offsets[i] = a.Bytes
		a.Bytes += attr.Size
	}

	return a, nil
}

// Index of the attribute in List, -1 if missing
func (a *Attributes) Index(name string) int {
	if i, ok := a.index[name]; ok {
		return i
	}
	return -1
}

// Byte offset of the attribute inside an interleaved record, -1 if missing
func (a *Attributes) Offset(name string) int {
	i := a.Index(name)
	if i < 0 {
		return -1
	}
	return a.offsets[i]
}

func (a *Attributes) OffsetAt(i int) int {
	return a.offsets[i]
}

func (a *Attributes) Get(name string) (Attribute, bool) {
	i := a.Index(name)
	if i < 0 {
		return Attribute{}, false
	}
	return a.List[i], true
}

// Returns a copy of the schema extended with one more attribute
func (a *Attributes) With(attr Attribute) (*Attributes, error) {
	list := append(append([]Attribute{}, a.List...), attr)
	return NewAttributes(list, a.PosScale, a.PosOffset)
}
