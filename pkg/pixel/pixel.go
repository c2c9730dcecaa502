// Package pixel describes the scalar pixel types a volume can hold and converts
// between typed values and the raw little-endian bytes stored in image buffers
// and diff records. Nothing in here allocates per voxel
package pixel

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// MaxSize is the largest pixel size, in bytes, any supported type occupies
const MaxSize = 8

// Type identifies the scalar type of a single-component pixel
type Type int

const (
	Uint8 Type = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
)

var typeNames = map[Type]string{
	Uint8:   "uint8",
	Int8:    "int8",
	Uint16:  "uint16",
	Int16:   "int16",
	Uint32:  "uint32",
	Int32:   "int32",
	Uint64:  "uint64",
	Int64:   "int64",
	Float32: "float32",
	Float64: "float64",
}

// String returns the lowercase Go name of the type
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("pixel.Type(%d)", int(t))
}

// Size returns the number of bytes one pixel of this type occupies
func (t Type) Size() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		panic(fmt.Sprintf("pixel: unknown type %d", int(t)))
	}
}

// IsFloat reports whether the type is a floating point type
func (t Type) IsFloat() bool {
	return t == Float32 || t == Float64
}

// ParseType converts a type name such as "int16" into a Type
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown pixel type %q", name)
}

// Number is the set of Go scalar types a pixel can be decoded to
type Number interface {
	constraints.Integer | constraints.Float
}

// Encode writes v into dst using the little-endian layout of its own type.
// dst must be at least as long as the size of T
func Encode[T Number](dst []byte, v T) {
	switch x := any(v).(type) {
	case uint8:
		dst[0] = x
	case int8:
		dst[0] = byte(x)
	case uint16:
		binary.LittleEndian.PutUint16(dst, x)
	case int16:
		binary.LittleEndian.PutUint16(dst, uint16(x))
	case uint32:
		binary.LittleEndian.PutUint32(dst, x)
	case int32:
		binary.LittleEndian.PutUint32(dst, uint32(x))
	case uint64:
		binary.LittleEndian.PutUint64(dst, x)
	case int64:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case int:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case uint:
		binary.LittleEndian.PutUint64(dst, uint64(x))
	case float32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(x))
	case float64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(x))
	default:
		panic(fmt.Sprintf("pixel: cannot encode %T", v))
	}
}

// Decode reads a T from the first bytes of src
func Decode[T Number](src []byte) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(src[0])
	case int8:
		return T(int8(src[0]))
	case uint16:
		return T(binary.LittleEndian.Uint16(src))
	case int16:
		return T(int16(binary.LittleEndian.Uint16(src)))
	case uint32:
		return T(binary.LittleEndian.Uint32(src))
	case int32:
		return T(int32(binary.LittleEndian.Uint32(src)))
	case uint64, uint:
		return T(binary.LittleEndian.Uint64(src))
	case int64, int:
		return T(int64(binary.LittleEndian.Uint64(src)))
	case float32:
		return T(math.Float32frombits(binary.LittleEndian.Uint32(src)))
	case float64:
		return T(math.Float64frombits(binary.LittleEndian.Uint64(src)))
	default:
		panic(fmt.Sprintf("pixel: cannot decode %T", zero))
	}
}

// Bytes returns a freshly allocated buffer holding v
func Bytes[T Number](v T) []byte {
	var zero T
	buf := make([]byte, sizeOf(zero))
	Encode(buf, v)
	return buf
}

func sizeOf(v any) int {
	switch v.(type) {
	case uint8, int8:
		return 1
	case uint16, int16:
		return 2
	case uint32, int32, float32:
		return 4
	default:
		return 8
	}
}

// IsZero reports whether every byte of the value is zero
func IsZero(v []byte) bool {
	for _, b := range v {
		if b != 0 {
			return false
		}
	}
	return true
}

// ToFloat64 widens a raw value of type t to float64 for reporting and display.
// Region growing compares decoded values at their native type instead
func ToFloat64(t Type, src []byte) float64 {
	switch t {
	case Uint8:
		return float64(Decode[uint8](src))
	case Int8:
		return float64(Decode[int8](src))
	case Uint16:
		return float64(Decode[uint16](src))
	case Int16:
		return float64(Decode[int16](src))
	case Uint32:
		return float64(Decode[uint32](src))
	case Int32:
		return float64(Decode[int32](src))
	case Uint64:
		return float64(Decode[uint64](src))
	case Int64:
		return float64(Decode[int64](src))
	case Float32:
		return float64(Decode[float32](src))
	case Float64:
		return Decode[float64](src)
	default:
		panic(fmt.Sprintf("pixel: unknown type %d", int(t)))
	}
}

// Parse converts the textual representation of a number into the raw bytes
// of a pixel of type t. Integers are range checked against t
func Parse(t Type, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	buf := make([]byte, t.Size())
	if t.IsFloat() {
		bits := 64
		if t == Float32 {
			bits = 32
		}
		f, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", t, s, err)
		}
		if t == Float32 {
			Encode(buf, float32(f))
		} else {
			Encode(buf, f)
		}
		return buf, nil
	}

	switch t {
	case Uint8, Uint16, Uint32, Uint64:
		u, err := strconv.ParseUint(s, 10, t.Size()*8)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", t, s, err)
		}
		switch t {
		case Uint8:
			Encode(buf, uint8(u))
		case Uint16:
			Encode(buf, uint16(u))
		case Uint32:
			Encode(buf, uint32(u))
		default:
			Encode(buf, u)
		}
	default:
		i, err := strconv.ParseInt(s, 10, t.Size()*8)
		if err != nil {
			return nil, fmt.Errorf("invalid %s value %q: %w", t, s, err)
		}
		switch t {
		case Int8:
			Encode(buf, int8(i))
		case Int16:
			Encode(buf, int16(i))
		case Int32:
			Encode(buf, int32(i))
		default:
			Encode(buf, i)
		}
	}
	return buf, nil
}

// Format renders a raw value of type t as text
func Format(t Type, v []byte) string {
	if t.IsFloat() {
		return strconv.FormatFloat(ToFloat64(t, v), 'g', -1, 64)
	}
	switch t {
	case Uint64:
		return strconv.FormatUint(Decode[uint64](v), 10)
	case Int64:
		return strconv.FormatInt(Decode[int64](v), 10)
	default:
		return strconv.FormatInt(int64(ToFloat64(t, v)), 10)
	}
}
