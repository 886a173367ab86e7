package od

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is one stored object dictionary value.
// It holds an int64, uint64, float64, bool or string.
type Value = any

// Entry is the content of one index in the value store.
// List entries exclude subindex 0, which is derived from their length.
type Entry struct {
	List   bool
	Value  Value
	Values []Value
}

// NewValueEntry creates a scalar entry
func NewValueEntry(value Value) *Entry {
	return &Entry{Value: normalize(value)}
}

// NewListEntry creates a list entry holding values for subindexes 1..n
func NewListEntry(values ...Value) *Entry {
	entry := &Entry{List: true, Values: make([]Value, 0, len(values))}
	for _, v := range values {
		entry.Values = append(entry.Values, normalize(v))
	}
	return entry
}

// Len returns the number of stored values
func (e *Entry) Len() int {
	if e.List {
		return len(e.Values)
	}
	return 1
}

// Clone returns a copy of the entry that shares no storage
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	if e.List {
		c.Values = make([]Value, len(e.Values))
		copy(c.Values, e.Values)
	}
	return &c
}

// NormalizeValue converts any Go scalar to one of the stored value kinds
func NormalizeValue(value any) (Value, error) {
	switch v := value.(type) {
	case int64, float64, bool, string:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint:
		return normalizeUint(uint64(v)), nil
	case uint64:
		return normalizeUint(v), nil
	case float32:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrInvalidValue, value)
	}
}

func normalizeUint(v uint64) Value {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}

// normalize is NormalizeValue for values known to be scalars
func normalize(value any) Value {
	v, err := NormalizeValue(value)
	if err != nil {
		return value
	}
	return v
}

// CoerceValue converts value to the representation used by category.
// Formula strings are accepted for numeric categories.
func CoerceValue(value Value, category Category) (Value, error) {
	switch category {
	case CategoryString:
		if s, ok := value.(string); ok {
			return s, nil
		}
	case CategoryReal:
		switch v := value.(type) {
		case float64:
			return v, nil
		case int64:
			return float64(v), nil
		case uint64:
			return float64(v), nil
		case string:
			if IsFormula(v) {
				return v, nil
			}
		}
	default:
		switch v := value.(type) {
		case int64, uint64, bool:
			return v, nil
		case float64:
			if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
				return int64(v), nil
			}
		case string:
			if IsFormula(v) {
				return v, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %v (%T) is not a valid %v value", ErrTypeCoercion, value, value, category)
}

func (c Category) String() string {
	switch c {
	case CategoryString:
		return "string"
	case CategoryReal:
		return "real"
	default:
		return "integer"
	}
}

// ParseValue converts the textual form of a value, as found in profile
// files, into a value of the given data type.
func ParseValue(value string, datatype uint16) (Value, error) {
	if IsFormula(value) {
		return value, nil
	}
	switch primitiveCategory(datatype) {
	case CategoryString:
		return value, nil
	case CategoryReal:
		if value == "" {
			return float64(0), nil
		}
		return strconv.ParseFloat(value, 64)
	}
	if datatype == BOOLEAN {
		switch strings.ToLower(value) {
		case "true":
			return true, nil
		case "false", "":
			return false, nil
		}
		parsed, err := strconv.ParseUint(value, 0, 1)
		return parsed == 1, err
	}
	if value == "" {
		// Treat empty string as a 0 value
		return int64(0), nil
	}
	switch datatype {
	case UNSIGNED64:
		parsed, err := strconv.ParseUint(value, 0, 64)
		return normalizeUint(parsed), err
	}
	bits := 64
	if t, ok := LookupType(datatype); ok && t.Size > 0 {
		bits = t.Size
	}
	switch datatype {
	case INTEGER8, INTEGER16, INTEGER24, INTEGER32, INTEGER40, INTEGER48, INTEGER56, INTEGER64:
		return strconv.ParseInt(value, 0, bits)
	}
	parsed, err := strconv.ParseUint(value, 0, bits)
	return normalizeUint(parsed), err
}

// FormatValue returns the textual form of value. Integers are written in
// the given base, with a 0x prefix for base 16.
func FormatValue(value Value, base int) string {
	switch v := value.(type) {
	case int64:
		if base == 16 {
			if v < 0 {
				return "-0x" + strings.ToUpper(strconv.FormatInt(-v, 16))
			}
			return "0x" + strings.ToUpper(strconv.FormatInt(v, 16))
		}
		return strconv.FormatInt(v, base)
	case uint64:
		if base == 16 {
			return "0x" + strings.ToUpper(strconv.FormatUint(v, 16))
		}
		return strconv.FormatUint(v, base)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// IsFormula reports whether value references the node id
func IsFormula(value string) bool {
	return strings.Contains(strings.ToUpper(value), "$NODEID")
}
