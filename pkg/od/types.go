package od

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// CiA 301 data types, addressed by their object dictionary index
const (
	BOOLEAN        uint16 = 0x01
	INTEGER8       uint16 = 0x02
	INTEGER16      uint16 = 0x03
	INTEGER32      uint16 = 0x04
	UNSIGNED8      uint16 = 0x05
	UNSIGNED16     uint16 = 0x06
	UNSIGNED32     uint16 = 0x07
	REAL32         uint16 = 0x08
	VISIBLE_STRING uint16 = 0x09
	OCTET_STRING   uint16 = 0x0A
	UNICODE_STRING uint16 = 0x0B
	DOMAIN         uint16 = 0x0F
	INTEGER24      uint16 = 0x10
	REAL64         uint16 = 0x11
	INTEGER40      uint16 = 0x12
	INTEGER48      uint16 = 0x13
	INTEGER56      uint16 = 0x14
	INTEGER64      uint16 = 0x15
	UNSIGNED24     uint16 = 0x16
	UNSIGNED40     uint16 = 0x18
	UNSIGNED48     uint16 = 0x19
	UNSIGNED56     uint16 = 0x1A
	UNSIGNED64     uint16 = 0x1B
)

// Custom type definitions live in this range of the user mapping
const (
	CustomTypeFirst uint16 = 0xA0
	CustomTypeLast  uint16 = 0xFF
)

// TypeDef describes a primitive data type
type TypeDef struct {
	Index   uint16
	Name    string
	Size    int // in bits
	Default Value
}

var typeCatalog = map[uint16]TypeDef{
	BOOLEAN:        {BOOLEAN, "BOOLEAN", 1, false},
	INTEGER8:       {INTEGER8, "INTEGER8", 8, int64(0)},
	INTEGER16:      {INTEGER16, "INTEGER16", 16, int64(0)},
	INTEGER32:      {INTEGER32, "INTEGER32", 32, int64(0)},
	UNSIGNED8:      {UNSIGNED8, "UNSIGNED8", 8, int64(0)},
	UNSIGNED16:     {UNSIGNED16, "UNSIGNED16", 16, int64(0)},
	UNSIGNED32:     {UNSIGNED32, "UNSIGNED32", 32, int64(0)},
	REAL32:         {REAL32, "REAL32", 32, float64(0)},
	VISIBLE_STRING: {VISIBLE_STRING, "VISIBLE_STRING", 8, ""},
	OCTET_STRING:   {OCTET_STRING, "OCTET_STRING", 8, ""},
	UNICODE_STRING: {UNICODE_STRING, "UNICODE_STRING", 16, ""},
	DOMAIN:         {DOMAIN, "DOMAIN", 0, ""},
	INTEGER24:      {INTEGER24, "INTEGER24", 24, int64(0)},
	REAL64:         {REAL64, "REAL64", 64, float64(0)},
	INTEGER40:      {INTEGER40, "INTEGER40", 40, int64(0)},
	INTEGER48:      {INTEGER48, "INTEGER48", 48, int64(0)},
	INTEGER56:      {INTEGER56, "INTEGER56", 56, int64(0)},
	INTEGER64:      {INTEGER64, "INTEGER64", 64, int64(0)},
	UNSIGNED24:     {UNSIGNED24, "UNSIGNED24", 24, int64(0)},
	UNSIGNED40:     {UNSIGNED40, "UNSIGNED40", 40, int64(0)},
	UNSIGNED48:     {UNSIGNED48, "UNSIGNED48", 48, int64(0)},
	UNSIGNED56:     {UNSIGNED56, "UNSIGNED56", 56, int64(0)},
	UNSIGNED64:     {UNSIGNED64, "UNSIGNED64", 64, int64(0)},
}

// LookupType returns the primitive type stored at index
func LookupType(index uint16) (TypeDef, bool) {
	t, ok := typeCatalog[index]
	return t, ok
}

// TypeByName returns the primitive type called name, e.g. "UNSIGNED8"
func TypeByName(name string) (TypeDef, bool) {
	for _, t := range typeCatalog {
		if t.Name == name {
			return t, true
		}
	}
	return TypeDef{}, false
}

// Types returns every primitive type ordered by index
func Types() []TypeDef {
	indexes := maps.Keys(typeCatalog)
	slices.Sort(indexes)
	types := make([]TypeDef, 0, len(indexes))
	for _, index := range indexes {
		types = append(types, typeCatalog[index])
	}
	return types
}

// Type categories used when a subentry changes type
type Category uint8

const (
	CategoryOther Category = iota
	CategoryString
	CategoryReal
)

// Zero returns the zero value stored for a category
func (c Category) Zero() Value {
	switch c {
	case CategoryString:
		return ""
	case CategoryReal:
		return float64(0)
	default:
		return int64(0)
	}
}

func primitiveCategory(index uint16) Category {
	switch index {
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING, DOMAIN:
		return CategoryString
	case REAL32, REAL64:
		return CategoryReal
	default:
		return CategoryOther
	}
}

// CustomisableType is a primitive type a user type definition may derive from
type CustomisableType struct {
	Index    uint16
	Name     string
	Category uint8 // 0 numeric with range, 1 string with length
}

// CustomisableTypes returns the types allowed as base of a custom type
func CustomisableTypes() []CustomisableType {
	types := []CustomisableType{}
	for _, index := range []uint16{
		INTEGER8, INTEGER16, INTEGER32, UNSIGNED8, UNSIGNED16, UNSIGNED32, REAL32,
		INTEGER24, REAL64, INTEGER40, INTEGER48, INTEGER56, INTEGER64,
		UNSIGNED24, UNSIGNED40, UNSIGNED48, UNSIGNED56, UNSIGNED64,
	} {
		types = append(types, CustomisableType{index, typeCatalog[index].Name, 0})
	}
	for _, index := range []uint16{VISIBLE_STRING, OCTET_STRING, UNICODE_STRING} {
		types = append(types, CustomisableType{index, typeCatalog[index].Name, 1})
	}
	return types
}
