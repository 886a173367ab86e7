package od

import (
	"fmt"
	"strconv"
	"strings"
)

// Struct describes the structural kind of an object.
// It is composed from four orthogonal bits.
type Struct uint8

const (
	HasSubindex         Struct = 0x01
	MultipleSubindexes  Struct = 0x02
	IdenticalSubindexes Struct = 0x04
	IdenticalIndexes    Struct = 0x08
)

const (
	StructNoSub   Struct = 0x00 // Type entries only
	StructVAR     Struct = HasSubindex
	StructRECORD  Struct = HasSubindex | MultipleSubindexes
	StructARRAY   Struct = HasSubindex | MultipleSubindexes | IdenticalSubindexes
	StructNVAR    Struct = StructVAR | IdenticalIndexes
	StructNRECORD Struct = StructRECORD | IdenticalIndexes
	StructNARRAY  Struct = StructARRAY | IdenticalIndexes
)

var structNames = map[Struct]string{
	StructVAR:     "var",
	StructRECORD:  "record",
	StructARRAY:   "array",
	StructNVAR:    "nvar",
	StructNRECORD: "nrecord",
	StructNARRAY:  "narray",
}

func (s Struct) String() string {
	if name, ok := structNames[s]; ok {
		return name
	}
	return "0x" + strconv.FormatUint(uint64(s), 16)
}

// Valid reports whether s is one of the six object kinds
func (s Struct) Valid() bool {
	_, ok := structNames[s]
	return ok
}

func (s Struct) Has(flag Struct) bool {
	return s&flag == flag
}

// IsList reports whether values of this kind are stored as a list
func (s Struct) IsList() bool {
	return s.Has(MultipleSubindexes)
}

// ParseStruct accepts either the text form ("record") or the numeric kind
func ParseStruct(raw string) (Struct, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	for s, n := range structNames {
		if n == name {
			return s, nil
		}
	}
	v, err := strconv.ParseUint(name, 0, 8)
	if err != nil || !Struct(v).Valid() {
		return 0, fmt.Errorf("unknown struct %q", raw)
	}
	return Struct(v), nil
}

// Access mode of a subentry
type Access string

const (
	AccessRO Access = "ro"
	AccessWO Access = "wo"
	AccessRW Access = "rw"
)

func (a Access) Valid() bool {
	return a == AccessRO || a == AccessWO || a == AccessRW
}

// Group names an ownership layer of a definition
type Group string

const (
	GroupProfile Group = "profile"
	GroupDS302   Group = "ds302"
	GroupUser    Group = "user"
	GroupBuiltin Group = "built-in"
)

// Groups ordered by lookup priority
var Groups = []Group{GroupProfile, GroupDS302, GroupUser, GroupBuiltin}

func (g Group) Valid() bool {
	switch g {
	case GroupProfile, GroupDS302, GroupUser, GroupBuiltin:
		return true
	}
	return false
}

// Node types
const (
	NodeMaster = "master"
	NodeSlave  = "slave"
)

const (
	IndexRpdoCommunicationBase = uint16(0x1400)
	IndexRpdoMappingBase       = uint16(0x1600)
	IndexTpdoCommunicationBase = uint16(0x1800)
	IndexTpdoMappingBase       = uint16(0x1A00)
	PdoChannelCount            = uint16(0x200)
	MaxMappedEntriesPdo        = uint8(0x40)
)

// Indexes below this one are data type definitions
const IndexFirstObject = uint16(0x1000)

// Name of the implicit subindex 0 of list objects
const NumberOfEntries = "Number of Entries"
