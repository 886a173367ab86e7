package od

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func sub(name string, datatype uint16, access Access, pdo bool) SubentryDef {
	return SubentryDef{Name: name, Type: datatype, Access: access, PDO: pdo}
}

func subNbMax(name string, datatype uint16, access Access, nbmin int, nbmax int) SubentryDef {
	return SubentryDef{Name: name, Type: datatype, Access: access, NbMin: nbmin, NbMax: nbmax}
}

func subDefault(name string, datatype uint16, access Access, def string) SubentryDef {
	return SubentryDef{Name: name, Type: datatype, Access: access, Default: def}
}

func noe(access Access) SubentryDef {
	return sub(NumberOfEntries, UNSIGNED8, access, false)
}

func variable(name string, datatype uint16, access Access, pdo bool) *ObjectDef {
	return &ObjectDef{Name: name, Struct: StructVAR, Values: []SubentryDef{sub(name, datatype, access, pdo)}}
}

func withNeed(def *ObjectDef) *ObjectDef {
	def.Need = true
	return def
}

func withCallback(def *ObjectDef) *ObjectDef {
	callback := true
	def.Callback = &callback
	return def
}

func pdoParameter(name string, cobid string) *ObjectDef {
	return &ObjectDef{
		Name: name, Struct: StructNRECORD, Incr: 1, NbMax: int(PdoChannelCount),
		Values: []SubentryDef{
			sub("Highest SubIndex Supported", UNSIGNED8, AccessRO, false),
			subDefault("COB ID used by PDO", UNSIGNED32, AccessRW, cobid),
			sub("Transmission Type", UNSIGNED8, AccessRW, false),
			sub("Inhibit Time", UNSIGNED16, AccessRW, false),
			sub("Compatibility Entry", UNSIGNED8, AccessRW, false),
			sub("Event Timer", UNSIGNED16, AccessRW, false),
			sub("SYNC start value", UNSIGNED8, AccessRW, false),
		},
	}
}

func pdoMapping(name string, entry string) *ObjectDef {
	return &ObjectDef{
		Name: name, Struct: StructNARRAY, Incr: 1, NbMax: int(PdoChannelCount),
		Values: []SubentryDef{
			noe(AccessRW),
			subNbMax(entry, UNSIGNED32, AccessRW, 0, int(MaxMappedEntriesPdo)),
		},
	}
}

// CiA 301 communication profile objects
var objectCatalog = map[uint16]*ObjectDef{
	0x1000: withNeed(variable("Device Type", UNSIGNED32, AccessRO, false)),
	0x1001: withNeed(variable("Error Register", UNSIGNED8, AccessRO, true)),
	0x1002: variable("Manufacturer Status Register", UNSIGNED32, AccessRO, true),
	0x1003: withCallback(&ObjectDef{Name: "Pre-defined Error Field", Struct: StructARRAY, Values: []SubentryDef{
		sub("Number of Errors", UNSIGNED8, AccessRW, false),
		subNbMax("Standard Error Field", UNSIGNED32, AccessRO, 1, 0xFE),
	}}),
	0x1005: withCallback(variable("SYNC COB ID", UNSIGNED32, AccessRW, false)),
	0x1006: withCallback(&ObjectDef{Name: "Communication / Cycle Period", Struct: StructVAR, Values: []SubentryDef{
		sub("Communication Cycle Period", UNSIGNED32, AccessRW, false),
	}}),
	0x1007: variable("Synchronous Window Length", UNSIGNED32, AccessRW, false),
	0x1008: variable("Manufacturer Device Name", VISIBLE_STRING, AccessRO, false),
	0x1009: variable("Manufacturer Hardware Version", VISIBLE_STRING, AccessRO, false),
	0x100A: variable("Manufacturer Software Version", VISIBLE_STRING, AccessRO, false),
	0x100C: variable("Guard Time", UNSIGNED16, AccessRW, false),
	0x100D: variable("Life Time Factor", UNSIGNED8, AccessRW, false),
	0x1010: {Name: "Store parameters", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("Save All Parameters", UNSIGNED32, AccessRW, false),
		sub("Save Communication Parameters", UNSIGNED32, AccessRW, false),
		sub("Save Application Parameters", UNSIGNED32, AccessRW, false),
		subNbMax("Save Manufacturer Parameters %d[(sub - 3)]", UNSIGNED32, AccessRW, 0, 0x7C),
	}},
	0x1011: {Name: "Restore Default Parameters", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("Restore All Default Parameters", UNSIGNED32, AccessRW, false),
		sub("Restore Communication Default Parameters", UNSIGNED32, AccessRW, false),
		sub("Restore Application Default Parameters", UNSIGNED32, AccessRW, false),
		subNbMax("Restore Manufacturer Defined Default Parameters %d[(sub - 3)]", UNSIGNED32, AccessRW, 0, 0x7C),
	}},
	0x1012: variable("TIME COB ID", UNSIGNED32, AccessRW, false),
	0x1013: {Name: "High Resolution Timestamp", Struct: StructVAR, Values: []SubentryDef{
		sub("High Resolution Time Stamp", UNSIGNED32, AccessRW, true),
	}},
	0x1014: {Name: "Emergency COB ID", Struct: StructVAR, Values: []SubentryDef{
		subDefault("Emergency COB ID", UNSIGNED32, AccessRW, `"$NODEID+0x80"`),
	}},
	0x1015: variable("Inhibit Time Emergency", UNSIGNED16, AccessRW, false),
	0x1016: {Name: "Consumer Heartbeat Time", Struct: StructARRAY, Values: []SubentryDef{
		noe(AccessRO),
		subNbMax("Consumer Heartbeat Time", UNSIGNED32, AccessRW, 1, 0x7F),
	}},
	0x1017: withCallback(variable("Producer Heartbeat Time", UNSIGNED16, AccessRW, false)),
	0x1018: withNeed(&ObjectDef{Name: "Identity", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("Vendor ID", UNSIGNED32, AccessRO, false),
		sub("Product Code", UNSIGNED32, AccessRO, false),
		sub("Revision Number", UNSIGNED32, AccessRO, false),
		sub("Serial Number", UNSIGNED32, AccessRO, false),
	}}),
	0x1019: variable("Synchronous counter overflow value", UNSIGNED8, AccessRW, false),
	0x1020: {Name: "Verify Configuration", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("Configuration Date", UNSIGNED32, AccessRW, false),
		sub("Configuration Time", UNSIGNED32, AccessRW, false),
	}},
	0x1023: {Name: "OS Command", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("Command", OCTET_STRING, AccessRW, false),
		sub("Status", UNSIGNED8, AccessRO, false),
		sub("Reply", OCTET_STRING, AccessRO, false),
	}},
	0x1024: variable("OS Command Mode", UNSIGNED8, AccessWO, false),
	0x1025: {Name: "OS Debugger Interface", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("Command", OCTET_STRING, AccessRW, false),
		sub("Status", UNSIGNED8, AccessRO, false),
		sub("Reply", OCTET_STRING, AccessRO, false),
	}},
	0x1026: {Name: "OS Prompt", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("StdIn", UNSIGNED8, AccessWO, true),
		sub("StdOut", UNSIGNED8, AccessRO, true),
		sub("StdErr", UNSIGNED8, AccessRO, true),
	}},
	0x1027: {Name: "Module List", Struct: StructARRAY, Values: []SubentryDef{
		sub("Number of Connected Modules", UNSIGNED8, AccessRO, false),
		subNbMax("Module %d[(sub)]", UNSIGNED16, AccessRO, 1, 0xFE),
	}},
	0x1028: {Name: "Emergency Consumer", Struct: StructARRAY, Values: []SubentryDef{
		sub("Number of Consumed Emergency Objects", UNSIGNED8, AccessRO, false),
		subNbMax("Emergency Consumer", UNSIGNED32, AccessRW, 1, 0x7F),
	}},
	0x1029: {Name: "Error Behavior", Struct: StructRECORD, Values: []SubentryDef{
		sub("Number of Error Classes", UNSIGNED8, AccessRO, false),
		sub("Communication Error", UNSIGNED8, AccessRW, false),
		subNbMax("Device Profile", UNSIGNED8, AccessRW, 0, 0xFE),
	}},
	0x1200: {Name: "Server SDO Parameter", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		subDefault("COB ID Client to Server (Receive SDO)", UNSIGNED32, AccessRO, `"$NODEID+0x600"`),
		subDefault("COB ID Server to Client (Transmit SDO)", UNSIGNED32, AccessRO, `"$NODEID+0x580"`),
	}},
	0x1201: {Name: "Additional Server SDO %d Parameter[(idx)]", Struct: StructNRECORD, Incr: 1, NbMax: 0x7F, Values: []SubentryDef{
		noe(AccessRO),
		sub("COB ID Client to Server (Receive SDO)", UNSIGNED32, AccessRO, false),
		sub("COB ID Server to Client (Transmit SDO)", UNSIGNED32, AccessRO, false),
		sub("Node ID of the SDO Client", UNSIGNED8, AccessRO, false),
	}},
	0x1280: {Name: "Client SDO %d Parameter[(idx)]", Struct: StructNRECORD, Incr: 1, NbMax: 0x100, Values: []SubentryDef{
		noe(AccessRO),
		sub("COB ID Client to Server (Transmit SDO)", UNSIGNED32, AccessRW, false),
		sub("COB ID Server to Client (Receive SDO)", UNSIGNED32, AccessRW, false),
		sub("Node ID of the SDO Server", UNSIGNED8, AccessRW, false),
	}},
	0x1400: pdoParameter("Receive PDO %d Parameter[(idx)]", `{True:"$NODEID+0x%X00"%(base+2),False:0x80000000}[base<4]`),
	0x1600: pdoMapping("Receive PDO %d Mapping[(idx)]", "PDO %d Mapping for an application object %d[(idx,sub)]"),
	0x1800: withCallback(pdoParameter("Transmit PDO %d Parameter[(idx)]", `{True:"$NODEID+0x%X80"%(base+1),False:0x80000000}[base<4]`)),
	0x1A00: pdoMapping("Transmit PDO %d Mapping[(idx)]", "PDO %d Mapping for a process data variable %d[(idx,sub)]"),
}

// builtin is the read only catalog mapping, data types included
var builtin = catalog{func() Mapping {
	m := Mapping{}
	for index, t := range typeCatalog {
		m[index] = &ObjectDef{Name: t.Name, Struct: StructNoSub, Size: t.Size, Default: t.Default}
	}
	for index, def := range objectCatalog {
		m[index] = def
	}
	return m
}()}

type catalog struct {
	m Mapping
}

func (c catalog) Resolve(index uint16) (uint16, *ObjectDef, bool) {
	return c.m.Resolve(index)
}

// BuiltinEntry returns a copy of the catalog definition stored at index.
// Family members are not resolved, use [ResolveBaseIndex] for that.
func BuiltinEntry(index uint16) (*ObjectDef, bool) {
	def, ok := builtin.m[index]
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

func IsBuiltin(index uint16) bool {
	_, ok := builtin.m[index]
	return ok
}

// BuiltinIndexes returns the catalog indexes in ascending order
func BuiltinIndexes() []uint16 {
	indexes := maps.Keys(builtin.m)
	slices.Sort(indexes)
	return indexes
}

// Builtin is the resolver of the catalog, always consulted last
func Builtin() Resolver {
	return builtin
}
