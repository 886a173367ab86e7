package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAllParameters(t *testing.T) {
	node := createNode()
	node.Profile = Mapping{0x6000: variable("Digital Input", UNSIGNED8, AccessRO, true)}
	node.ProfileName = "DS-401"
	assert.Nil(t, node.AddMappingEntry(0x2000, variable("Var", UNSIGNED8, AccessRW, false)))

	assert.Equal(t, []uint16{0x2000, 0x1000, 0x1001, 0x1014, 0x1018, 0x6000}, node.GetAllParameters(false))
	assert.Equal(t, []uint16{0x1000, 0x1001, 0x1014, 0x1018, 0x2000, 0x6000}, node.GetAllParameters(true))

	node.IndexOrder = []uint16{0x6000, 0x1018, 0x7000}
	assert.Equal(t, []uint16{0x6000, 0x1018, 0x2000, 0x1000, 0x1001, 0x1014}, node.GetAllParameters(false))

	assert.Equal(t, []uint16{0x6000, 0x2000}, node.GetUnusedParameters())

	node.RemoveIndex(0x6000)
	assert.Equal(t, NoProfileName, node.ProfileName)
	node.RemoveIndex(0x1018)
	assert.False(t, node.IsEntry(0x1018, 0))
}

func TestGetEntryFlags(t *testing.T) {
	node := createNode()
	node.DS302 = Mapping{0x1F20: {Name: "Store DCF", Struct: StructARRAY, Values: []SubentryDef{
		noe(AccessRO),
		subNbMax("Store DCF for node %d[(sub)]", DOMAIN, AccessRW, 0, 0x7F),
	}}}
	assert.Nil(t, node.AddEntry(0x1003, 1, int64(0)))

	assert.Equal(t, []string{"Mandatory"}, node.GetEntryFlags(0x1000))
	assert.Nil(t, node.RemoveEntry(0x1018, 0))
	assert.Equal(t, []string{"Mandatory", "Missing"}, node.GetEntryFlags(0x1018))
	assert.Equal(t, []string{"CB"}, node.GetEntryFlags(0x1003))
	assert.Equal(t, []string{"DS-302", "Unused"}, node.GetEntryFlags(0x1F20))
	assert.Empty(t, node.GetEntryFlags(0x5000))
}

func TestEntryInfos(t *testing.T) {
	node := createNode()
	name, err := node.GetEntryName(0x1A03, true)
	assert.Nil(t, err)
	assert.Equal(t, "Transmit PDO 4 Mapping", name)

	base, err := node.GetBaseIndex(0x1A03)
	assert.Nil(t, err)
	assert.EqualValues(t, 0x1A00, base)
	assert.Equal(t, 3, node.GetBaseIndexNumber(0x1A03))

	details, err := node.GetAllSubentryInfos(0x1018, true)
	assert.Nil(t, err)
	assert.Len(t, details, 5)
	assert.Equal(t, int64(4), details[0].Value)
	assert.Equal(t, "Vendor ID", details[1].Infos.Name)
	assert.Equal(t, int64(0xCAFE), details[4].Value)

	details, err = node.GetAllSubentryInfos(0x1014, true)
	assert.Nil(t, err)
	assert.Len(t, details, 1)
	assert.Equal(t, int64(0x85), details[0].Value)
}

func TestIndexRecord(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddEntry(0x1401, 1, int64(0x201)))

	record := node.IndexRecord(0x1401)
	assert.True(t, record.Repeat())
	assert.EqualValues(t, 0x1400, record.Base)
	assert.Empty(t, record.Groups)
	assert.NotNil(t, record.Entry)

	record = node.IndexRecord(0x1018)
	assert.False(t, record.Repeat())
	assert.Equal(t, []Group{GroupBuiltin}, record.Groups)
	assert.Equal(t, "Identity", record.Defs[GroupBuiltin].Name)

	record = node.IndexRecord(0x5000)
	assert.False(t, record.Resolved)
	assert.Nil(t, record.Entry)
}

func TestTypeHelpers(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddMappingEntry(0x00A0, &ObjectDef{Name: "UNSIGNED8[0-10]", Struct: StructRECORD, Size: 8, Default: int64(0), Values: []SubentryDef{
		noe(AccessRO),
		sub("Type", UNSIGNED8, AccessRO, false),
	}}))

	index, ok := node.GetTypeIndex("UNSIGNED16")
	assert.True(t, ok)
	assert.EqualValues(t, UNSIGNED16, index)
	index, ok = node.GetTypeIndex("UNSIGNED8[0-10]")
	assert.True(t, ok)
	assert.EqualValues(t, 0xA0, index)
	_, ok = node.GetTypeIndex("Device Type")
	assert.False(t, ok)

	name, ok := node.GetTypeName(REAL32)
	assert.True(t, ok)
	assert.Equal(t, "REAL32", name)

	value, ok := node.GetTypeDefaultValue(VISIBLE_STRING)
	assert.True(t, ok)
	assert.Equal(t, "", value)

	types := node.GetTypeList()
	assert.Len(t, types, 24)
	assert.Contains(t, types, "UNSIGNED8[0-10]")

	customisable := node.GetCustomisableTypes()
	assert.Len(t, customisable, 21)
	assert.Equal(t, "INTEGER8", customisable[0].Name)

	assert.Equal(t, []uint16{0x1000, 0x1001, 0x1018}, node.GetMandatoryIndexes())
}

func TestMapVariables(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddMappingEntry(0x2000, variable("Var", UNSIGNED16, AccessRW, true)))
	assert.Nil(t, node.AddEntry(0x2000, 0, int64(0)))
	assert.Nil(t, node.AddMappingEntry(0x2001, variable("Text", VISIBLE_STRING, AccessRW, true)))
	assert.Nil(t, node.AddEntry(0x2001, 0, "abc"))
	assert.Nil(t, node.AddMappingEntry(0x2002, &ObjectDef{Name: "Table", Struct: StructARRAY, Values: []SubentryDef{
		noe(AccessRO),
		{Name: "Table %d[(sub)]", Type: UNSIGNED8, Access: AccessRW, PDO: true, NbMax: 4},
	}}))
	assert.Nil(t, node.AddEntry(0x2002, 1, int64(0)))
	assert.Nil(t, node.AddEntry(0x2002, 2, int64(0)))

	variables, err := node.GetMapVariableList(true)
	assert.Nil(t, err)
	assert.Equal(t, []MapVariable{
		{0x1001, 0, 8, "Error Register"},
		{0x2000, 0, 16, "Var"},
		{0x2001, 0, 8, "Text"},
		{0x2002, 1, 8, "Table 1"},
		{0x2002, 2, 8, "Table 2"},
	}, variables)

	value, err := node.GetMapValue("Var (0x2000)")
	assert.Nil(t, err)
	assert.EqualValues(t, 0x20000010, value)
	value, err = node.GetMapValue("Table 2 (0x2002)")
	assert.Nil(t, err)
	assert.EqualValues(t, 0x20020208, value)
	value, err = node.GetMapValue("None")
	assert.Nil(t, err)
	assert.EqualValues(t, 0, value)

	// Strings are mapped with their buffer size
	_, err = node.GetMapValue("Text (0x2001)")
	assert.ErrorIs(t, err, ErrInvalidValue)
	size := 4
	assert.Nil(t, node.SetParamsEntry(0x2001, 0, ParamsUpdate{BufferSize: &size}))
	value, err = node.GetMapValue("Text (0x2001)")
	assert.Nil(t, err)
	assert.EqualValues(t, 0x20010020, value)
	size = 9
	assert.Nil(t, node.SetParamsEntry(0x2001, 0, ParamsUpdate{BufferSize: &size}))
	_, err = node.GetMapValue("Text (0x2001)")
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = node.GetMapValue("Unknown (0x3000)")
	assert.ErrorIs(t, err, ErrInvalidValue)

	index, subindex, bits := node.GetMapIndex(0x20020208)
	assert.EqualValues(t, 0x2002, index)
	assert.EqualValues(t, 2, subindex)
	assert.EqualValues(t, 8, bits)
	assert.Equal(t, "Table 2 (0x2002)", node.GetMapName(0x20020208))
	assert.Equal(t, "None", node.GetMapName(0))

	names, err := node.GetMapList()
	assert.Nil(t, err)
	assert.Equal(t, "None", names[0])
	assert.Contains(t, names, "Error Register (0x1001)")
}

func TestMapRecordMaintenance(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddEntry(0x1A00, 1, int64(0x20000010)))
	assert.Nil(t, node.AddEntry(0x1A00, 2, int64(0x10010008)))
	assert.Nil(t, node.AddEntry(0x1A00, 3, int64(0x20020108)))
	assert.Nil(t, node.AddEntry(0x1A00, 4, int64(0x20020208)))

	node.UpdateMapVariable(0x1001, 0, 16)
	node.UpdateMapVariable(0x2002, 2, 16)
	node.RemoveMapVariable(0x2000, 0)
	values, _ := node.GetEntryValues(0x1A00, true)
	assert.Equal(t, []Value{int64(4), int64(0), int64(0x10010010), int64(0x20020108), int64(0x20020210)}, values)

	node.RemoveMapVariable(0x2002, 0)
	values, _ = node.GetEntryValues(0x1A00, true)
	assert.Equal(t, []Value{int64(4), int64(0), int64(0x10010010), int64(0), int64(0)}, values)
}

func TestRemoveLine(t *testing.T) {
	node := createNode()
	for i := uint16(0); i < 3; i++ {
		assert.Nil(t, node.AddEntry(0x1400+i, 1, int64(0x200+i)))
	}
	assert.Nil(t, node.RemoveLine(0x1400, 0x15FF, 1))
	value, _ := node.GetEntry(0x1400, 1, true)
	assert.Equal(t, int64(0x201), value)
	value, _ = node.GetEntry(0x1401, 1, true)
	assert.Equal(t, int64(0x202), value)
	assert.False(t, node.IsEntry(0x1402, 0))

	assert.ErrorIs(t, node.RemoveLine(0x1410, 0x15FF, 1), ErrIdxNotExist)
}
