package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNode(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddEntry(0x1003, 1, int64(0)))
	assert.Nil(t, node.AddEntry(0x1010, 1, int64(0)))
	for sub := uint8(2); sub <= 6; sub++ {
		assert.Nil(t, node.AddEntry(0x1010, sub, int64(0)))
	}
	assert.Nil(t, node.AddEntry(0x1A01, 1, int64(0x20000010)))
	assert.Nil(t, node.AddMappingEntry(0x2000, variable("Var", UNSIGNED16, AccessRW, true)))
	assert.Nil(t, node.AddEntry(0x2000, 0, int64(0)))

	warnings, err := node.Validate(false)
	assert.Nil(t, err)
	assert.Empty(t, warnings)
}

func TestValidateAmbiguous(t *testing.T) {
	node := createNode()
	node.Profile = Mapping{0x2000: variable("Profile Var", UNSIGNED8, AccessRW, false)}
	assert.Nil(t, node.AddMappingEntry(0x2000, variable("User Var", UNSIGNED8, AccessRW, false)))
	assert.Nil(t, node.AddEntry(0x2000, 0, int64(1)))

	err := node.ValidateIndex(0x2000)
	assert.ErrorIs(t, err, ErrAmbiguousDefinition)
	_, err = node.Validate(true)
	assert.ErrorIs(t, err, ErrAmbiguousDefinition)

	// Family members resolve through their base and own no definition
	node = createNode()
	assert.Nil(t, node.AddEntry(0x1401, 1, int64(0)))
	assert.Nil(t, node.ValidateIndex(0x1401))
}

func TestValidateMissing(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddEntry(0x5000, 0, int64(1)))
	assert.ErrorIs(t, node.ValidateIndex(0x5000), ErrMissingDefinition)
	_, err := node.Validate(true)
	assert.ErrorIs(t, err, ErrMissingDefinition)
}

func TestValidateValues(t *testing.T) {
	node := createNode()
	// Scalar stored for a list object
	node.Dictionary[0x1003] = NewValueEntry(int64(1))
	assert.ErrorIs(t, node.ValidateIndex(0x1003), ErrSchemaViolation)

	// More values than subentry definitions
	node = createNode()
	assert.Nil(t, node.AddEntry(0x1018, 5, int64(0)))
	assert.ErrorIs(t, node.ValidateIndex(0x1018), ErrSchemaViolation)
}

func TestValidateDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  *ObjectDef
	}{
		{"unknown struct", &ObjectDef{Name: "Bad", Struct: 5, Values: []SubentryDef{sub("Bad", UNSIGNED8, AccessRW, false)}}},
		{"no subentries", &ObjectDef{Name: "Bad", Struct: StructVAR}},
		{"var with two subentries", &ObjectDef{Name: "Bad", Struct: StructVAR, Values: []SubentryDef{
			sub("A", UNSIGNED8, AccessRW, false), sub("B", UNSIGNED8, AccessRW, false),
		}}},
		{"array without nbmax", &ObjectDef{Name: "Bad", Struct: StructARRAY, Values: []SubentryDef{
			noe(AccessRO), sub("A", UNSIGNED8, AccessRW, false),
		}}},
		{"record with inner nbmax", &ObjectDef{Name: "Bad", Struct: StructRECORD, Values: []SubentryDef{
			noe(AccessRO), sub("A", UNSIGNED8, AccessRW, false), subNbMax("B", UNSIGNED8, AccessRW, 0, 4), sub("C", UNSIGNED8, AccessRW, false),
		}}},
		{"repeating record with extra subentries", &ObjectDef{Name: "Bad", Struct: StructRECORD, Values: []SubentryDef{
			noe(AccessRO), subNbMax("A", UNSIGNED8, AccessRW, 0, 4), sub("B", UNSIGNED8, AccessRW, false),
		}}},
		{"nrecord without incr", &ObjectDef{Name: "Bad", Struct: StructNRECORD, Values: []SubentryDef{
			noe(AccessRO), sub("A", UNSIGNED8, AccessRW, false),
		}}},
		{"invalid access", &ObjectDef{Name: "Bad", Struct: StructVAR, Values: []SubentryDef{sub("A", UNSIGNED8, "rx", false)}}},
		{"missing type", &ObjectDef{Name: "Bad", Struct: StructVAR, Values: []SubentryDef{sub("A", 0, AccessRW, false)}}},
		{"size on object", &ObjectDef{Name: "Bad", Struct: StructVAR, Size: 8, Values: []SubentryDef{sub("A", UNSIGNED8, AccessRW, false)}}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			node := NewNode("test", 1, "")
			assert.Nil(t, node.AddMappingEntry(0x2000, test.def))
			assert.ErrorIs(t, node.ValidateIndex(0x2000), ErrSchemaViolation)
		})
	}
}

func TestValidateCatalog(t *testing.T) {
	for _, index := range BuiltinIndexes() {
		if index < IndexFirstObject {
			continue
		}
		def, _ := BuiltinEntry(index)
		assert.Nil(t, ValidateDef(index, def), "0x%04X", index)
	}
}

func TestValidateFix(t *testing.T) {
	node := createNode()
	assert.Nil(t, node.AddMappingEntry(0x2000, &ObjectDef{Name: "Rec", Struct: StructRECORD, Values: []SubentryDef{
		noe(AccessRO),
		sub("", UNSIGNED8, AccessRW, false),
	}}))
	assert.Nil(t, node.AddEntry(0x2000, 1, int64(0)))
	node.ParamsDictionary[0x1018] = &IndexParams{Subs: map[uint8]Params{
		1: {Comment: "kept"},
		7: {Comment: "stray"},
	}}
	node.ParamsDictionary[0x1005] = &IndexParams{Callback: true}

	_, err := node.Validate(false)
	assert.ErrorIs(t, err, ErrSchemaViolation)

	warnings, err := node.Validate(true)
	assert.Nil(t, err)
	assert.Len(t, warnings, 3)
	assert.Equal(t, "Subindex 1", node.UserMapping[0x2000].Values[1].Name)
	assert.Equal(t, map[uint8]Params{1: {Comment: "kept"}}, node.ParamsDictionary[0x1018].Subs)
	_, ok := node.ParamsDictionary[0x1005]
	assert.False(t, ok)

	warnings, err = node.Validate(false)
	assert.Nil(t, err)
	assert.Empty(t, warnings)
}
