package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samsamfire/objdictgen/pkg/od"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfile = `
[Profile]
Name=Test
Description=Test profile

[Menu2]
Name=Outputs
Indexes=0x6200

[Menu1]
Name=Inputs
Indexes=0x6000, 0x6100

[6000]
ParameterName=Inputs
Struct=array

[6000sub0]
ParameterName=Number of Entries
DataType=0x0005
AccessType=ro
PDOMapping=0

[6000sub1]
ParameterName=Input %d[(sub)]
DataType=0x0005
AccessType=ro
PDOMapping=1
NbMax=0x10

[6100]
ParameterName=Filter Constant
Need=1

[6100sub0]
ParameterName=Filter Constant
DataType=0x0006
AccessType=rw
DefaultValue=0x20

[6200]
ParameterName=Output Channel %d[(idx)]
Struct=nvar
Incr=1
NbMax=4
Callback=true

[6200sub0]
ParameterName=Output
DataType=0x0007
AccessType=rw
PDOMapping=1
DefaultValue=$NODEID+0x100
`

func writeProfile(t *testing.T, name string, content string) string {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, name+Extension), []byte(content), 0644))
	return dir
}

func TestParse(t *testing.T) {
	profile, err := Parse("Test", []byte(testProfile))
	require.Nil(t, err)
	assert.Equal(t, "Test profile", profile.Description)
	assert.Equal(t, []uint16{0x6000, 0x6100, 0x6200}, profile.Mapping.Indexes())

	inputs := profile.Mapping[0x6000]
	assert.Equal(t, od.StructARRAY, inputs.Struct)
	require.Len(t, inputs.Values, 2)
	assert.Equal(t, od.SubentryDef{Name: "Input %d[(sub)]", Type: od.UNSIGNED8, Access: od.AccessRO, PDO: true, NbMax: 0x10}, inputs.Values[1])

	filter := profile.Mapping[0x6100]
	assert.Equal(t, od.StructVAR, filter.Struct)
	assert.True(t, filter.Need)
	assert.Equal(t, int64(0x20), filter.Values[0].Default)

	output := profile.Mapping[0x6200]
	assert.Equal(t, 1, output.Incr)
	assert.Equal(t, 4, output.NbMax)
	require.NotNil(t, output.Callback)
	assert.True(t, *output.Callback)
	assert.Equal(t, "$NODEID+0x100", output.Values[0].Default)

	assert.Equal(t, []od.MenuEntry{
		{Name: "Inputs", Indexes: []uint16{0x6000, 0x6100}},
		{Name: "Outputs", Indexes: []uint16{0x6200}},
	}, profile.Menus)
}

func TestParseErrors(t *testing.T) {
	for name, content := range map[string]string{
		"no subentries":   "[6000]\nParameterName=Inputs\n",
		"orphan sub":      "[6000sub0]\nParameterName=Inputs\nDataType=0x0005\n",
		"bad type":        "[6000]\nParameterName=A\n[6000sub0]\nParameterName=A\nDataType=text\n",
		"bad struct":      "[6000]\nParameterName=A\nStruct=table\n[6000sub0]\nParameterName=A\nDataType=0x0005\n",
		"bad access":      "[6000]\nParameterName=A\n[6000sub0]\nParameterName=A\nDataType=0x0005\nAccessType=rx\n",
		"hole in subs":    "[6000]\nParameterName=A\nStruct=record\n[6000sub0]\nParameterName=A\nDataType=0x0005\n[6000sub2]\nParameterName=B\nDataType=0x0005\n",
		"unknown in menu": "[Menu1]\nName=M\nIndexes=0x6001\n[6000]\nParameterName=A\n[6000sub0]\nParameterName=A\nDataType=0x0005\n",
		"array no nbmax":  "[6000]\nParameterName=A\nStruct=array\n[6000sub0]\nParameterName=A\nDataType=0x0005\n[6000sub1]\nParameterName=B\nDataType=0x0005\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse("Broken", []byte(content))
			assert.ErrorIs(t, err, ErrProfileLoad)
		})
	}
}

func TestEmbeddedProfiles(t *testing.T) {
	assert.Subset(t, Available(), []string{"DS-302", "DS-401"})

	ds302 := DS302()
	assert.Len(t, ds302, 18)
	assert.Equal(t, "NMT Startup", ds302[0x1F80].Name)
	for index, def := range ds302 {
		assert.Nil(t, od.ValidateDef(index, def), "0x%04X", index)
		assert.False(t, od.IsBuiltin(index))
	}

	mapping, menus, err := Load("DS-401")
	require.Nil(t, err)
	assert.Len(t, mapping, 4)
	require.Len(t, menus, 2)
	assert.Equal(t, "Digital 8 Bit Input", menus[0].Name)

	_, _, err = Load("DS-999")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestSearchOrder(t *testing.T) {
	dir := writeProfile(t, "DS-401", testProfile)
	mapping, _, err := Load("DS-401", dir)
	require.Nil(t, err)
	assert.Len(t, mapping, 3)

	t.Setenv(EnvProfileDir, writeProfile(t, "Custom", testProfile))
	_, _, err = Load("Custom")
	assert.Nil(t, err)
	assert.Contains(t, Available(), "Custom")
}

func TestApply(t *testing.T) {
	node := od.NewNode("test", 1, "")
	require.Nil(t, Apply(node, "DS-401"))
	assert.Equal(t, "DS-401", node.ProfileName)
	assert.Len(t, node.SpecificMenu, 2)
	assert.Nil(t, node.ValidateIndex(0x6000))

	require.Nil(t, Apply(node, DS302Name))
	assert.Len(t, node.DS302, 18)
	assert.Equal(t, "DS-401", node.ProfileName)
	name, err := node.GetEntryName(0x1F80, false)
	assert.Nil(t, err)
	assert.Equal(t, "NMT Startup", name)

	require.Nil(t, node.AddEntry(0x6000, 1, int64(3)))
	sub, err := node.GetSubentryInfos(0x6000, 1, true)
	require.Nil(t, err)
	assert.Equal(t, "Read Inputs 0x1 to 0x8", sub.Name)

	require.Nil(t, Apply(node, od.NoProfileName))
	assert.Empty(t, node.Profile)
	assert.Equal(t, od.NoProfileName, node.ProfileName)

	node.UserMapping[0x6000] = &od.ObjectDef{Name: "Mine", Struct: od.StructVAR, Values: []od.SubentryDef{
		{Name: "Mine", Type: od.UNSIGNED8, Access: od.AccessRW},
	}}
	assert.ErrorIs(t, Apply(node, "DS-401"), od.ErrAmbiguousDefinition)
}
