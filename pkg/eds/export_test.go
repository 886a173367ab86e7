package eds

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/samsamfire/objdictgen/pkg/od"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func createNode(t *testing.T) *od.Node {
	node := od.NewNode("eds", 0x10, "exported node")
	require.Nil(t, node.AddEntry(0x1000, 0, int64(0x191)))
	require.Nil(t, node.AddEntry(0x1001, 0, int64(0)))
	require.Nil(t, node.AddEntry(0x1014, 0, `"$NODEID+0x80"`))
	for i, v := range []int64{0x100, 0x2, 0x3, 0x4} {
		require.Nil(t, node.AddEntry(0x1018, uint8(i+1), v))
	}
	for i, v := range []int64{0x210, 0xFF, 0, 0, 100} {
		require.Nil(t, node.AddEntry(0x1400, uint8(i+1), v))
	}
	require.Nil(t, node.AddMappingEntry(0x2000, &od.ObjectDef{Name: "Enabled", Struct: od.StructVAR, Values: []od.SubentryDef{
		{Name: "Enabled", Type: od.BOOLEAN, Access: od.AccessRW, PDO: true},
	}}))
	require.Nil(t, node.AddEntry(0x2000, 0, true))
	return node
}

func TestExport(t *testing.T) {
	Now = func() time.Time { return time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC) }
	defer func() { Now = time.Now }()

	data, err := Export(createNode(t), "/tmp/out/node.eds")
	require.Nil(t, err)
	file, err := ini.Load(data)
	require.Nil(t, err)

	info := file.Section("FileInfo")
	assert.Equal(t, "node.eds", info.Key("FileName").String())
	assert.Equal(t, "02:05PM", info.Key("CreationTime").String())
	assert.Equal(t, "03-01-2024", info.Key("CreationDate").String())
	device := file.Section("DeviceInfo")
	assert.Equal(t, "0x00000100", device.Key("VendorNumber").String())
	assert.Equal(t, "1", device.Key("NrOfRXPDO").String())
	assert.Equal(t, "1", device.Key("SimpleBootUpSlave").String())

	mandatory := file.Section("MandatoryObjects")
	assert.Equal(t, "3", mandatory.Key("SupportedObjects").String())
	assert.Equal(t, "0x1018", mandatory.Key("3").String())
	assert.Equal(t, "2", file.Section("OptionalObjects").Key("SupportedObjects").String())
	assert.Equal(t, "0x2000", file.Section("ManufacturerObjects").Key("1").String())

	emcy := file.Section("1014")
	assert.Equal(t, "$NODEID+0x80", emcy.Key("DefaultValue").String())
	assert.Equal(t, "0x0007", emcy.Key("DataType").String())
	assert.Equal(t, "rw", emcy.Key("AccessType").String())

	identity := file.Section("1018")
	assert.Equal(t, "Identity", identity.Key("ParameterName").String())
	assert.Equal(t, "0x9", identity.Key("ObjectType").String())
	assert.Equal(t, "0x5", identity.Key("SubNumber").String())
	assert.Equal(t, "0x100", file.Section("1018sub1").Key("DefaultValue").String())
	assert.Equal(t, "0x4", file.Section("1018sub0").Key("DefaultValue").String())

	// Subindex 4 is the compatibility entry
	rpdo := file.Section("1400")
	assert.Equal(t, "Receive PDO 1 Parameter", rpdo.Key("ParameterName").String())
	assert.Equal(t, "0x5", rpdo.Key("SubNumber").String())
	_, err = file.GetSection("1400sub4")
	assert.NotNil(t, err)
	assert.Equal(t, "0x64", file.Section("1400sub5").Key("DefaultValue").String())

	enabled := file.Section("2000")
	assert.Equal(t, "1", enabled.Key("DefaultValue").String())
	assert.Equal(t, "1", enabled.Key("PDOMapping").String())
}

func TestExportEDS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.eds")
	require.Nil(t, ExportEDS(createNode(t), path))
	file, err := ini.Load(path)
	require.Nil(t, err)
	assert.Equal(t, "eds", file.Section("DeviceInfo").Key("ProductName").String())
}

func TestExportIdentityNotNumber(t *testing.T) {
	node := od.NewNode("eds", 0x10, "")
	require.Nil(t, node.AddEntry(0x1000, 0, int64(0x191)))
	require.Nil(t, node.AddEntry(0x1001, 0, int64(0)))
	require.Nil(t, node.AddEntry(0x1018, 1, int64(0x100)))
	require.Nil(t, node.AddEntry(0x1018, 2, "abc"))

	data, err := Export(node, "node.eds")
	require.Nil(t, err)
	file, err := ini.Load(data)
	require.Nil(t, err)
	device := file.Section("DeviceInfo")
	assert.Equal(t, "0x00000100", device.Key("VendorNumber").String())
	assert.Equal(t, "0x00000000", device.Key("ProductNumber").String())
	assert.Equal(t, "0x00000000", device.Key("RevisionNumber").String())
}
