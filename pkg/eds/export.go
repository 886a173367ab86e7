// Package eds writes the Electronic Data Sheet of a node, the INI file
// describing the objects of a CANopen device to configuration tools.
package eds

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/samsamfire/objdictgen/pkg/od"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

const (
	ObjectTypeVAR    = 0x7
	ObjectTypeARRAY  = 0x8
	ObjectTypeRECORD = 0x9
)

const createdBy = "odg"

// Skipped in sub sections, like CANFestival does
const compatibilityEntry = "Compatibility Entry"

// Now is the creation time written in [FileInfo]
var Now = time.Now

// Export returns the EDS content of node. Values are written uncomputed,
// $NODEID formulas included.
func Export(node *od.Node, filename string) ([]byte, error) {
	eds := ini.Empty()
	if err := populateFileInfo(eds, node, filepath.Base(filename)); err != nil {
		return nil, err
	}

	mandatories := []uint16{}
	optionals := []uint16{}
	manufacturers := []uint16{}
	for _, index := range node.GetIndexes() {
		infos, err := node.GetEntryInfos(index, false)
		if err != nil {
			return nil, err
		}
		switch {
		case index >= 0x2000 && index <= 0x5FFF:
			manufacturers = append(manufacturers, index)
		case infos.Need:
			mandatories = append(mandatories, index)
		default:
			optionals = append(optionals, index)
		}
	}

	for _, group := range []struct {
		name    string
		indexes []uint16
	}{
		{"MandatoryObjects", mandatories},
		{"OptionalObjects", optionals},
		{"ManufacturerObjects", manufacturers},
	} {
		section, err := eds.NewSection(group.name)
		if err != nil {
			return nil, err
		}
		if _, err := section.NewKey("SupportedObjects", strconv.Itoa(len(group.indexes))); err != nil {
			return nil, err
		}
		for i, index := range group.indexes {
			if _, err := section.NewKey(strconv.Itoa(i+1), fmt.Sprintf("0x%04X", index)); err != nil {
				return nil, err
			}
		}
		for _, index := range group.indexes {
			if err := populateIndex(eds, node, index); err != nil {
				return nil, fmt.Errorf("[EDS] index 0x%04X: %w", index, err)
			}
		}
	}

	buf := &bytes.Buffer{}
	if _, err := eds.WriteTo(buf); err != nil {
		return nil, err
	}
	log.Debugf("[EDS] exported %v, %d objects", node.Name, len(node.Dictionary))
	return buf.Bytes(), nil
}

// ExportEDS writes the EDS of node to filename
func ExportEDS(node *od.Node, filename string) error {
	data, err := Export(node, filename)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

func populateFileInfo(eds *ini.File, node *od.Node, filename string) error {
	now := Now()
	identity := func(sub uint8) string {
		value, err := node.GetEntry(0x1018, sub, true)
		if err != nil {
			return "0x00000000"
		}
		switch v := value.(type) {
		case int64:
			return fmt.Sprintf("0x%08X", v)
		case uint64:
			return fmt.Sprintf("0x%08X", v)
		}
		return "0x00000000"
	}
	count := func(first uint16, last uint16) int {
		n := 0
		for _, index := range node.GetIndexes() {
			if index >= first && index <= last {
				n++
			}
		}
		return n
	}
	boolean := func(b bool) string {
		if b {
			return "1"
		}
		return "0"
	}
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"FileInfo", [][2]string{
			{"FileName", filename},
			{"FileVersion", "1"},
			{"FileRevision", "1"},
			{"EDSVersion", "4.0"},
			{"Description", node.Description},
			{"CreationTime", now.Format("03:04PM")},
			{"CreationDate", now.Format("01-02-2006")},
			{"CreatedBy", createdBy},
			{"ModificationTime", now.Format("03:04PM")},
			{"ModificationDate", now.Format("01-02-2006")},
			{"ModifiedBy", createdBy},
		}},
		{"DeviceInfo", [][2]string{
			{"VendorName", createdBy},
			{"VendorNumber", identity(1)},
			{"ProductName", node.Name},
			{"ProductNumber", identity(2)},
			{"RevisionNumber", identity(3)},
			{"BaudRate_10", "1"},
			{"BaudRate_20", "1"},
			{"BaudRate_50", "1"},
			{"BaudRate_125", "1"},
			{"BaudRate_250", "1"},
			{"BaudRate_500", "1"},
			{"BaudRate_800", "1"},
			{"BaudRate_1000", "1"},
			{"SimpleBootUpMaster", boolean(node.Type == od.NodeMaster)},
			{"SimpleBootUpSlave", boolean(node.Type == od.NodeSlave)},
			{"Granularity", "8"},
			{"DynamicChannelsSupported", "0"},
			{"CompactPDO", "0"},
			{"GroupMessaging", "0"},
			{"NrOfRXPDO", strconv.Itoa(count(0x1400, 0x15FF))},
			{"NrOfTXPDO", strconv.Itoa(count(0x1800, 0x19FF))},
			{"LSS_Supported", "0"},
		}},
		{"DummyUsage", [][2]string{
			{"Dummy0001", "0"},
			{"Dummy0002", "1"},
			{"Dummy0003", "1"},
			{"Dummy0004", "1"},
			{"Dummy0005", "1"},
			{"Dummy0006", "1"},
			{"Dummy0007", "1"},
		}},
		{"Comments", [][2]string{{"Lines", "0"}}},
	}
	for _, s := range sections {
		section, err := eds.NewSection(s.name)
		if err != nil {
			return err
		}
		for _, kv := range s.keys {
			if _, err := section.NewKey(kv[0], kv[1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func populateIndex(eds *ini.File, node *od.Node, index uint16) error {
	infos, err := node.GetEntryInfos(index, true)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%X", index)
	entry := node.Dictionary[index]
	if !entry.List {
		section, err := eds.NewSection(name)
		if err != nil {
			return err
		}
		return populateSection(section, node, index, 0)
	}

	objectType := ObjectTypeRECORD
	if infos.Struct.Has(od.IdenticalSubindexes) {
		objectType = ObjectTypeARRAY
	}
	subs := []uint8{}
	for sub := 0; sub <= len(entry.Values); sub++ {
		subInfos, err := node.GetSubentryInfos(index, uint8(sub), true)
		if err != nil {
			return err
		}
		if subInfos.Name != compatibilityEntry {
			subs = append(subs, uint8(sub))
		}
	}
	section, err := eds.NewSection(name)
	if err != nil {
		return err
	}
	if err := populateHeaderSection(section, infos.Name, objectType, len(subs)); err != nil {
		return err
	}
	for _, sub := range subs {
		section, err := eds.NewSection(fmt.Sprintf("%Xsub%X", index, sub))
		if err != nil {
			return err
		}
		if err := populateSection(section, node, index, sub); err != nil {
			return fmt.Errorf("subindex %d: %w", sub, err)
		}
	}
	return nil
}

// populateSection writes one VAR object or one subindex
func populateSection(section *ini.Section, node *od.Node, index uint16, subindex uint8) error {
	infos, err := node.GetSubentryInfos(index, subindex, true)
	if err != nil {
		return err
	}
	value, err := node.GetEntry(index, subindex, false)
	if err != nil {
		return err
	}
	base := 10
	if index >= 0x1000 && index <= 0x1FFF {
		// Communication objects are easier to read in hex
		base = 16
	}
	defaultValue := od.FormatValue(value, base)
	if b, ok := value.(bool); ok {
		defaultValue = "0"
		if b {
			defaultValue = "1"
		}
	}
	pdo := "0"
	if infos.PDO {
		pdo = "1"
	}
	for _, kv := range [][2]string{
		{"ParameterName", infos.Name},
		{"ObjectType", fmt.Sprintf("0x%X", ObjectTypeVAR)},
		{"DataType", fmt.Sprintf("0x%04X", infos.Type)},
		{"AccessType", string(infos.Access)},
		{"DefaultValue", defaultValue},
		{"PDOMapping", pdo},
	} {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// populateHeaderSection writes the first section of a RECORD or ARRAY, e.g.
//
//	[1A03]
//	ParameterName=TPDO mapping parameter
//	ObjectType=0x9
//	SubNumber=0x9
func populateHeaderSection(section *ini.Section, name string, objectType int, count int) error {
	for _, kv := range [][2]string{
		{"ParameterName", name},
		{"ObjectType", fmt.Sprintf("0x%X", objectType)},
		{"SubNumber", fmt.Sprintf("0x%X", count)},
	} {
		if _, err := section.NewKey(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}
