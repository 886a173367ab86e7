package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/samsamfire/objdictgen/pkg/jsonod"
	"github.com/samsamfire/objdictgen/pkg/od"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd := newRootCmd(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestNode(t *testing.T, dir string, name string) (*od.Node, string) {
	node := od.NewNode("cli", 3, "cli node")
	require.Nil(t, node.AddEntry(0x1000, 0, int64(0x191)))
	require.Nil(t, node.AddEntry(0x1001, 0, int64(0)))
	for i, v := range []int64{0x100, 0x2, 0x3, 0x4} {
		require.Nil(t, node.AddEntry(0x1018, uint8(i+1), v))
	}
	require.Nil(t, node.AddEntry(0x1014, 0, `"$NODEID+0x80"`))
	path := filepath.Join(dir, name)
	require.Nil(t, writeNode(node, path, jsonod.Options{OmitDate: true}))
	return node, path
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	node, in := writeTestNode(t, dir, "node.json")

	for _, name := range []string{"node.yaml", "node.toml", "node.jsonc", "back.json"} {
		out := filepath.Join(dir, name)
		_, err := run(t, "convert", in, out, "--no-date")
		require.Nil(t, err, name)
		in = out
	}
	back, err := readNode(in)
	require.Nil(t, err)
	assert.Equal(t, node.Dictionary, back.Dictionary)

	data, err := os.ReadFile(filepath.Join(dir, "node.jsonc"))
	require.Nil(t, err)
	assert.Contains(t, string(data), "// 4120")

	_, err = run(t, "convert", in, filepath.Join(dir, "node.eds"))
	require.Nil(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "node.eds"))
	require.Nil(t, err)
	assert.Contains(t, string(data), "[1018sub1]")
	_, err = run(t, "convert", filepath.Join(dir, "node.eds"), filepath.Join(dir, "out.json"))
	assert.NotNil(t, err)

	_, err = run(t, "convert", in, filepath.Join(dir, "node.xml"))
	assert.NotNil(t, err)
	_, err = run(t, "convert", filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.json"))
	assert.NotNil(t, err)
}

func TestConvertProfile(t *testing.T) {
	dir := t.TempDir()
	_, in := writeTestNode(t, dir, "node.json")
	out := filepath.Join(dir, "io.json")
	_, err := run(t, "convert", in, out, "--profile", "DS-401")
	require.Nil(t, err)
	node, err := readNode(out)
	require.Nil(t, err)
	assert.Equal(t, "DS-401", node.ProfileName)
	assert.Len(t, node.Profile, 4)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	_, in := writeTestNode(t, dir, "node.json")
	config := filepath.Join(dir, "odg.yaml")
	require.Nil(t, os.WriteFile(config, []byte("convert:\n  no-date: false\n  sort: true\n"), 0644))

	out := filepath.Join(dir, "dated.json")
	_, err := run(t, "--config", config, "convert", in, out)
	require.Nil(t, err)
	data, err := os.ReadFile(out)
	require.Nil(t, err)
	assert.Contains(t, string(data), `"$date"`)

	_, err = run(t, "--config", filepath.Join(dir, "missing.yaml"), "list", in)
	assert.NotNil(t, err)

	t.Setenv("ODG_VERBOSE", "true")
	_, err = run(t, "list", in)
	require.Nil(t, err)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.SetLevel(log.InfoLevel)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	_, in := writeTestNode(t, dir, "node.json")
	out, err := run(t, "validate", in, "--fix", "-o", filepath.Join(dir, "fixed.yaml"))
	require.Nil(t, err)
	assert.Contains(t, out, "OK")
	_, err = os.Stat(filepath.Join(dir, "fixed.yaml"))
	assert.Nil(t, err)
}

func TestValidateFix(t *testing.T) {
	dir := t.TempDir()
	node, _ := writeTestNode(t, dir, "node.json")
	require.Nil(t, node.AddMappingEntry(0x2000, &od.ObjectDef{Name: "Table", Struct: od.StructARRAY, Values: []od.SubentryDef{
		{Name: od.NumberOfEntries, Type: od.UNSIGNED8, Access: od.AccessRO},
		{Name: "Table %d[(sub)]", Type: od.UNSIGNED8, Access: od.AccessRW, NbMax: 4},
	}}))
	require.Nil(t, node.AddEntry(0x2000, 1, int64(7)))
	doc, err := jsonod.ToCanonical(node, jsonod.Options{OmitDate: true})
	require.Nil(t, err)
	for _, obj := range doc.Dictionary {
		if obj.Index == 0x2000 {
			obj.Sub = append(obj.Sub, &jsonod.Sub{Comment: "stray"})
		}
	}
	data, err := jsonod.MarshalJSON(doc, false)
	require.Nil(t, err)
	in := filepath.Join(dir, "stray.json")
	require.Nil(t, os.WriteFile(in, data, 0644))

	_, err = run(t, "validate", in)
	assert.ErrorIs(t, err, od.ErrSchemaViolation)

	fixed := filepath.Join(dir, "fixed.json")
	out, err := run(t, "validate", in, "--fix", "-o", fixed)
	require.Nil(t, err)
	assert.Contains(t, out, "warning: index 0x2000: removed metadata")
	assert.Contains(t, out, "OK")
	back, err := readNode(fixed)
	require.Nil(t, err)
	assert.Equal(t, node.Dictionary, back.Dictionary)
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	node, a := writeTestNode(t, dir, "a.json")
	out, err := run(t, "diff", a, a)
	require.Nil(t, err)
	assert.Contains(t, out, "no differences")

	node.Name = "other"
	b := filepath.Join(dir, "b.yaml")
	require.Nil(t, writeNode(node, b, jsonod.Options{}))
	out, err = run(t, "diff", a, b)
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.code)
	assert.Contains(t, out, "node name changed: cli -> other")
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	_, in := writeTestNode(t, dir, "node.json")
	out, err := run(t, "list", in)
	require.Nil(t, err)
	assert.Contains(t, out, "0x1018  Identity")
	assert.Contains(t, out, "Mandatory")

	out, err = run(t, "list", in, "--index", "0x1018", "--index", "0x1014", "--compute")
	require.Nil(t, err)
	assert.Contains(t, out, "Vendor ID")
	assert.Contains(t, out, "0x83")

	_, err = run(t, "list", in, "--index", "zz")
	assert.NotNil(t, err)
}

func TestProfileCommand(t *testing.T) {
	out, err := run(t, "profile")
	require.Nil(t, err)
	assert.Contains(t, out, "DS-302")

	out, err = run(t, "profile", "DS-302")
	require.Nil(t, err)
	assert.Contains(t, out, "0x1F80  NMT Startup")
	assert.Contains(t, out, `menu "DS-302 Profile"`)
}
