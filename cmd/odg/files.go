package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsamfire/objdictgen/pkg/eds"
	"github.com/samsamfire/objdictgen/pkg/jsonod"
	"github.com/samsamfire/objdictgen/pkg/od"
	log "github.com/sirupsen/logrus"
)

type format int

const (
	formatJSON format = iota
	formatJSONC
	formatYAML
	formatTOML
	formatEDS
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".jsonc":
		return formatJSONC, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	case ".eds":
		return formatEDS, nil
	}
	return 0, fmt.Errorf("unknown file format %q, expected .json, .jsonc, .yaml, .yml, .toml or .eds", path)
}

func readNode(path string) (*od.Node, error) {
	return readNodeWith(path, jsonod.Decoder{})
}

func readNodeWith(path string, decoder jsonod.Decoder) (*od.Node, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var node *od.Node
	switch f {
	case formatEDS:
		return nil, fmt.Errorf("%v: EDS files can only be written", path)
	case formatYAML:
		node, err = decoder.DecodeYAML(data)
	case formatTOML:
		node, err = decoder.DecodeTOML(data)
	default:
		node, err = decoder.Decode(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}
	log.Debugf("[CLI] read %v", node)
	return node, nil
}

// writeNode writes node to path, the format following the extension.
// JSONC output carries the decimal index comments.
func writeNode(node *od.Node, path string, opts jsonod.Options) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	switch f {
	case formatYAML:
		data, err = jsonod.EncodeYAML(node, opts)
	case formatTOML:
		data, err = jsonod.EncodeTOML(node, opts)
	case formatEDS:
		data, err = eds.Export(node, path)
	case formatJSONC:
		opts.Comments = true
		data, err = jsonod.Encode(node, opts)
	default:
		data, err = jsonod.Encode(node, opts)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	log.Debugf("[CLI] wrote %v", path)
	return nil
}
