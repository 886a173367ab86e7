package jsonod

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/samsamfire/objdictgen/pkg/od"
	"gopkg.in/yaml.v3"
)

const (
	DocumentID      = "od data"
	Version         = "1"
	InternalVersion = "0"
	ToolName        = "odg"
	ToolVersion     = "3.2"
	DescriptionText = "Canfestival object dictionary data"
)

// Document is the canonical, layer free form of a node.
// Field order is the output order.
type Document struct {
	ID                string    `json:"$id" yaml:"$id" toml:"$id"`
	Version           string    `json:"$version" yaml:"$version" toml:"$version"`
	Description       string    `json:"$description,omitempty" yaml:"$description,omitempty" toml:"$description,omitempty"`
	Tool              string    `json:"$tool,omitempty" yaml:"$tool,omitempty" toml:"$tool,omitempty"`
	Date              string    `json:"$date,omitempty" yaml:"$date,omitempty" toml:"$date,omitempty"`
	Name              string    `json:"name" yaml:"name" toml:"name"`
	NodeDescription   string    `json:"description" yaml:"description" toml:"description"`
	Type              string    `json:"type" yaml:"type" toml:"type"`
	NodeID            uint8     `json:"id" yaml:"id" toml:"id"`
	ProfileName       string    `json:"profile_name" yaml:"profile_name" toml:"profile_name"`
	Profile           any       `json:"profile,omitempty" yaml:"profile,omitempty" toml:"profile,omitempty"`
	DS302             any       `json:"ds302,omitempty" yaml:"ds302,omitempty" toml:"ds302,omitempty"`
	DefaultStringSize int       `json:"default_string_size" yaml:"default_string_size" toml:"default_string_size"`
	Dictionary        []*Object `json:"dictionary" yaml:"dictionary" toml:"dictionary"`
}

// Object is one index of the dictionary. It merges the definition owning
// the index with the stored values and user metadata.
type Object struct {
	Index           Index       `json:"index" yaml:"index" toml:"index"`
	Repeat          bool        `json:"repeat,omitempty" yaml:"repeat,omitempty" toml:"repeat,omitempty"`
	Name            string      `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Struct          StructField `json:"struct" yaml:"struct" toml:"struct"`
	Group           string      `json:"group,omitempty" yaml:"group,omitempty" toml:"group,omitempty"`
	Need            *bool       `json:"need,omitempty" yaml:"need,omitempty" toml:"need,omitempty"`
	ProfileCallback *bool       `json:"profile_callback,omitempty" yaml:"profile_callback,omitempty" toml:"profile_callback,omitempty"`
	Callback        bool        `json:"callback,omitempty" yaml:"callback,omitempty" toml:"callback,omitempty"`
	Unused          bool        `json:"unused,omitempty" yaml:"unused,omitempty" toml:"unused,omitempty"`
	Default         any         `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Size            int         `json:"size,omitempty" yaml:"size,omitempty" toml:"size,omitempty"`
	Incr            int         `json:"incr,omitempty" yaml:"incr,omitempty" toml:"incr,omitempty"`
	NbMax           int         `json:"nbmax,omitempty" yaml:"nbmax,omitempty" toml:"nbmax,omitempty"`
	Each            *Sub        `json:"each,omitempty" yaml:"each,omitempty" toml:"each,omitempty"`
	Sub             []*Sub      `json:"sub" yaml:"sub" toml:"sub"`
}

// Sub is one subindex: its definition, metadata and value, all optional
type Sub struct {
	Name       string  `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Type       *uint16 `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Access     string  `json:"access,omitempty" yaml:"access,omitempty" toml:"access,omitempty"`
	PDO        *bool   `json:"pdo,omitempty" yaml:"pdo,omitempty" toml:"pdo,omitempty"`
	NbMin      int     `json:"nbmin,omitempty" yaml:"nbmin,omitempty" toml:"nbmin,omitempty"`
	NbMax      int     `json:"nbmax,omitempty" yaml:"nbmax,omitempty" toml:"nbmax,omitempty"`
	Save       bool    `json:"save,omitempty" yaml:"save,omitempty" toml:"save,omitempty"`
	Comment    string  `json:"comment,omitempty" yaml:"comment,omitempty" toml:"comment,omitempty"`
	BufferSize int     `json:"buffer_size,omitempty" yaml:"buffer_size,omitempty" toml:"buffer_size,omitempty"`
	Default    any     `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
	Value      any     `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
}

func (s *Sub) hasDef() bool {
	return s.Name != "" || s.Type != nil || s.Access != "" || s.PDO != nil ||
		s.NbMin != 0 || s.NbMax != 0 || s.Default != nil
}

func (s *Sub) empty() bool {
	return !s.hasDef() && s.Value == nil && s.params().IsZero()
}

func (s *Sub) params() od.Params {
	return od.Params{Comment: s.Comment, Save: s.Save, BufferSize: s.BufferSize}
}

// Index is written as "0x%04X", and read from a string or an integer
type Index uint16

func (i Index) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("0x%04X", uint16(i))), nil
}

func (i *Index) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	index, err := parseIndex(raw)
	if err != nil {
		return err
	}
	*i = Index(index)
	return nil
}

// parseIndex accepts "0x1000", "4096" or a number, in (0, 0xFFFF]
func parseIndex(raw any) (uint16, error) {
	var value int64
	var err error
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		switch {
		case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "-0x"):
			value, err = strconv.ParseInt(strings.Replace(s, "0x", "", 1), 16, 64)
		default:
			value, err = strconv.ParseInt(s, 10, 64)
		}
	case json.Number:
		value, err = v.Int64()
	case float64:
		if v != math.Trunc(v) {
			err = fmt.Errorf("not an integer")
		}
		value = int64(v)
	default:
		err = fmt.Errorf("unexpected %T", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: invalid index %v: %v", od.ErrSchemaViolation, raw, err)
	}
	if value <= 0 || value > 0xFFFF {
		return 0, fmt.Errorf("%w: index %v out of range", od.ErrSchemaViolation, raw)
	}
	return uint16(value), nil
}

// StructField is written by name and read from a name or the numeric kind
type StructField od.Struct

func (s StructField) MarshalText() ([]byte, error) {
	return []byte(od.Struct(s).String()), nil
}

func (s *StructField) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := parseStruct(raw)
	if err != nil {
		return err
	}
	*s = StructField(kind)
	return nil
}

func parseStruct(raw any) (od.Struct, error) {
	var kind od.Struct
	var err error
	switch v := raw.(type) {
	case string:
		kind, err = od.ParseStruct(v)
	case json.Number:
		kind, err = od.ParseStruct(v.String())
	case float64:
		kind, err = od.ParseStruct(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		err = fmt.Errorf("unexpected %T", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: struct %v: %v", od.ErrSchemaViolation, raw, err)
	}
	return kind, nil
}

// floatValue keeps real values recognizable once serialized, 1.0 is never
// written as 1
type floatValue float64

func (f floatValue) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %v cannot be serialized", od.ErrInvalidValue, v)
	}
	return []byte(formatFloat(v)), nil
}

func (f floatValue) MarshalYAML() (any, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(float64(f))}, nil
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

// encodeValue prepares a stored value for serialization
func encodeValue(value od.Value) any {
	if f, ok := value.(float64); ok {
		return floatValue(f)
	}
	return value
}

// decodeValue converts a decoded document value to a stored value
func decodeValue(raw any) (od.Value, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case json.Number:
		s := v.String()
		if strings.ContainsAny(s, ".eE") {
			return strconv.ParseFloat(s, 64)
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		u, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number %v", od.ErrInvalidValue, s)
		}
		return u, nil
	case bool, string:
		return v, nil
	}
	return od.NormalizeValue(raw)
}
