package jsonod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/samsamfire/objdictgen/pkg/od"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func decodeJSONTree(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", od.ErrSchemaViolation, err)
	}
	return tree, nil
}

// Decoder reads canonical documents into nodes
type Decoder struct {
	// Repair accepts the findings [od.Node.Validate] can fix: subentry
	// definitions without a name and metadata without a value. The per
	// index checks are then left to Validate, which must be called.
	Repair bool
}

// Decode reads a canonical JSON document. Comments are allowed (JSONC).
func Decode(data []byte) (*od.Node, error) {
	return Decoder{}.Decode(data)
}

// DecodeYAML reads the YAML form of a canonical document
func DecodeYAML(data []byte) (*od.Node, error) {
	return Decoder{}.DecodeYAML(data)
}

// DecodeTOML reads the TOML form of a canonical document
func DecodeTOML(data []byte) (*od.Node, error) {
	return Decoder{}.DecodeTOML(data)
}

func (d Decoder) Decode(data []byte) (*od.Node, error) {
	std, err := standardize(data)
	if err != nil {
		return nil, err
	}
	tree, err := decodeJSONTree(std)
	if err != nil {
		return nil, err
	}
	return d.decodeTree(tree)
}

func (d Decoder) DecodeYAML(data []byte) (*od.Node, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", od.ErrSchemaViolation, err)
	}
	generic, err := genericTree(tree)
	if err != nil {
		return nil, err
	}
	return d.decodeTree(generic)
}

func (d Decoder) DecodeTOML(data []byte) (*od.Node, error) {
	tree := map[string]any{}
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("%w: %v", od.ErrSchemaViolation, err)
	}
	generic, err := genericTree(tree)
	if err != nil {
		return nil, err
	}
	return d.decodeTree(generic)
}

// genericTree converts a tree decoded from YAML or TOML to the shapes
// produced by the JSON decoder, numbers becoming json.Number
func genericTree(tree any) (any, error) {
	switch v := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			converted, err := genericTree(value)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			name, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("%w: key %v is not a string", od.ErrSchemaViolation, key)
			}
			converted, err := genericTree(value)
			if err != nil {
				return nil, err
			}
			out[name] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			converted, err := genericTree(value)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case int:
		return json.Number(strconv.Itoa(v)), nil
	case int64:
		return json.Number(strconv.FormatInt(v, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(v, 10)), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %v is not a valid number", od.ErrSchemaViolation, v)
		}
		return json.Number(formatFloat(v)), nil
	case nil, bool, string:
		return v, nil
	}
	return nil, fmt.Errorf("%w: unsupported %T value %v", od.ErrSchemaViolation, tree, tree)
}

func (d Decoder) decodeTree(tree any) (*od.Node, error) {
	tree = removeUnderscore(tree)
	if err := checkTree(tree, d.Repair); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", od.ErrSchemaViolation, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	decoder.DisallowUnknownFields()
	doc := &Document{}
	if err := decoder.Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", od.ErrSchemaViolation, err)
	}
	return buildNode(doc, d.Repair)
}

// FromCanonical rebuilds a node from a canonical document. The document
// goes through the same checks as a decoded file. Nothing is returned
// unless the whole document is valid.
func FromCanonical(doc *Document) (*od.Node, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func buildNode(doc *Document, repair bool) (*od.Node, error) {
	switch doc.Type {
	case od.NodeMaster, od.NodeSlave:
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", od.ErrSchemaViolation, doc.Type)
	}
	node := od.NewNode(doc.Name, doc.NodeID, doc.NodeDescription)
	node.Type = doc.Type
	node.ProfileName = doc.ProfileName
	if node.ProfileName == "" {
		node.ProfileName = od.NoProfileName
	}
	if doc.DefaultStringSize != 0 {
		node.DefaultStringSize = doc.DefaultStringSize
	}

	seen := map[uint16]bool{}
	defined := map[uint16]od.Group{}
	for _, obj := range doc.Dictionary {
		index := uint16(obj.Index)
		group, def, err := fromObject(node, obj)
		if err != nil {
			return nil, err
		}
		if seen[index] {
			if previous, ok := defined[index]; ok && def != nil {
				return nil, od.NewIndexError(index, od.ErrAmbiguousDefinition, "defined by %v and %v", previous, group)
			}
			return nil, od.NewIndexError(index, od.ErrSchemaViolation, "duplicate index")
		}
		seen[index] = true
		node.IndexOrder = append(node.IndexOrder, index)
		if def == nil {
			continue
		}
		defined[index] = group

		switch group {
		case od.GroupProfile:
			node.Profile[index] = def
		case od.GroupDS302:
			node.DS302[index] = def
		case od.GroupUser:
			node.UserMapping[index] = def
		case od.GroupBuiltin:
			if err := crossCheck(index, def); err != nil {
				return nil, err
			}
		}
	}

	for _, index := range node.IndexOrder {
		if repair {
			if _, err := node.GetEntryInfos(index, false); err != nil {
				return nil, err
			}
		} else if err := node.ValidateIndex(index); err != nil {
			return nil, err
		}
		if err := coerceValues(node, index); err != nil {
			return nil, err
		}
	}
	log.Debugf("[JSON] decoded node %v, %d objects", node.Name, len(node.IndexOrder))
	return node, nil
}

// fromObject stores the values and metadata of obj in node and returns
// the definition it carries, nil for repeated objects
func fromObject(node *od.Node, obj *Object) (od.Group, *od.ObjectDef, error) {
	index := uint16(obj.Index)
	kind := od.Struct(obj.Struct)
	group := od.Group(obj.Group)
	if group == "" {
		group = od.GroupUser
	}

	values := []od.Value{}
	for i, sub := range obj.Sub {
		if sub.Value == nil {
			continue
		}
		value, err := decodeValue(sub.Value)
		if err != nil {
			return "", nil, od.NewIndexError(index, od.ErrSchemaViolation, "sub[%d]: %v", i, err)
		}
		values = append(values, value)
	}
	switch {
	case len(values) > 0 && !kind.IsList():
		node.Dictionary[index] = od.NewValueEntry(values[0])
	case len(values) > 0:
		node.Dictionary[index] = od.NewListEntry(values...)
	case !obj.Unused:
		// In use, but without any element
		node.Dictionary[index] = od.NewListEntry()
	}

	params := &od.IndexParams{Callback: obj.Callback, Subs: map[uint8]od.Params{}}
	for i, sub := range obj.Sub {
		if p := sub.params(); !p.IsZero() {
			params.Subs[uint8(i)] = p
		}
	}
	if len(params.Subs) == 0 {
		params.Subs = nil
	}
	if params.Callback || params.Subs != nil {
		node.ParamsDictionary[index] = params
	}

	defs := []od.SubentryDef{}
	for i, sub := range obj.Sub {
		if !sub.hasDef() {
			continue
		}
		def, err := fromSub(sub)
		if err != nil {
			return "", nil, od.NewIndexError(index, od.ErrSchemaViolation, "sub[%d]: %v", i, err)
		}
		defs = append(defs, def)
	}
	if obj.Each != nil {
		def, err := fromSub(obj.Each)
		if err != nil {
			return "", nil, od.NewIndexError(index, od.ErrSchemaViolation, "'each': %v", err)
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return group, nil, nil
	}
	def := &od.ObjectDef{
		Name:   obj.Name,
		Struct: kind,
		Incr:   obj.Incr,
		NbMax:  obj.NbMax,
		Size:   obj.Size,
		Values: defs,
	}
	if obj.Need != nil {
		def.Need = *obj.Need
	}
	if obj.ProfileCallback != nil {
		callback := *obj.ProfileCallback
		def.Callback = &callback
	}
	if obj.Default != nil {
		value, err := decodeValue(obj.Default)
		if err != nil {
			return "", nil, od.NewIndexError(index, od.ErrSchemaViolation, "default: %v", err)
		}
		def.Default = value
	}
	return group, def, nil
}

func fromSub(sub *Sub) (od.SubentryDef, error) {
	def := od.SubentryDef{
		Name:   sub.Name,
		Access: od.Access(sub.Access),
		NbMin:  sub.NbMin,
		NbMax:  sub.NbMax,
	}
	if sub.Type != nil {
		def.Type = *sub.Type
	}
	if sub.PDO != nil {
		def.PDO = *sub.PDO
	}
	if sub.Default != nil {
		value, err := decodeValue(sub.Default)
		if err != nil {
			return def, err
		}
		def.Default = value
	}
	return def, nil
}

// crossCheck compares a built-in definition found in a document with the
// catalog, through their canonical JSON form
func crossCheck(index uint16, def *od.ObjectDef) error {
	catalog, ok := od.BuiltinEntry(index)
	if !ok {
		return od.NewIndexError(index, od.ErrCrossCheckMismatch, "not a built-in object")
	}
	got, err := json.Marshal(def)
	if err != nil {
		return err
	}
	want, err := json.Marshal(catalog)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		log.Debugf("[JSON][x%x] built-in mismatch, got %s, want %s", index, got, want)
		return od.NewIndexError(index, od.ErrCrossCheckMismatch, "does not match the built-in definition")
	}
	return nil
}

// coerceValues converts the stored values of index to the category of
// their data type
func coerceValues(node *od.Node, index uint16) error {
	entry, ok := node.Dictionary[index]
	if !ok {
		return nil
	}
	coerce := func(subindex uint8, value od.Value) (od.Value, error) {
		infos, err := node.GetSubentryInfos(index, subindex, false)
		if err != nil {
			return nil, err
		}
		coerced, err := od.CoerceValue(value, node.TypeCategory(infos.Type))
		if err != nil {
			return nil, od.NewIndexError(index, od.ErrTypeCoercion, "subindex %d: %v", subindex, err)
		}
		return coerced, nil
	}
	if !entry.List {
		value, err := coerce(0, entry.Value)
		if err != nil {
			return err
		}
		entry.Value = value
		return nil
	}
	for i, value := range entry.Values {
		coerced, err := coerce(uint8(i+1), value)
		if err != nil {
			return err
		}
		entry.Values[i] = coerced
	}
	return nil
}
