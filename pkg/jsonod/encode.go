package jsonod

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/samsamfire/objdictgen/pkg/od"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Options controls the canonical output
type Options struct {
	// Sort the dictionary by index instead of the node order
	Sort bool
	// Leave out $date, the output then only depends on the node
	OmitDate bool
	// Append the decimal index as a comment after each index (JSONC output)
	Comments bool
}

const dateLayout = "2006-01-02T15:04:05.000000"

// ToCanonical converts node to its canonical document. Every index is
// validated first, and the produced document must pass the same checks
// as a decoded one.
func ToCanonical(node *od.Node, opts Options) (*Document, error) {
	doc := &Document{
		ID:                DocumentID,
		Version:           Version,
		Description:       DescriptionText,
		Tool:              ToolName + " " + ToolVersion,
		Name:              node.Name,
		NodeDescription:   node.Description,
		Type:              node.Type,
		NodeID:            node.ID,
		ProfileName:       node.ProfileName,
		DefaultStringSize: node.DefaultStringSize,
		Dictionary:        []*Object{},
	}
	if !opts.OmitDate {
		doc.Date = time.Now().Format(dateLayout)
	}
	for _, index := range node.GetAllParameters(opts.Sort) {
		if err := node.ValidateIndex(index); err != nil {
			return nil, err
		}
		obj, err := toObject(node, index)
		if err != nil {
			return nil, err
		}
		doc.Dictionary = append(doc.Dictionary, obj)
	}
	if err := checkDocument(doc); err != nil {
		return nil, fmt.Errorf("generated document does not validate: %w", err)
	}
	log.Debugf("[JSON] converted node %v, %d objects", node.Name, len(doc.Dictionary))
	return doc, nil
}

func toObject(node *od.Node, index uint16) (*Object, error) {
	record := node.IndexRecord(index)
	obj := &Object{Index: Index(index), Sub: []*Sub{}}
	var kind od.Struct
	if !record.Repeat() {
		group := record.Groups[0]
		def := record.Defs[group]
		if group != od.GroupUser {
			obj.Group = string(group)
		}
		kind = def.Struct
		need := def.Need
		obj.Name = def.Name
		obj.Need = &need
		if def.Callback != nil {
			callback := *def.Callback
			obj.ProfileCallback = &callback
		}
		obj.Default = encodeValue(def.Default)
		obj.Size = def.Size
		obj.Incr = def.Incr
		obj.NbMax = def.NbMax
		for _, value := range def.Values {
			obj.Sub = append(obj.Sub, toSub(value))
		}
		if len(obj.Sub) > 1 && obj.Sub[1].NbMax != 0 {
			obj.Each = obj.Sub[1]
			obj.Sub = append(obj.Sub[:1], obj.Sub[2:]...)
		}
		if kind.IsList() && len(obj.Sub) > 0 {
			stripSubindex0(obj.Sub[0])
		}
	} else {
		infos, err := node.GetEntryInfos(index, false)
		if err != nil {
			return nil, err
		}
		obj.Repeat = true
		kind = infos.Struct
	}
	obj.Struct = StructField(kind)

	if record.Params != nil && record.Params.Callback {
		obj.Callback = true
	}
	start := 0
	values := []od.Value{}
	switch {
	case record.Entry == nil:
		obj.Unused = true
	case record.Entry.List:
		start = 1
		values = record.Entry.Values
	default:
		values = []od.Value{record.Entry.Value}
	}
	length := start + len(values)
	if record.Params != nil {
		for sub := range record.Params.Subs {
			if int(sub)+1 > length {
				length = int(sub) + 1
			}
		}
	}
	for len(obj.Sub) < length {
		obj.Sub = append(obj.Sub, &Sub{})
	}
	for i, value := range values {
		obj.Sub[start+i].Value = encodeValue(value)
	}
	if record.Params != nil {
		subs := maps.Keys(record.Params.Subs)
		slices.Sort(subs)
		for _, sub := range subs {
			params := record.Params.Subs[sub]
			obj.Sub[sub].Comment = params.Comment
			obj.Sub[sub].Save = params.Save
			obj.Sub[sub].BufferSize = params.BufferSize
		}
	}
	return obj, nil
}

func toSub(def od.SubentryDef) *Sub {
	datatype := def.Type
	pdo := def.PDO
	return &Sub{
		Name:    def.Name,
		Type:    &datatype,
		Access:  string(def.Access),
		PDO:     &pdo,
		NbMin:   def.NbMin,
		NbMax:   def.NbMax,
		Default: encodeValue(def.Default),
	}
}

// stripSubindex0 leaves out the fields holding their implied value
func stripSubindex0(sub *Sub) {
	if sub.Name == od.NumberOfEntries {
		sub.Name = ""
	}
	if sub.Type != nil && *sub.Type == od.UNSIGNED8 {
		sub.Type = nil
	}
	if sub.Access == string(od.AccessRO) {
		sub.Access = ""
	}
	if sub.PDO != nil && !*sub.PDO {
		sub.PDO = nil
	}
}

// checkDocument runs the decoding checks on a document built in memory
func checkDocument(doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	tree, err := decodeJSONTree(raw)
	if err != nil {
		return err
	}
	return checkTree(removeUnderscore(tree), false)
}

// MarshalJSON writes doc as indented JSON. With comments, the decimal
// index follows each index line.
func MarshalJSON(doc *Document, comments bool) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if comments {
		out = indexLine.ReplaceAllFunc(out, func(line []byte) []byte {
			match := indexLine.FindSubmatch(line)
			index, err := strconv.ParseUint(string(match[1]), 16, 16)
			if err != nil {
				return line
			}
			// line aliases out, write to a fresh slice
			return fmt.Appendf(slices.Clone(line), "  // %d", index)
		})
	}
	return out, nil
}

var indexLine = regexp.MustCompile(`"index": "0x([0-9a-fA-F]+)",`)

// Encode converts node to canonical JSON
func Encode(node *od.Node, opts Options) ([]byte, error) {
	doc, err := ToCanonical(node, opts)
	if err != nil {
		return nil, err
	}
	return MarshalJSON(doc, opts.Comments)
}

// EncodeYAML converts node to the YAML form of the canonical document
func EncodeYAML(node *od.Node, opts Options) ([]byte, error) {
	doc, err := ToCanonical(node, opts)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	encoder := yaml.NewEncoder(buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTOML converts node to the TOML form of the canonical document.
// TOML has no representation for unsigned values above the int64 range.
func EncodeTOML(node *od.Node, opts Options) ([]byte, error) {
	doc, err := ToCanonical(node, opts)
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	encoder := toml.NewEncoder(buf)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
