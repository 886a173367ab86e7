package jsonod

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samsamfire/objdictgen/pkg/od"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type fields map[string]bool

func newFields(names ...string) fields {
	f := fields{}
	for _, name := range names {
		f[name] = true
	}
	return f
}

func (f fields) with(others ...fields) fields {
	u := maps.Clone(f)
	for _, other := range others {
		for name := range other {
			u[name] = true
		}
	}
	return u
}

var (
	fieldsData     = newFields("$id", "$version", "name", "description", "type", "dictionary")
	fieldsDataOpt  = newFields("$description", "$tool", "$date", "id", "profile", "profile_name", "ds302", "default_string_size")
	fieldsMapping  = newFields("need", "incr", "nbmax", "size", "default")
	fieldsDict     = newFields("index", "name", "struct", "sub")
	fieldsDictOpt  = newFields("group", "each", "callback", "profile_callback", "unused").with(fieldsMapping)
	fieldsRepeat   = newFields("index", "repeat", "struct", "sub")
	fieldsRepeatOp = newFields("callback", "unused").with(fieldsMapping)
	fieldsSubDef   = newFields("name", "type", "access", "pdo")
	fieldsSubOpt   = newFields("nbmin", "nbmax", "default")
	fieldsParams   = newFields("comment", "save", "buffer_size")
	fieldsValue    = newFields("value")
)

// Fields of subindex 0 of list objects that are implied when left out
var subindex0 = map[string]any{
	"name":   od.NumberOfEntries,
	"type":   json.Number("5"),
	"access": string(od.AccessRO),
	"pdo":    false,
}

func sortedNames(names []string) string {
	slices.Sort(names)
	return "'" + strings.Join(names, "', '") + "'"
}

// checkMembers fails when a must field is missing or when a field is
// neither a must nor an optional one
func checkMembers(obj map[string]any, must fields, optional fields) error {
	missing := []string{}
	for name := range must {
		if _, ok := obj[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required parameters %v", sortedNames(missing))
	}
	unexpected := []string{}
	for name := range obj {
		if !must[name] && !optional[name] {
			unexpected = append(unexpected, name)
		}
	}
	if len(unexpected) > 0 {
		return fmt.Errorf("unexpected parameters %v", sortedNames(unexpected))
	}
	return nil
}

// removeUnderscore drops every key starting with "__", at any depth
func removeUnderscore(tree any) any {
	switch v := tree.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if !strings.HasPrefix(key, "__") {
				out[key] = removeUnderscore(value)
			}
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = removeUnderscore(value)
		}
		return out
	}
	return tree
}

func schemaError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", od.ErrSchemaViolation, fmt.Sprintf(format, args...))
}

// checkTree validates a generic document before it is decoded into a
// [Document]. Implied subindex 0 fields are filled in place. With repair,
// subentries without a name and metadata without a value are accepted.
func checkTree(tree any, repair bool) error {
	top, ok := tree.(map[string]any)
	if !ok || len(top) == 0 {
		return schemaError("document is empty or not an object")
	}
	if top["$id"] != DocumentID {
		return schemaError("unknown file format, expected '$id' to be %q, found %v", DocumentID, top["$id"])
	}
	switch top["$version"] {
	case Version:
	case InternalVersion:
		return schemaError("internal format version %q is not supported", InternalVersion)
	default:
		return schemaError("unknown file version, expected '$version' to be %q, found %v", Version, top["$version"])
	}
	if err := checkMembers(top, fieldsData, fieldsDataOpt); err != nil {
		return schemaError("%v", err)
	}
	dictionary, ok := top["dictionary"].([]any)
	if !ok {
		return schemaError("dictionary is not a list")
	}
	for num, raw := range dictionary {
		obj, ok := raw.(map[string]any)
		if !ok {
			return schemaError("item number %d of dictionary is not an object", num)
		}
		index, err := parseIndex(obj["index"])
		if err != nil {
			return fmt.Errorf("item number %d of dictionary: %w", num, err)
		}
		if err := checkObject(obj, repair); err != nil {
			return od.NewIndexError(index, od.ErrSchemaViolation, "%v", err)
		}
	}
	return nil
}

func checkObject(obj map[string]any, repair bool) error {
	repeat := false
	if raw, ok := obj["repeat"]; ok {
		if repeat, ok = raw.(bool); !ok {
			return fmt.Errorf("repeat is not a boolean")
		}
	}
	if repeat {
		if err := checkMembers(obj, fieldsRepeat, fieldsRepeatOp); err != nil {
			return err
		}
	} else if err := checkMembers(obj, fieldsDict, fieldsDictOpt); err != nil {
		return err
	}

	kind, err := parseStruct(obj["struct"])
	if err != nil {
		return err
	}
	if raw, ok := obj["group"]; ok {
		group, ok := raw.(string)
		if !ok || (group != "" && !od.Group(group).Valid()) {
			return fmt.Errorf("unknown group value %v", raw)
		}
	}
	subs, ok := obj["sub"].([]any)
	if !ok {
		return fmt.Errorf("'sub' is not a list")
	}
	_, hasEach := obj["each"]
	isVar := !kind.IsList()

	if !repeat && !isVar && len(subs) > 0 {
		if sub0, ok := subs[0].(map[string]any); ok {
			for name, value := range subindex0 {
				if _, ok := sub0[name]; !ok {
					sub0[name] = value
				}
			}
		}
	}

	// A record may end with a definition covering every following subindex
	trail := len(subs)
	if !repeat && !isVar && !hasEach {
		for idx := 1; idx < len(subs); idx++ {
			if sub, ok := subs[idx].(map[string]any); ok {
				if _, ok := sub["nbmax"]; ok {
					trail = idx
					break
				}
			}
		}
	}

	hasName := make([]bool, len(subs))
	hasValue := make([]bool, len(subs))
	for idx, raw := range subs {
		mode := subMode{idx: idx, isVar: isVar, repeat: repeat, each: hasEach, family: idx == trail, trailing: idx > trail, repair: repair}
		if err := checkSub(raw, mode); err != nil {
			return fmt.Errorf("sub[%d]: %w", idx, err)
		}
		sub := raw.(map[string]any)
		_, hasName[idx] = sub["name"]
		if !hasName[idx] && repair {
			// A definition missing only its name
			_, hasName[idx] = sub["type"]
		}
		_, hasValue[idx] = sub["value"]
	}
	names, values := count(hasName), count(hasValue)

	if hasEach {
		if err := checkSub(obj["each"], subMode{idx: -1, repair: repair}); err != nil {
			return fmt.Errorf("'each': %w", err)
		}
		if !(names == 1 && hasName[0]) {
			return fmt.Errorf("unexpected subitems, subitem 0 must contain name")
		}
	}
	index, _ := parseIndex(obj["index"])
	if _, ok := obj["default"]; ok && index >= od.IndexFirstObject {
		return fmt.Errorf("'default' cannot be used in index 0x1000 and above")
	}
	if _, ok := obj["size"]; ok && index >= od.IndexFirstObject {
		return fmt.Errorf("'size' cannot be used in index 0x1000 and above")
	}
	_, hasNbMax := obj["nbmax"]
	_, hasIncr := obj["incr"]
	if !repeat && kind.Has(od.IdenticalIndexes) {
		if !hasNbMax || !hasIncr {
			return fmt.Errorf("%v requires 'incr' and 'nbmax'", kind)
		}
	} else if hasNbMax || hasIncr {
		return fmt.Errorf("unexpected parameters 'incr' or 'nbmax' on %v", kind)
	}
	if raw, ok := obj["unused"]; ok {
		unused, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("unused is not a boolean")
		}
		if unused && values > 0 {
			return fmt.Errorf("there is %d values in subitems, but 'unused' is true", values)
		}
		if !unused && values == 0 {
			return fmt.Errorf("there is no values in subitems, but 'unused' is false")
		}
	}

	if isVar {
		switch {
		case hasEach:
			return fmt.Errorf("unexpected 'each' found in %v object", kind)
		case !repeat && names != 1:
			return fmt.Errorf("must have definition in subitem 0")
		case repeat && values == 0:
			return fmt.Errorf("must have value in subitem 0")
		}
		return nil
	}
	if !repeat && len(subs) < 1 {
		return fmt.Errorf("expects at least one subitem")
	}
	if values > 0 {
		if hasValue[0] {
			return fmt.Errorf("subitem 0 should not contain any value")
		}
		// Values are restored by position, they must be contiguous from subindex 1
		for idx := 1; idx < len(hasValue); idx++ {
			if hasValue[idx] != (idx <= values) {
				return fmt.Errorf("values must be stored in subitems 1 to %d", values)
			}
		}
	}
	if kind.Has(od.IdenticalSubindexes) {
		if !repeat && !hasEach {
			return fmt.Errorf("field 'each' missing from %v object", kind)
		}
	} else if !repeat && !hasEach {
		named := trail + 1
		if named > len(subs) {
			named = len(subs)
		}
		if count(hasName[:named]) != named {
			return fmt.Errorf("not all subitems have name, %d of %d", count(hasName[:named]), named)
		}
	}
	return nil
}

type subMode struct {
	idx      int // -1 for the 'each' definition
	isVar    bool
	repeat   bool
	each     bool
	family   bool // definition covering the remaining subindexes
	trailing bool // subindex covered by a family definition
	repair   bool
}

type presence int

const (
	absent presence = iota
	optional
	required
)

func checkSub(raw any, mode subMode) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("is not an object")
	}
	if mode.idx > 0 && mode.isVar {
		return fmt.Errorf("expects only one subitem on var/nvar")
	}
	if _, ok := obj["value"]; ok && mode.idx == 0 && !mode.isVar {
		return fmt.Errorf("unexpected parameters 'value'")
	}
	_, hasNbMax := obj["nbmax"]
	switch {
	case mode.idx == -1 && !hasNbMax:
		return fmt.Errorf("missing required parameters 'nbmax'")
	case mode.idx != -1 && !mode.family && hasNbMax:
		return fmt.Errorf("unexpected parameters 'nbmax'")
	}

	defs, params, value := required, optional, absent
	switch {
	case mode.idx == -1:
		params = absent
	case mode.repeat:
		defs = absent
		if mode.isVar || mode.idx > 0 {
			value = required
		}
	case mode.isVar:
		value = optional
	case mode.each || mode.trailing:
		if mode.idx > 0 {
			defs = absent
			value = required
		}
	default:
		if mode.idx > 0 {
			value = optional
		}
	}

	if mode.repair && value == required {
		value = optional
	}

	must, opt := fields{}, fields{}
	for _, group := range []struct {
		p presence
		f fields
		o fields
	}{
		{defs, fieldsSubDef, fieldsSubOpt},
		{params, fieldsParams, nil},
		{value, fieldsValue, nil},
	} {
		switch group.p {
		case required:
			must = must.with(group.f)
			opt = opt.with(group.o)
		case optional:
			opt = opt.with(group.f, group.o)
		}
	}
	if mode.repair && must["name"] {
		delete(must, "name")
		opt["name"] = true
	}
	if err := checkMembers(obj, must, opt); err != nil {
		return err
	}
	if raw, ok := obj["name"]; ok {
		if name, ok := raw.(string); !ok || name == "" {
			return fmt.Errorf("must have a non-zero length name")
		}
	}
	return nil
}

func count(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
