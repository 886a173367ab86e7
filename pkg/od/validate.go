package od

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ValidateDef checks the consistency of a definition with its kind, before
// it is stored in a layer
func ValidateDef(index uint16, def *ObjectDef) error {
	if !def.Struct.Valid() {
		return NewIndexError(index, ErrSchemaViolation, "unknown struct %v", def.Struct)
	}
	if def.Name == "" {
		return NewIndexError(index, ErrSchemaViolation, "definition has no name")
	}
	if len(def.Values) == 0 {
		return NewIndexError(index, ErrSchemaViolation, "definition has no subentries")
	}
	if index >= IndexFirstObject && (def.Size != 0 || def.Default != nil) {
		return NewIndexError(index, ErrSchemaViolation, "size and default are reserved to data types")
	}
	if def.Struct.Has(IdenticalIndexes) {
		if def.Incr <= 0 || def.NbMax <= 0 {
			return NewIndexError(index, ErrSchemaViolation, "%v requires incr and nbmax", def.Struct)
		}
	} else if def.Incr != 0 || def.NbMax != 0 {
		return NewIndexError(index, ErrSchemaViolation, "incr and nbmax are only allowed on identical indexes")
	}
	for i, sub := range def.Values {
		if sub.Name == "" {
			return NewIndexError(index, ErrSchemaViolation, "subentry definition %d has no name", i)
		}
		if sub.Type == 0 {
			return NewIndexError(index, ErrSchemaViolation, "subentry definition %d has no type", i)
		}
		if !sub.Access.Valid() {
			return NewIndexError(index, ErrSchemaViolation, "subentry definition %d has invalid access %q", i, sub.Access)
		}
	}

	withNbMax := []int{}
	for i, sub := range def.Values {
		if sub.NbMax > 0 {
			withNbMax = append(withNbMax, i)
		}
	}
	count := len(def.Values)
	switch def.Struct {
	case StructVAR, StructNVAR:
		if count != 1 || len(withNbMax) > 0 {
			return NewIndexError(index, ErrSchemaViolation, "%v requires exactly one subentry without nbmax", def.Struct)
		}
	case StructARRAY, StructNARRAY:
		if count != 2 || !slices.Equal(withNbMax, []int{1}) {
			return NewIndexError(index, ErrSchemaViolation, "%v requires two subentries, nbmax on the second", def.Struct)
		}
	case StructRECORD, StructNRECORD:
		switch {
		case count < 2:
			return NewIndexError(index, ErrSchemaViolation, "%v requires at least two subentries", def.Struct)
		case len(withNbMax) == 0:
		case len(withNbMax) == 1 && withNbMax[0] == 1:
			if count != 2 {
				return NewIndexError(index, ErrSchemaViolation, "%v repeating subindex 1 must have two subentries", def.Struct)
			}
		case len(withNbMax) == 1 && withNbMax[0] == count-1:
		default:
			return NewIndexError(index, ErrSchemaViolation, "%v only allows nbmax on its last subentry", def.Struct)
		}
	}
	return nil
}

// ValidateIndex checks that the definition, values and metadata stored for
// index are consistent. A non repeated index must be defined by exactly one
// layer, a member of an identical index family by none.
func (n *Node) ValidateIndex(index uint16) error {
	record := n.IndexRecord(index)
	var kind Struct
	if !record.Repeat() {
		switch len(record.Groups) {
		case 0:
			return NewIndexError(index, ErrMissingDefinition, "no definition")
		case 1:
		default:
			return NewIndexError(index, ErrAmbiguousDefinition, "defined by %v", record.Groups)
		}
		def := record.Defs[record.Groups[0]]
		if err := ValidateDef(index, def); err != nil {
			return err
		}
		kind = def.Struct
	} else {
		if len(record.Groups) > 0 {
			return NewIndexError(index, ErrAmbiguousDefinition, "member of the 0x%04X family also defined by %v", record.Base, record.Groups)
		}
		infos, err := n.GetEntryInfos(index, false)
		if err != nil {
			return err
		}
		kind = infos.Struct
	}

	if record.Entry != nil {
		if record.Entry.List != kind.IsList() {
			return NewIndexError(index, ErrSchemaViolation, "%v value stored as list=%v", kind, record.Entry.List)
		}
		for sub := 1; sub <= len(record.Entry.Values); sub++ {
			if _, err := n.GetSubentryInfos(index, uint8(sub), false); err != nil {
				return NewIndexError(index, ErrSchemaViolation, "no definition for subindex %d", sub)
			}
		}
	}
	if stray := n.strayParams(index); len(stray) > 0 {
		return NewIndexError(index, ErrSchemaViolation, "metadata for subindexes %v without value", stray)
	}
	return nil
}

// strayParams returns the subindexes holding metadata but no value
func (n *Node) strayParams(index uint16) []uint8 {
	params, ok := n.ParamsDictionary[index]
	if !ok {
		return nil
	}
	last := -1
	if entry, ok := n.Dictionary[index]; ok {
		last = 0
		if entry.List {
			last = len(entry.Values)
		}
	}
	stray := []uint8{}
	for _, sub := range maps.Keys(params.Subs) {
		if int(sub) > last {
			stray = append(stray, sub)
		}
	}
	slices.Sort(stray)
	if last < 0 && params.Callback && len(stray) == 0 {
		stray = append(stray, 0)
	}
	return stray
}

// Validate checks every index of the node. Missing subentry names and
// metadata without a value are repaired when fix is set, and reported as
// warnings. Other findings cannot be repaired.
func (n *Node) Validate(fix bool) ([]string, error) {
	warnings := []string{}
	for _, index := range n.GetAllParameters(true) {
		for _, layer := range n.Layers() {
			def, ok := layer.Resolver.(Mapping)[index]
			if !ok {
				continue
			}
			for i := range def.Values {
				if def.Values[i].Name != "" {
					continue
				}
				if !fix {
					return warnings, NewIndexError(index, ErrSchemaViolation, "subentry definition %d has no name", i)
				}
				def.Values[i].Name = fmt.Sprintf("Subindex %d", i)
				warnings = append(warnings, fmt.Sprintf("index 0x%04X: %v subentry %d has no name, set to %q", index, layer.Group, i, def.Values[i].Name))
			}
		}
		if stray := n.strayParams(index); len(stray) > 0 {
			if !fix {
				return warnings, NewIndexError(index, ErrSchemaViolation, "metadata for subindexes %v without value", stray)
			}
			params := n.ParamsDictionary[index]
			for _, sub := range stray {
				delete(params.Subs, sub)
			}
			if _, ok := n.Dictionary[index]; !ok {
				params.Callback = false
			}
			n.storeParams(index, params)
			warnings = append(warnings, fmt.Sprintf("index 0x%04X: removed metadata of subindexes %v without value", index, stray))
		}
		if err := n.ValidateIndex(index); err != nil {
			return warnings, err
		}
	}
	for _, warning := range warnings {
		log.Warnf("[OD] %v", warning)
	}
	return warnings, nil
}
