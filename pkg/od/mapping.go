package od

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SubentryDef defines one subindex, or a family of subindexes when NbMax is set
type SubentryDef struct {
	Name    string
	Type    uint16
	Access  Access
	PDO     bool
	NbMin   int
	NbMax   int
	Default Value
}

// ObjectDef defines one index, or a family of indexes for [IdenticalIndexes] kinds
type ObjectDef struct {
	Name     string
	Struct   Struct
	Need     bool
	Callback *bool
	Incr     int
	NbMax    int
	Size     int   // data type definitions only
	Default  Value // data type definitions only
	Values   []SubentryDef
}

// Clone returns a deep copy of the definition
func (def *ObjectDef) Clone() *ObjectDef {
	if def == nil {
		return nil
	}
	c := *def
	if def.Callback != nil {
		callback := *def.Callback
		c.Callback = &callback
	}
	if def.Values != nil {
		c.Values = slices.Clone(def.Values)
	}
	return &c
}

// Mapping is a table of definitions keyed by index.
// Profile, DS302 and UserMapping overlays are all mappings.
type Mapping map[uint16]*ObjectDef

// Resolver finds the definition owning an index
type Resolver interface {
	// Resolve returns the base index and definition owning index
	Resolve(index uint16) (base uint16, def *ObjectDef, ok bool)
}

// Resolve checks direct membership first, then the identical index
// families of the mapping, lowest base first.
func (m Mapping) Resolve(index uint16) (uint16, *ObjectDef, bool) {
	if def, ok := m[index]; ok {
		return index, def, true
	}
	bases := make([]uint16, 0)
	for base, def := range m {
		if def.Struct.Has(IdenticalIndexes) {
			bases = append(bases, base)
		}
	}
	slices.Sort(bases)
	for _, base := range bases {
		def := m[base]
		incr := def.Incr
		if incr <= 0 {
			incr = 1
		}
		offset := int(index) - int(base)
		if offset > 0 && offset < incr*def.NbMax && offset%incr == 0 {
			return base, def, true
		}
	}
	return 0, nil, false
}

// Indexes returns the indexes of the mapping in ascending order
func (m Mapping) Indexes() []uint16 {
	indexes := maps.Keys(m)
	slices.Sort(indexes)
	return indexes
}

// Clone returns a deep copy of the mapping
func (m Mapping) Clone() Mapping {
	if m == nil {
		return nil
	}
	c := make(Mapping, len(m))
	for index, def := range m {
		c[index] = def.Clone()
	}
	return c
}

// Layer is one definition source, searched in priority order
type Layer struct {
	Group    Group
	Resolver Resolver
}

func withBuiltin(layers []Layer) []Layer {
	all := make([]Layer, 0, len(layers)+1)
	all = append(all, layers...)
	return append(all, Layer{GroupBuiltin, builtin})
}

// ResolveBaseIndex returns the layer and base index owning index.
// The built-in catalog is consulted after the given layers.
func ResolveBaseIndex(index uint16, layers []Layer) (Layer, uint16, error) {
	for _, layer := range withBuiltin(layers) {
		if layer.Resolver == nil {
			continue
		}
		if base, _, ok := layer.Resolver.Resolve(index); ok {
			return layer, base, nil
		}
	}
	return Layer{}, 0, NewIndexError(index, ErrMissingDefinition, "no layer defines this index")
}

// BaseIndexNumber returns the position of index inside its identical index
// family, 0 for the base itself. This is the "base" formula variable.
func BaseIndexNumber(index uint16, layers []Layer) int {
	for _, layer := range withBuiltin(layers) {
		if layer.Resolver == nil {
			continue
		}
		if base, def, ok := layer.Resolver.Resolve(index); ok {
			incr := def.Incr
			if incr <= 0 {
				incr = 1
			}
			return (int(index) - int(base)) / incr
		}
	}
	return 0
}

// channel returns the 1 based channel number of index within its family
func channel(index uint16, base uint16, def *ObjectDef) int {
	incr := 1
	if def.Struct.Has(IdenticalIndexes) && def.Incr > 0 {
		incr = def.Incr
	}
	return (int(index)-int(base))/incr + 1
}

func findEntryInfos(index uint16, r Resolver, compute bool) (*ObjectDef, error) {
	base, def, ok := r.Resolve(index)
	if !ok {
		return nil, nil
	}
	infos := def.Clone()
	infos.Values = nil
	if compute && def.Struct.Has(IdenticalIndexes) {
		name, err := FormatName(def.Name, channel(index, base, def), 0)
		if err != nil {
			return nil, NewIndexError(index, err, "entry name")
		}
		infos.Name = name
	}
	return infos, nil
}

// subentryDef walks the subentry definitions of def to find the one covering subindex
func subentryDef(def *ObjectDef, subindex uint8) (SubentryDef, bool) {
	if !def.Struct.Has(HasSubindex) || len(def.Values) == 0 {
		return SubentryDef{}, false
	}
	sub := int(subindex)
	switch {
	case def.Struct.Has(IdenticalSubindexes):
		if sub == 0 {
			return def.Values[0], true
		}
		if len(def.Values) > 1 && sub <= def.Values[1].NbMax {
			return def.Values[1], true
		}
	case def.Struct.Has(MultipleSubindexes):
		idx := 0
		for _, v := range def.Values {
			if v.NbMax > 0 {
				if idx <= sub && sub < idx+v.NbMax {
					return v, true
				}
				idx += v.NbMax
			} else {
				if sub == idx {
					return v, true
				}
				idx++
			}
		}
	case sub == 0:
		return def.Values[0], true
	}
	return SubentryDef{}, false
}

func findSubentryInfos(index uint16, subindex uint8, r Resolver, compute bool) (*SubentryDef, error) {
	base, def, ok := r.Resolve(index)
	if !ok {
		return nil, nil
	}
	infos, ok := subentryDef(def, subindex)
	if !ok {
		return nil, nil
	}
	if compute {
		name, err := FormatName(infos.Name, channel(index, base, def), int(subindex))
		if err != nil {
			return nil, NewIndexError(index, err, "subindex %d name", subindex)
		}
		infos.Name = name
	}
	return &infos, nil
}

// mergeEntry lays the overlay fields over the catalog definition
func mergeEntry(catalog *ObjectDef, overlay *ObjectDef) *ObjectDef {
	merged := catalog.Clone()
	merged.Name = overlay.Name
	merged.Struct = overlay.Struct
	merged.Need = overlay.Need
	if overlay.Callback != nil {
		callback := *overlay.Callback
		merged.Callback = &callback
	}
	if overlay.Incr != 0 {
		merged.Incr = overlay.Incr
	}
	if overlay.NbMax != 0 {
		merged.NbMax = overlay.NbMax
	}
	if overlay.Size != 0 {
		merged.Size = overlay.Size
	}
	if overlay.Default != nil {
		merged.Default = overlay.Default
	}
	return merged
}

func mergeSubentry(catalog *SubentryDef, overlay *SubentryDef) *SubentryDef {
	merged := *catalog
	merged.Name = overlay.Name
	merged.Type = overlay.Type
	merged.Access = overlay.Access
	merged.PDO = overlay.PDO
	if overlay.NbMin != 0 {
		merged.NbMin = overlay.NbMin
	}
	if overlay.NbMax != 0 {
		merged.NbMax = overlay.NbMax
	}
	if overlay.Default != nil {
		merged.Default = overlay.Default
	}
	return &merged
}

// ResolveEntry returns the effective definition of index, without subentries.
// The first overlay hit is laid over the catalog definition, overlay fields winning.
func ResolveEntry(index uint16, layers []Layer, compute bool) (*ObjectDef, error) {
	var result *ObjectDef
	for _, layer := range layers {
		if layer.Resolver == nil {
			continue
		}
		infos, err := findEntryInfos(index, layer.Resolver, compute)
		if err != nil {
			return nil, err
		}
		if infos != nil {
			result = infos
			break
		}
	}
	catalog, err := findEntryInfos(index, builtin, compute)
	if err != nil {
		return nil, err
	}
	switch {
	case catalog != nil && result != nil:
		return mergeEntry(catalog, result), nil
	case catalog != nil:
		return catalog, nil
	case result != nil:
		return result, nil
	}
	return nil, NewIndexError(index, ErrMissingDefinition, "no layer defines this index")
}

// SubentryInfos is the effective definition of one subindex
type SubentryInfos struct {
	SubentryDef
	// Set when the definition comes from the user mapping
	UserDefined bool
}

// ResolveSubentry returns the effective definition of index/subindex.
// A hit in the [GroupUser] layer of an index >= 0x1000 is user defined.
func ResolveSubentry(index uint16, subindex uint8, layers []Layer, compute bool) (*SubentryInfos, error) {
	var result *SubentryInfos
	for _, layer := range layers {
		if layer.Resolver == nil {
			continue
		}
		infos, err := findSubentryInfos(index, subindex, layer.Resolver, compute)
		if err != nil {
			return nil, err
		}
		if infos != nil {
			result = &SubentryInfos{
				SubentryDef: *infos,
				UserDefined: layer.Group == GroupUser && index >= IndexFirstObject,
			}
			break
		}
	}
	catalog, err := findSubentryInfos(index, subindex, builtin, compute)
	if err != nil {
		return nil, err
	}
	switch {
	case catalog != nil && result != nil:
		return &SubentryInfos{SubentryDef: *mergeSubentry(catalog, &result.SubentryDef), UserDefined: result.UserDefined}, nil
	case catalog != nil:
		return &SubentryInfos{SubentryDef: *catalog}, nil
	case result != nil:
		return result, nil
	}
	return nil, NewIndexError(index, ErrMissingDefinition, "no definition for subindex %d", subindex)
}
