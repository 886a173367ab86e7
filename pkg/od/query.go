package od

import (
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// GetIndexes returns the indexes holding a value, in ascending order
func (n *Node) GetIndexes() []uint16 {
	indexes := maps.Keys(n.Dictionary)
	slices.Sort(indexes)
	return indexes
}

// GetAllParameters returns every index known to the node: user definitions,
// values, metadata, then the profile and DS-302 objects.
// Unless sorted, indexes listed in IndexOrder come first, in that order.
func (n *Node) GetAllParameters(sorted bool) []uint16 {
	order := []uint16{}
	seen := map[uint16]bool{}
	add := func(indexes []uint16) {
		for _, index := range indexes {
			if !seen[index] {
				seen[index] = true
				order = append(order, index)
			}
		}
	}
	add(n.UserMapping.Indexes())
	add(n.GetIndexes())
	params := maps.Keys(n.ParamsDictionary)
	slices.Sort(params)
	add(params)
	add(n.Profile.Indexes())
	add(n.DS302.Indexes())

	if sorted {
		slices.Sort(order)
		return order
	}
	keys := make([]uint16, 0, len(order))
	picked := map[uint16]bool{}
	for _, index := range n.IndexOrder {
		if seen[index] && !picked[index] {
			picked[index] = true
			keys = append(keys, index)
		}
	}
	for _, index := range order {
		if !picked[index] {
			keys = append(keys, index)
		}
	}
	return keys
}

// GetUnusedParameters returns the known indexes not holding a value
func (n *Node) GetUnusedParameters() []uint16 {
	unused := []uint16{}
	for _, index := range n.GetAllParameters(false) {
		if _, ok := n.Dictionary[index]; !ok {
			unused = append(unused, index)
		}
	}
	return unused
}

// RemoveIndex removes index from every collection of the node.
// A node whose profile gets empty no longer has a profile.
func (n *Node) RemoveIndex(index uint16) {
	delete(n.UserMapping, index)
	delete(n.Dictionary, index)
	delete(n.ParamsDictionary, index)
	delete(n.DS302, index)
	if len(n.Profile) > 0 {
		delete(n.Profile, index)
		if len(n.Profile) == 0 {
			n.ProfileName = NoProfileName
		}
	}
}

// GetBaseIndex returns the index defining index, itself unless it belongs
// to an identical index family
func (n *Node) GetBaseIndex(index uint16) (uint16, error) {
	_, base, err := ResolveBaseIndex(index, n.Layers())
	return base, err
}

func (n *Node) GetBaseIndexNumber(index uint16) int {
	return BaseIndexNumber(index, n.Layers())
}

func (n *Node) GetEntryName(index uint16, compute bool) (string, error) {
	infos, err := n.GetEntryInfos(index, compute)
	if err != nil {
		return "", err
	}
	return infos.Name, nil
}

func (n *Node) GetEntryInfos(index uint16, compute bool) (*ObjectDef, error) {
	return ResolveEntry(index, n.Layers(), compute)
}

func (n *Node) GetSubentryInfos(index uint16, subindex uint8, compute bool) (*SubentryInfos, error) {
	return ResolveSubentry(index, subindex, n.Layers(), compute)
}

// SubentryDetail combines the definition, value and metadata of a subindex
type SubentryDetail struct {
	Subindex uint8
	Value    Value
	Params   Params
	Infos    *SubentryInfos // nil when no definition covers the subindex
}

// GetAllSubentryInfos returns the details of every subindex holding a value
func (n *Node) GetAllSubentryInfos(index uint16, compute bool) ([]SubentryDetail, error) {
	values, err := n.GetEntryValues(index, compute)
	if err != nil {
		return nil, err
	}
	params, err := n.GetIndexParams(index)
	if err != nil {
		return nil, err
	}
	details := make([]SubentryDetail, 0, len(values))
	for i, value := range values {
		detail := SubentryDetail{Subindex: uint8(i), Value: value, Params: params[i]}
		if infos, err := n.GetSubentryInfos(index, uint8(i), compute); err == nil {
			detail.Infos = infos
		}
		details = append(details, detail)
	}
	return details, nil
}

// GetEntryFlags returns the display flags of index
func (n *Node) GetEntryFlags(index uint16) []string {
	flags := []string{}
	infos, err := n.GetEntryInfos(index, true)
	if err != nil {
		return flags
	}
	if infos.Need {
		flags = append(flags, "Mandatory")
	}
	_, user := n.UserMapping[index]
	_, ds302 := n.DS302[index]
	_, profile := n.Profile[index]
	if user {
		flags = append(flags, "User")
	}
	if ds302 {
		flags = append(flags, "DS-302")
	}
	if profile {
		flags = append(flags, "Profile")
	}
	if n.HasEntryCallbacks(index) {
		flags = append(flags, "CB")
	}
	if _, ok := n.Dictionary[index]; !ok {
		if ds302 || profile {
			flags = append(flags, "Unused")
		} else {
			flags = append(flags, "Missing")
		}
	}
	return flags
}

// IndexRecord gathers everything the node knows about one index.
// Defs only holds the layers defining the index directly.
type IndexRecord struct {
	Index    uint16
	Base     uint16
	Resolved bool
	Groups   []Group
	Defs     map[Group]*ObjectDef
	Entry    *Entry
	Params   *IndexParams
}

// Repeat reports whether the index is a member of a family defined elsewhere
func (r *IndexRecord) Repeat() bool {
	return r.Resolved && r.Base != r.Index
}

// IndexRecord returns a copy of everything stored about index
func (n *Node) IndexRecord(index uint16) *IndexRecord {
	record := &IndexRecord{
		Index:  index,
		Groups: []Group{},
		Defs:   map[Group]*ObjectDef{},
		Entry:  n.Dictionary[index].Clone(),
		Params: n.ParamsDictionary[index].Clone(),
	}
	for _, layer := range n.Layers() {
		if def, ok := layer.Resolver.(Mapping)[index]; ok {
			record.Groups = append(record.Groups, layer.Group)
			record.Defs[layer.Group] = def.Clone()
		}
	}
	if def, ok := BuiltinEntry(index); ok {
		record.Groups = append(record.Groups, GroupBuiltin)
		record.Defs[GroupBuiltin] = def
	}
	if base, err := n.GetBaseIndex(index); err == nil {
		record.Base = base
		record.Resolved = true
	}
	return record
}

// TypeCategory returns the value category of a data type. Custom types
// take the category of the primitive type they derive from.
func (n *Node) TypeCategory(datatype uint16) Category {
	if category := primitiveCategory(datatype); category != CategoryOther {
		return category
	}
	if datatype < CustomTypeFirst || datatype > CustomTypeLast {
		return CategoryOther
	}
	raw, err := n.GetEntry(datatype, 1, false)
	if err != nil {
		return CategoryOther
	}
	base, ok := raw.(int64)
	if !ok {
		return CategoryOther
	}
	switch uint16(base) {
	case VISIBLE_STRING, OCTET_STRING, UNICODE_STRING:
		return CategoryString
	case REAL32, REAL64:
		return CategoryReal
	}
	return CategoryOther
}

func (n *Node) IsStringType(datatype uint16) bool {
	return n.TypeCategory(datatype) == CategoryString
}

func (n *Node) IsRealType(datatype uint16) bool {
	return n.TypeCategory(datatype) == CategoryReal
}

// typeMappings returns the overlays then the catalog, for type lookups
func (n *Node) typeMappings() []Mapping {
	return []Mapping{n.Profile, n.DS302, n.UserMapping, builtin.m}
}

// GetTypeIndex returns the index of the data type called name
func (n *Node) GetTypeIndex(name string) (uint16, bool) {
	for _, m := range n.typeMappings() {
		for _, index := range m.Indexes() {
			if index < IndexFirstObject && m[index].Name == name {
				return index, true
			}
		}
	}
	return 0, false
}

func (n *Node) GetTypeName(datatype uint16) (string, bool) {
	if datatype >= IndexFirstObject {
		return "", false
	}
	for _, m := range n.typeMappings() {
		if def, ok := m[datatype]; ok {
			return def.Name, true
		}
	}
	return "", false
}

func (n *Node) GetTypeDefaultValue(datatype uint16) (Value, bool) {
	if datatype >= IndexFirstObject {
		return nil, false
	}
	for _, m := range n.typeMappings() {
		if def, ok := m[datatype]; ok && def.Default != nil {
			return def.Default, true
		}
	}
	return nil, false
}

// GetTypeList returns the sorted names of every known data type
func (n *Node) GetTypeList() []string {
	names := []string{}
	for _, m := range n.typeMappings() {
		for index, def := range m {
			if index < IndexFirstObject {
				names = append(names, def.Name)
			}
		}
	}
	slices.Sort(names)
	return names
}

// GetCustomisableTypes returns the types a custom type may derive from
func (n *Node) GetCustomisableTypes() []CustomisableType {
	types := CustomisableTypes()
	for i := range types {
		if name, ok := n.GetTypeName(types[i].Index); ok {
			types[i].Name = name
		}
	}
	return types
}

// GetMandatoryIndexes returns the objects every node must implement
func (n *Node) GetMandatoryIndexes() []uint16 {
	seen := map[uint16]bool{}
	indexes := []uint16{}
	for _, m := range []Mapping{builtin.m, n.Profile, n.DS302, n.UserMapping} {
		for index, def := range m {
			if index >= IndexFirstObject && def.Need && !seen[index] {
				seen[index] = true
				indexes = append(indexes, index)
			}
		}
	}
	slices.Sort(indexes)
	return indexes
}

// MapVariable is an object that can be mapped into a PDO
type MapVariable struct {
	Index    uint16
	Subindex uint8
	Size     int
	Name     string
}

func (v MapVariable) less(o MapVariable) bool {
	if v.Index != o.Index {
		return v.Index < o.Index
	}
	if v.Subindex != o.Subindex {
		return v.Subindex < o.Subindex
	}
	if v.Size != o.Size {
		return v.Size < o.Size
	}
	return v.Name < o.Name
}

func (n *Node) mapVariables(m Mapping, compute bool) ([]MapVariable, error) {
	variables := []MapVariable{}
	for _, index := range m.Indexes() {
		if !n.IsEntry(index, 0) {
			continue
		}
		def := m[index]
		for position, sub := range def.Values {
			if !sub.PDO {
				continue
			}
			size := 0
			if infos, err := n.GetEntryInfos(sub.Type, false); err == nil {
				size = infos.Size
			}
			if def.Struct.Has(IdenticalSubindexes) {
				for i := 1; i <= n.Dictionary[index].Len(); i++ {
					name := sub.Name
					if compute {
						var err error
						if name, err = FormatName(name, 1, i); err != nil {
							return nil, NewIndexError(index, err, "map variable name")
						}
					}
					variables = append(variables, MapVariable{index, uint8(i), size, name})
				}
				continue
			}
			name := sub.Name
			if compute {
				var err error
				if name, err = FormatName(name, 1, position); err != nil {
					return nil, NewIndexError(index, err, "map variable name")
				}
			}
			variables = append(variables, MapVariable{index, uint8(position), size, name})
		}
	}
	return variables, nil
}

// GetMapVariableList returns every object holding a value that may be
// mapped into a PDO, ordered by index and subindex
func (n *Node) GetMapVariableList(compute bool) ([]MapVariable, error) {
	variables := []MapVariable{}
	for _, m := range []Mapping{builtin.m, n.Profile, n.DS302, n.UserMapping} {
		found, err := n.mapVariables(m, compute)
		if err != nil {
			return nil, err
		}
		variables = append(variables, found...)
	}
	sort.Slice(variables, func(i, j int) bool { return variables[i].less(variables[j]) })
	return variables, nil
}

// GenerateMapName returns the display name of a mappable object
func (n *Node) GenerateMapName(name string, index uint16, subindex uint8) string {
	return fmt.Sprintf("%s (0x%4.4X)", name, index)
}

// GetMapValue returns the PDO mapping record of the object displayed as
// mapname. Strings are mapped with their buffer size, which must fit a PDO.
func (n *Node) GetMapValue(mapname string) (uint32, error) {
	if mapname == "None" {
		return 0, nil
	}
	variables, err := n.GetMapVariableList(true)
	if err != nil {
		return 0, err
	}
	for _, v := range variables {
		if mapname != n.GenerateMapName(v.Name, v.Index, v.Subindex) {
			continue
		}
		value := uint32(v.Index)<<16 + uint32(v.Subindex)<<8
		infos, err := n.GetSubentryInfos(v.Index, v.Subindex, false)
		if err == nil && n.IsStringType(infos.Type) {
			params, err := n.GetParamsEntry(v.Index, v.Subindex)
			if err != nil {
				return 0, err
			}
			if params.BufferSize == 0 {
				return 0, NewIndexError(v.Index, ErrInvalidValue, "no string length set for subindex %d", v.Subindex)
			}
			if params.BufferSize > 8 {
				return 0, NewIndexError(v.Index, ErrInvalidValue, "string of %d bytes does not fit in a PDO", params.BufferSize)
			}
			return value + uint32(v.Size*params.BufferSize), nil
		}
		return value + uint32(v.Size), nil
	}
	return 0, fmt.Errorf("%w: no mappable object %q", ErrInvalidValue, mapname)
}

// GetMapIndex splits a PDO mapping record
func (n *Node) GetMapIndex(value uint32) (index uint16, subindex uint8, size uint8) {
	return uint16(value >> 16), uint8(value >> 8), uint8(value)
}

// GetMapName returns the display name of the object a mapping record refers to
func (n *Node) GetMapName(value uint32) string {
	if value == 0 {
		return "None"
	}
	index, subindex, _ := n.GetMapIndex(value)
	infos, err := n.GetSubentryInfos(index, subindex, true)
	if err != nil {
		return "None"
	}
	return n.GenerateMapName(infos.Name, index, subindex)
}

// GetMapList returns the display names of every mappable object, "None" first
func (n *Node) GetMapList() ([]string, error) {
	variables, err := n.GetMapVariableList(true)
	if err != nil {
		return nil, err
	}
	names := []string{"None"}
	for _, v := range variables {
		names = append(names, n.GenerateMapName(v.Name, v.Index, v.Subindex))
	}
	return names, nil
}

func isPdoMapping(index uint16) bool {
	return (index >= IndexRpdoMappingBase && index < IndexRpdoMappingBase+PdoChannelCount) ||
		(index >= IndexTpdoMappingBase && index < IndexTpdoMappingBase+PdoChannelCount)
}

// updateMapRecords rewrites the PDO mapping records referencing index, and
// subindex when not 0
func (n *Node) updateMapRecords(index uint16, subindex uint8, update func(model uint32) uint32) {
	model := uint32(index) << 16
	mask := uint32(0xFFFF) << 16
	if subindex != 0 {
		model += uint32(subindex) << 8
		mask += 0xFF << 8
	}
	for i, entry := range n.Dictionary {
		if !isPdoMapping(i) || !entry.List {
			continue
		}
		for j, raw := range entry.Values {
			v, ok := raw.(int64)
			if !ok {
				continue
			}
			if uint32(v)&mask == model {
				entry.Values[j] = int64(update(model))
			}
		}
	}
}

// RemoveMapVariable clears the PDO mapping records referencing an object
func (n *Node) RemoveMapVariable(index uint16, subindex uint8) {
	n.updateMapRecords(index, subindex, func(uint32) uint32 { return 0 })
}

// UpdateMapVariable rewrites the size of the PDO mapping records referencing an object
func (n *Node) UpdateMapVariable(index uint16, subindex uint8, size uint8) {
	n.updateMapRecords(index, subindex, func(model uint32) uint32 { return model + uint32(size) })
}

// RemoveLine removes index from an identical index family, shifting the
// following members down by incr
func (n *Node) RemoveLine(index uint16, max uint16, incr uint16) error {
	if _, ok := n.Dictionary[index]; !ok {
		return NewIndexError(index, ErrIdxNotExist, "")
	}
	if incr == 0 {
		incr = 1
	}
	i := index
	for i < max && n.IsEntry(i+incr, 0) {
		n.Dictionary[i] = n.Dictionary[i+incr]
		i += incr
	}
	delete(n.Dictionary, i)
	return nil
}
