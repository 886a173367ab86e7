package od

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const (
	DefaultProfileName = "DS-301"
	NoProfileName      = "None"
	DefaultStringSize  = 10
)

// Params is the user metadata attached to one subindex
type Params struct {
	Comment    string
	Save       bool
	BufferSize int
}

func (p Params) IsZero() bool {
	return p == Params{}
}

// IndexParams is the user metadata attached to one index.
// Scalar objects keep their metadata at subindex 0.
type IndexParams struct {
	Callback bool
	Subs     map[uint8]Params
}

func (p *IndexParams) empty() bool {
	return p == nil || (!p.Callback && len(p.Subs) == 0)
}

func (p *IndexParams) Clone() *IndexParams {
	if p == nil {
		return nil
	}
	c := &IndexParams{Callback: p.Callback}
	if p.Subs != nil {
		c.Subs = maps.Clone(p.Subs)
	}
	return c
}

// ParamsUpdate is a partial update of [Params], nil fields are left untouched
type ParamsUpdate struct {
	Comment    *string
	Save       *bool
	BufferSize *int
}

// MenuEntry groups profile indexes under a menu name
type MenuEntry struct {
	Name    string
	Indexes []uint16
}

// Node is an object dictionary being edited. It holds the overlay mappings
// defining objects, the values of the objects in use and their user metadata.
type Node struct {
	Name              string
	Type              string
	ID                uint8
	Description       string
	ProfileName       string
	DefaultStringSize int
	Profile           Mapping
	DS302             Mapping
	UserMapping       Mapping
	Dictionary        map[uint16]*Entry
	ParamsDictionary  map[uint16]*IndexParams
	IndexOrder        []uint16
	SpecificMenu      []MenuEntry
}

// NewNode creates an empty slave node using the DS-301 profile
func NewNode(name string, id uint8, description string) *Node {
	return &Node{
		Name:              name,
		Type:              NodeSlave,
		ID:                id,
		Description:       description,
		ProfileName:       DefaultProfileName,
		DefaultStringSize: DefaultStringSize,
		Profile:           Mapping{},
		DS302:             Mapping{},
		UserMapping:       Mapping{},
		Dictionary:        map[uint16]*Entry{},
		ParamsDictionary:  map[uint16]*IndexParams{},
	}
}

// Layers returns the overlays of the node in lookup priority order.
// The built-in catalog is implicitly searched after them.
func (n *Node) Layers() []Layer {
	return []Layer{
		{GroupProfile, n.Profile},
		{GroupDS302, n.DS302},
		{GroupUser, n.UserMapping},
	}
}

// AddEntry adds a value. A new index is created as a scalar for subindex 0,
// or as a one element list for subindex 1. An existing list only grows at
// its tail, subindex len+1.
func (n *Node) AddEntry(index uint16, subindex uint8, value Value) error {
	v, err := NormalizeValue(value)
	if err != nil {
		return NewIndexError(index, err, "subindex %d", subindex)
	}
	entry, ok := n.Dictionary[index]
	if !ok {
		switch subindex {
		case 0:
			n.Dictionary[index] = NewValueEntry(v)
		case 1:
			n.Dictionary[index] = NewListEntry(v)
		default:
			return NewIndexError(index, ErrNotTail, "cannot create subindex %d", subindex)
		}
		return nil
	}
	if !entry.List {
		return NewIndexError(index, ErrIdxExists, "")
	}
	if int(subindex) != len(entry.Values)+1 {
		return NewIndexError(index, ErrNotTail, "cannot add subindex %d to %d entries", subindex, len(entry.Values))
	}
	entry.Values = append(entry.Values, v)
	return nil
}

// SetEntry replaces an existing value
func (n *Node) SetEntry(index uint16, subindex uint8, value Value) error {
	entry, ok := n.Dictionary[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "")
	}
	v, err := NormalizeValue(value)
	if err != nil {
		return NewIndexError(index, err, "subindex %d", subindex)
	}
	switch {
	case !entry.List && subindex == 0:
		entry.Value = v
	case entry.List && subindex > 0 && int(subindex) <= len(entry.Values):
		entry.Values[subindex-1] = v
	default:
		return NewIndexError(index, ErrSubNotExist, "subindex %d", subindex)
	}
	return nil
}

// RemoveEntry removes the whole index for subindex 0, otherwise the last
// element of a list. A list left empty is removed.
func (n *Node) RemoveEntry(index uint16, subindex uint8) error {
	entry, ok := n.Dictionary[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "")
	}
	if subindex == 0 {
		delete(n.Dictionary, index)
		delete(n.ParamsDictionary, index)
		return nil
	}
	if !entry.List {
		return NewIndexError(index, ErrNotList, "cannot remove subindex %d", subindex)
	}
	if int(subindex) != len(entry.Values) {
		return NewIndexError(index, ErrNotTail, "cannot remove subindex %d of %d entries", subindex, len(entry.Values))
	}
	entry.Values = entry.Values[:len(entry.Values)-1]
	if params, ok := n.ParamsDictionary[index]; ok {
		delete(params.Subs, subindex)
		if params.empty() {
			delete(n.ParamsDictionary, index)
		}
	}
	if len(entry.Values) == 0 {
		delete(n.Dictionary, index)
		delete(n.ParamsDictionary, index)
	}
	return nil
}

// IsEntry reports whether index holds a value at subindex
func (n *Node) IsEntry(index uint16, subindex uint8) bool {
	entry, ok := n.Dictionary[index]
	if !ok {
		return false
	}
	if subindex == 0 {
		return true
	}
	return entry.List && int(subindex) <= len(entry.Values)
}

// CompileValue resolves a formula value stored at index
func (n *Node) CompileValue(value Value, index uint16, compute bool) (Value, error) {
	compiled, err := CompileValue(value, n.GetBaseIndexNumber(index), n.ID, compute)
	if err != nil {
		return nil, NewIndexError(index, err, "cannot compile %v", value)
	}
	return compiled, nil
}

// GetEntry returns the value at index/subindex. Subindex 0 of a list is
// its length. Formula values are compiled.
func (n *Node) GetEntry(index uint16, subindex uint8, compute bool) (Value, error) {
	entry, ok := n.Dictionary[index]
	if !ok {
		return nil, NewIndexError(index, ErrIdxNotExist, "")
	}
	switch {
	case subindex == 0 && entry.List:
		return int64(len(entry.Values)), nil
	case subindex == 0:
		return n.CompileValue(entry.Value, index, compute)
	case entry.List && int(subindex) <= len(entry.Values):
		return n.CompileValue(entry.Values[subindex-1], index, compute)
	}
	return nil, NewIndexError(index, ErrSubNotExist, "subindex %d", subindex)
}

// GetEntryValues returns every value of index, starting at subindex 0
func (n *Node) GetEntryValues(index uint16, compute bool) ([]Value, error) {
	entry, ok := n.Dictionary[index]
	if !ok {
		return nil, NewIndexError(index, ErrIdxNotExist, "")
	}
	if !entry.List {
		v, err := n.CompileValue(entry.Value, index, compute)
		if err != nil {
			return nil, err
		}
		return []Value{v}, nil
	}
	values := make([]Value, 0, len(entry.Values)+1)
	values = append(values, int64(len(entry.Values)))
	for _, raw := range entry.Values {
		v, err := n.CompileValue(raw, index, compute)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func (n *Node) checkParamsSubindex(index uint16, subindex uint8) error {
	entry, ok := n.Dictionary[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "")
	}
	if subindex == 0 || (entry.List && int(subindex) <= len(entry.Values)) {
		return nil
	}
	return NewIndexError(index, ErrSubNotExist, "subindex %d", subindex)
}

// GetParamsEntry returns the metadata of index/subindex, zero when unset
func (n *Node) GetParamsEntry(index uint16, subindex uint8) (Params, error) {
	if err := n.checkParamsSubindex(index, subindex); err != nil {
		return Params{}, err
	}
	if params, ok := n.ParamsDictionary[index]; ok {
		return params.Subs[subindex], nil
	}
	return Params{}, nil
}

// GetIndexParams returns the metadata of every subindex of index
func (n *Node) GetIndexParams(index uint16) ([]Params, error) {
	entry, ok := n.Dictionary[index]
	if !ok {
		return nil, NewIndexError(index, ErrIdxNotExist, "")
	}
	count := 1
	if entry.List {
		count += len(entry.Values)
	}
	result := make([]Params, count)
	if params, ok := n.ParamsDictionary[index]; ok {
		for i := range result {
			result[i] = params.Subs[uint8(i)]
		}
	}
	return result, nil
}

// SetParamsEntry updates the metadata of index/subindex. Zero metadata is not stored.
func (n *Node) SetParamsEntry(index uint16, subindex uint8, update ParamsUpdate) error {
	if err := n.checkParamsSubindex(index, subindex); err != nil {
		return err
	}
	params, ok := n.ParamsDictionary[index]
	if !ok {
		params = &IndexParams{}
	}
	p := params.Subs[subindex]
	if update.Comment != nil {
		p.Comment = *update.Comment
	}
	if update.Save != nil {
		p.Save = *update.Save
	}
	if update.BufferSize != nil {
		p.BufferSize = *update.BufferSize
	}
	if p.IsZero() {
		delete(params.Subs, subindex)
	} else {
		if params.Subs == nil {
			params.Subs = map[uint8]Params{}
		}
		params.Subs[subindex] = p
	}
	n.storeParams(index, params)
	return nil
}

// SetEntryCallback sets the user callback flag of index
func (n *Node) SetEntryCallback(index uint16, callback bool) error {
	if _, ok := n.Dictionary[index]; !ok {
		return NewIndexError(index, ErrIdxNotExist, "")
	}
	params, ok := n.ParamsDictionary[index]
	if !ok {
		params = &IndexParams{}
	}
	params.Callback = callback
	n.storeParams(index, params)
	return nil
}

func (n *Node) storeParams(index uint16, params *IndexParams) {
	if params.empty() {
		delete(n.ParamsDictionary, index)
		return
	}
	n.ParamsDictionary[index] = params
}

// HasEntryCallbacks reports whether index has a callback. A callback set
// by the object definition takes precedence over the user flag.
func (n *Node) HasEntryCallbacks(index uint16) bool {
	infos, err := n.GetEntryInfos(index, false)
	if err == nil && infos.Callback != nil {
		return *infos.Callback
	}
	if _, ok := n.Dictionary[index]; !ok {
		return false
	}
	if params, ok := n.ParamsDictionary[index]; ok {
		return params.Callback
	}
	return false
}

// IsMappingEntry reports whether index is defined by the user mapping
func (n *Node) IsMappingEntry(index uint16) bool {
	_, ok := n.UserMapping[index]
	return ok
}

// AddMappingEntry adds a user definition
func (n *Node) AddMappingEntry(index uint16, def *ObjectDef) error {
	if _, ok := n.UserMapping[index]; ok {
		return NewIndexError(index, ErrIdxExists, "user mapping")
	}
	if def == nil {
		return NewIndexError(index, ErrInvalidValue, "nil definition")
	}
	c := def.Clone()
	if c.Values == nil {
		c.Values = []SubentryDef{}
	}
	if n.UserMapping == nil {
		n.UserMapping = Mapping{}
	}
	n.UserMapping[index] = c
	log.Debugf("[OD][x%x] added user mapping %v (%v)", index, c.Name, c.Struct)
	return nil
}

// AddMappingSubentry appends a subentry definition, subindex must equal the
// number of existing definitions
func (n *Node) AddMappingSubentry(index uint16, subindex uint8, def SubentryDef) error {
	obj, ok := n.UserMapping[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "user mapping")
	}
	if int(subindex) != len(obj.Values) {
		return NewIndexError(index, ErrNotTail, "cannot add definition %d to %d definitions", subindex, len(obj.Values))
	}
	obj.Values = append(obj.Values, def)
	return nil
}

// ObjectUpdate is a partial update of an [ObjectDef], nil fields are left untouched
type ObjectUpdate struct {
	Name     *string
	Struct   *Struct
	Need     *bool
	Callback *bool
	Incr     *int
	NbMax    *int
	Size     *int
	Default  Value
	Values   []SubentryDef
}

// SetMappingEntry updates a user definition. Renaming an array also renames
// its elements, renaming a variable renames its only subentry.
func (n *Node) SetMappingEntry(index uint16, update ObjectUpdate) error {
	obj, ok := n.UserMapping[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "user mapping")
	}
	if update.Name != nil {
		obj.Name = *update.Name
		switch {
		case obj.Struct.Has(IdenticalSubindexes):
			if len(obj.Values) > 1 {
				obj.Values[1].Name = obj.Name + " %d[(sub)]"
			}
		case !obj.Struct.Has(MultipleSubindexes):
			if len(obj.Values) > 0 {
				obj.Values[0].Name = obj.Name
			}
		}
	}
	if update.Struct != nil {
		obj.Struct = *update.Struct
	}
	if update.Need != nil {
		obj.Need = *update.Need
	}
	if update.Callback != nil {
		callback := *update.Callback
		obj.Callback = &callback
	}
	if update.Incr != nil {
		obj.Incr = *update.Incr
	}
	if update.NbMax != nil {
		obj.NbMax = *update.NbMax
	}
	if update.Size != nil {
		obj.Size = *update.Size
	}
	if update.Default != nil {
		obj.Default = normalize(update.Default)
	}
	if update.Values != nil {
		obj.Values = slices.Clone(update.Values)
	}
	return nil
}

// SubentryUpdate is a partial update of a [SubentryDef], nil fields are left untouched
type SubentryUpdate struct {
	Name    *string
	Type    *uint16
	Access  *Access
	PDO     *bool
	NbMin   *int
	NbMax   *int
	Default Value
}

// SetMappingSubentry updates one subentry definition of a user definition.
// When the type changes category (string, real or other), the stored values
// governed by the definition are reset to the zero of the new category.
func (n *Node) SetMappingSubentry(index uint16, subindex uint8, update SubentryUpdate) error {
	obj, ok := n.UserMapping[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "user mapping")
	}
	if int(subindex) >= len(obj.Values) {
		return NewIndexError(index, ErrSubNotExist, "definition %d", subindex)
	}
	def := &obj.Values[subindex]
	if update.Type != nil {
		from, to := n.TypeCategory(def.Type), n.TypeCategory(*update.Type)
		if from != to {
			if err := n.resetValues(index, subindex, obj.Struct, to.Zero()); err != nil {
				return err
			}
		}
		def.Type = *update.Type
	}
	if update.Name != nil {
		def.Name = *update.Name
	}
	if update.Access != nil {
		def.Access = *update.Access
	}
	if update.PDO != nil {
		def.PDO = *update.PDO
	}
	if update.NbMin != nil {
		def.NbMin = *update.NbMin
	}
	if update.NbMax != nil {
		def.NbMax = *update.NbMax
	}
	if update.Default != nil {
		def.Default = normalize(update.Default)
	}
	return nil
}

func (n *Node) resetValues(index uint16, subindex uint8, kind Struct, zero Value) error {
	entry, ok := n.Dictionary[index]
	if !ok {
		return nil
	}
	if kind.Has(IdenticalSubindexes) {
		if entry.List {
			for i := range entry.Values {
				entry.Values[i] = zero
			}
		}
		log.Debugf("[OD][x%x] type change, reset %d values to %v", index, entry.Len(), zero)
		return nil
	}
	// Subindex 0 of a list is its length
	if entry.List && subindex == 0 {
		return nil
	}
	if n.IsEntry(index, subindex) {
		if err := n.SetEntry(index, subindex, zero); err != nil {
			return err
		}
		log.Debugf("[OD][x%x|x%x] type change, reset value to %v", index, subindex, zero)
	}
	return nil
}

// RemoveMappingEntry removes a user definition
func (n *Node) RemoveMappingEntry(index uint16) error {
	if _, ok := n.UserMapping[index]; !ok {
		return NewIndexError(index, ErrIdxNotExist, "user mapping")
	}
	delete(n.UserMapping, index)
	return nil
}

// RemoveMappingSubentry removes the last subentry definition of a user definition
func (n *Node) RemoveMappingSubentry(index uint16, subindex uint8) error {
	obj, ok := n.UserMapping[index]
	if !ok {
		return NewIndexError(index, ErrIdxNotExist, "user mapping")
	}
	if int(subindex) != len(obj.Values)-1 {
		return NewIndexError(index, ErrNotTail, "cannot remove definition %d of %d definitions", subindex, len(obj.Values))
	}
	obj.Values = obj.Values[:subindex]
	return nil
}

// Copy returns a deep copy of the node sharing no storage with it
func (n *Node) Copy() *Node {
	c := *n
	c.Profile = n.Profile.Clone()
	c.DS302 = n.DS302.Clone()
	c.UserMapping = n.UserMapping.Clone()
	if n.Dictionary != nil {
		c.Dictionary = make(map[uint16]*Entry, len(n.Dictionary))
		for index, entry := range n.Dictionary {
			c.Dictionary[index] = entry.Clone()
		}
	}
	if n.ParamsDictionary != nil {
		c.ParamsDictionary = make(map[uint16]*IndexParams, len(n.ParamsDictionary))
		for index, params := range n.ParamsDictionary {
			c.ParamsDictionary[index] = params.Clone()
		}
	}
	c.IndexOrder = slices.Clone(n.IndexOrder)
	if n.SpecificMenu != nil {
		c.SpecificMenu = make([]MenuEntry, len(n.SpecificMenu))
		for i, menu := range n.SpecificMenu {
			c.SpecificMenu[i] = MenuEntry{Name: menu.Name, Indexes: slices.Clone(menu.Indexes)}
		}
	}
	return &c
}

func (n *Node) String() string {
	return fmt.Sprintf("%v (id %d, %v, %d objects)", n.Name, n.ID, n.Type, len(n.Dictionary))
}
