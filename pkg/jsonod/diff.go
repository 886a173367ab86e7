package jsonod

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/samsamfire/objdictgen/pkg/od"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type ChangeKind string

const (
	Added   ChangeKind = "added"
	Removed ChangeKind = "removed"
	Changed ChangeKind = "changed"
)

// Change is one difference between two nodes. Node level fields have no
// index, Path is empty when a whole index is added or removed.
type Change struct {
	Index    uint16
	HasIndex bool
	Kind     ChangeKind
	Path     string
	Old      any
	New      any
}

func (c Change) String() string {
	where := "node"
	if c.HasIndex {
		where = fmt.Sprintf("0x%04X", c.Index)
	}
	if c.Path != "" {
		where += " " + c.Path
	}
	switch c.Kind {
	case Added:
		return fmt.Sprintf("%v added: %v", where, c.New)
	case Removed:
		return fmt.Sprintf("%v removed: %v", where, c.Old)
	}
	return fmt.Sprintf("%v changed: %v -> %v", where, c.Old, c.New)
}

// Diff compares the canonical documents of a and b. Node fields come
// first, then indexes in ascending order.
func Diff(a *od.Node, b *od.Node) ([]Change, error) {
	opts := Options{Sort: true, OmitDate: true}
	docA, err := ToCanonical(a, opts)
	if err != nil {
		return nil, err
	}
	docB, err := ToCanonical(b, opts)
	if err != nil {
		return nil, err
	}
	treeA, err := documentTree(docA)
	if err != nil {
		return nil, err
	}
	treeB, err := documentTree(docB)
	if err != nil {
		return nil, err
	}
	dictA := objectsByIndex(treeA["dictionary"])
	dictB := objectsByIndex(treeB["dictionary"])
	delete(treeA, "dictionary")
	delete(treeB, "dictionary")

	changes := diffTree(treeA, treeB)
	indexes := maps.Keys(dictA)
	for index := range dictB {
		if _, ok := dictA[index]; !ok {
			indexes = append(indexes, index)
		}
	}
	slices.Sort(indexes)
	for _, index := range indexes {
		objA, inA := dictA[index]
		objB, inB := dictB[index]
		switch {
		case !inA:
			changes = append(changes, Change{Index: index, HasIndex: true, Kind: Added, New: objB["name"]})
		case !inB:
			changes = append(changes, Change{Index: index, HasIndex: true, Kind: Removed, Old: objA["name"]})
		default:
			for _, c := range diffTree(objA, objB) {
				c.Index = index
				c.HasIndex = true
				changes = append(changes, c)
			}
		}
	}
	return changes, nil
}

func documentTree(doc *Document) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	tree, err := decodeJSONTree(raw)
	if err != nil {
		return nil, err
	}
	return tree.(map[string]any), nil
}

func objectsByIndex(raw any) map[uint16]map[string]any {
	objects := map[uint16]map[string]any{}
	list, _ := raw.([]any)
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if index, err := parseIndex(obj["index"]); err == nil {
			objects[index] = obj
		}
	}
	return objects
}

// changeReporter collects the leaf differences reported by cmp as changes,
// the path being written like "sub[0].value"
type changeReporter struct {
	steps   cmp.Path
	paths   []string
	changes []Change
}

func (r *changeReporter) PushStep(step cmp.PathStep) {
	path := ""
	if len(r.paths) > 0 {
		path = r.paths[len(r.paths)-1]
	}
	switch s := step.(type) {
	case cmp.MapIndex:
		if path != "" {
			path += "."
		}
		path += s.Key().String()
	case cmp.SliceIndex:
		ix, iy := s.SplitKeys()
		if ix < 0 {
			ix = iy
		}
		path += fmt.Sprintf("[%d]", ix)
	}
	r.steps = append(r.steps, step)
	r.paths = append(r.paths, path)
}

func (r *changeReporter) Report(rs cmp.Result) {
	if rs.Equal() {
		return
	}
	vx, vy := r.steps.Last().Values()
	change := Change{Path: r.paths[len(r.paths)-1]}
	switch {
	case !vx.IsValid():
		change.Kind = Added
		change.New = vy.Interface()
	case !vy.IsValid():
		change.Kind = Removed
		change.Old = vx.Interface()
	default:
		change.Kind = Changed
		change.Old = vx.Interface()
		change.New = vy.Interface()
	}
	r.changes = append(r.changes, change)
}

func (r *changeReporter) PopStep() {
	r.steps = r.steps[:len(r.steps)-1]
	r.paths = r.paths[:len(r.paths)-1]
}

func diffTree(a map[string]any, b map[string]any) []Change {
	r := &changeReporter{}
	cmp.Equal(a, b, cmp.Reporter(r))
	return r.changes
}
