// Package ifc builds the IFC-level views on top of extracted STEP tables:
// per-entity property bags, the spatial containment tree and its
// category-grouped projection for tree widgets.
package ifc

import (
	"sync"

	"github.com/Faultbox/ifckit/pkg/step"
)

// Property is one resolved property. Complex properties carry their
// nested properties in Children.
type Property struct {
	ID          int
	Name        string
	Type        string
	Description string
	Value       any
	Raw         step.Value
	Unit        int
	Children    []Property
}

// PropertySet is one named set attached to an entity.
type PropertySet struct {
	ID         int
	Name       string
	Kind       step.SetKind
	Inherited  bool
	Properties []Property
}

// PropertyBag is the merged view of an entity: direct attributes plus
// every property set it participates in, including sets inherited from
// its type object. Bags are shared between callers and must not be
// modified.
type PropertyBag struct {
	ExpressID  int
	Type       string
	GlobalID   string
	Attributes map[string]any
	Sets       []PropertySet
}

// Set returns the property set with the given name.
func (b *PropertyBag) Set(name string) (PropertySet, bool) {
	for _, s := range b.Sets {
		if s.Name == name {
			return s, true
		}
	}
	return PropertySet{}, false
}

// Get returns the value of Pset.Property, or of a direct attribute when
// set is empty.
func (b *PropertyBag) Get(set, prop string) (any, bool) {
	if set == "" {
		v, ok := b.Attributes[prop]
		return v, ok
	}
	s, ok := b.Set(set)
	if !ok {
		return nil, false
	}
	for _, p := range s.Properties {
		if p.Name == prop {
			return p.Value, true
		}
	}
	return nil, false
}

// Flatten returns attributes under their own names and properties under
// "Pset.Property" keys. Nested properties of complex properties extend
// the key with their own names.
func (b *PropertyBag) Flatten() map[string]any {
	out := make(map[string]any, len(b.Attributes))
	for k, v := range b.Attributes {
		out[k] = v
	}
	for _, s := range b.Sets {
		for _, p := range s.Properties {
			flattenInto(out, s.Name+"."+p.Name, p)
		}
	}
	return out
}

func flattenInto(out map[string]any, key string, p Property) {
	if p.Type != "IFCCOMPLEXPROPERTY" {
		out[key] = p.Value
		return
	}
	for _, c := range p.Children {
		flattenInto(out, key+"."+c.Name, c)
	}
}

// Resolver answers property queries against extracted tables. It is safe
// for concurrent use.
type Resolver struct {
	tables  *step.Tables
	byProps []*step.Relation
	byType  []*step.Relation

	mu     sync.Mutex
	setsOf map[int][]int
	typeOf map[int]int
	bags   map[int]*PropertyBag
	diag   Diagnostics
}

// NewResolver creates a resolver over t. The tables must not change
// afterwards.
func NewResolver(t *step.Tables) *Resolver {
	return &Resolver{
		tables:  t,
		byProps: t.RelationsOf(step.RelDefinesByProperties),
		byType:  t.RelationsOf(step.RelDefinesByType),
		setsOf:  make(map[int][]int),
		typeOf:  make(map[int]int),
		bags:    make(map[int]*PropertyBag),
	}
}

// Tables returns the underlying tables.
func (r *Resolver) Tables() *step.Tables { return r.tables }

// Properties returns the property bag of an entity, or nil if the id is
// not an extracted entity.
func (r *Resolver) Properties(id int) *PropertyBag {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bag, ok := r.bags[id]; ok {
		return bag
	}
	e, ok := r.tables.Entities[id]
	if !ok {
		return nil
	}

	bag := &PropertyBag{
		ExpressID:  id,
		Type:       e.Type,
		GlobalID:   e.GlobalID,
		Attributes: attributes(e),
	}

	own := r.propertySetIDs(id)
	for _, sid := range own {
		if s, ok := r.resolveSet(id, sid); ok {
			bag.Sets = append(bag.Sets, s)
		}
	}

	var inherited []int
	if tid, ok := r.typeObject(id); ok {
		if t, ok := r.tables.Entities[tid]; ok {
			inherited = t.PropertySets
		}
		for _, sid := range inherited {
			s, ok := r.resolveSet(tid, sid)
			if !ok {
				continue
			}
			s.Inherited = true
			bag.Sets = mergeSet(bag.Sets, s)
		}
	}

	if len(own) == 0 && len(inherited) == 0 {
		r.diag.noRelation(id)
	}

	r.bags[id] = bag
	return bag
}

// PropertySetIDs returns the ids of the property sets directly related to
// an entity through IfcRelDefinesByProperties, in relation order.
func (r *Resolver) PropertySetIDs(id int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.propertySetIDs(id)...)
}

// TypeObject returns the type object of an entity.
func (r *Resolver) TypeObject(id int) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typeObject(id)
}

// Diagnostics returns a sorted snapshot of the dangling references seen
// so far.
func (r *Resolver) Diagnostics() Diagnostics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.diag.clone()
}

// ResolveAll resolves every entity so that Diagnostics is complete.
func (r *Resolver) ResolveAll() {
	for _, id := range r.tables.EntityIDs() {
		r.Properties(id)
	}
}

// propertySetIDs scans the defines-by-properties rows for id. The scan is
// linear in the number of relations and memoized per entity.
func (r *Resolver) propertySetIDs(id int) []int {
	if ids, ok := r.setsOf[id]; ok {
		return ids
	}
	var ids []int
	for _, rel := range r.byProps {
		if containsInt(rel.Related, id) {
			ids = append(ids, rel.Relating)
		}
	}
	r.setsOf[id] = ids
	return ids
}

func (r *Resolver) typeObject(id int) (int, bool) {
	if tid, ok := r.typeOf[id]; ok {
		return tid, tid != 0
	}
	tid := 0
	for _, rel := range r.byType {
		if containsInt(rel.Related, id) {
			tid = rel.Relating
			break
		}
	}
	r.typeOf[id] = tid
	return tid, tid != 0
}

func (r *Resolver) resolveSet(owner, id int) (PropertySet, bool) {
	ps, ok := r.tables.PropertySets[id]
	if !ok {
		r.diag.missingSet(owner, id)
		return PropertySet{}, false
	}
	out := PropertySet{
		ID:         ps.ID,
		Name:       ps.Name,
		Kind:       ps.Kind,
		Properties: make([]Property, 0, len(ps.Members)),
	}
	for _, mid := range ps.Members {
		p, ok := r.tables.Properties[mid]
		if !ok {
			r.diag.missingValue(ps.ID, mid)
			continue
		}
		out.Properties = append(out.Properties, r.unwrap(p))
	}
	return out, true
}

// unwrap converts a property and, for complex properties, all nested
// properties. Traversal uses an explicit stack and a visited set so that
// malformed self-referencing data is reported as a cycle.
func (r *Resolver) unwrap(p *step.Property) Property {
	root := leaf(p)
	if !p.IsComplex() {
		return root
	}

	type frame struct {
		node    *Property
		pending []int
	}
	visited := map[int]struct{}{p.ID: {}}
	stack := []frame{{node: &root, pending: p.Children}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.pending) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}
		cid := top.pending[0]
		top.pending = top.pending[1:]
		parent := top.node

		if _, seen := visited[cid]; seen {
			r.diag.cycle(parent.ID, cid)
			continue
		}
		cp, ok := r.tables.Properties[cid]
		if !ok {
			r.diag.missingValue(parent.ID, cid)
			continue
		}
		visited[cid] = struct{}{}

		// Children has capacity for every member, so pointers into it stay
		// valid while siblings are appended.
		parent.Children = append(parent.Children, leaf(cp))
		if cp.IsComplex() {
			child := &parent.Children[len(parent.Children)-1]
			stack = append(stack, frame{node: child, pending: cp.Children})
		}
	}
	return root
}

func leaf(p *step.Property) Property {
	out := Property{
		ID:          p.ID,
		Name:        p.Name,
		Type:        p.Type,
		Description: p.Description.Value,
		Value:       p.Value.Interface(),
		Raw:         p.Value,
		Unit:        p.Unit,
	}
	if p.IsComplex() {
		out.Value = nil
		out.Children = make([]Property, 0, len(p.Children))
	}
	return out
}

// mergeSet adds an inherited set. Occurrence values win: when a set of
// the same name exists, only properties it lacks are added.
func mergeSet(sets []PropertySet, s PropertySet) []PropertySet {
	for i := range sets {
		if sets[i].Name != s.Name {
			continue
		}
		have := make(map[string]struct{}, len(sets[i].Properties))
		for _, p := range sets[i].Properties {
			have[p.Name] = struct{}{}
		}
		for _, p := range s.Properties {
			if _, ok := have[p.Name]; !ok {
				sets[i].Properties = append(sets[i].Properties, p)
			}
		}
		return sets
	}
	return append(sets, s)
}

func attributes(e *step.Entity) map[string]any {
	text := func(t step.Text) any {
		if !t.Valid {
			return nil
		}
		return t.Value
	}
	attrs := map[string]any{
		"Name":           text(e.Name),
		"Description":    text(e.Description),
		"ObjectType":     text(e.ObjectType),
		"Tag":            text(e.Tag),
		"PredefinedType": text(e.PredefinedType),
	}
	if e.GlobalID != "" {
		attrs["GlobalId"] = e.GlobalID
	} else {
		attrs["GlobalId"] = nil
	}
	return attrs
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
