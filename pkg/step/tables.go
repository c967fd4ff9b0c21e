// Package step extracts IFC entities, relationships and property values
// from STEP physical files (ISO 10303-21) without loading the whole file.
package step

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Extraction errors. Only resource failures surface as errors; pattern
// misses and decode problems are recorded in Diagnostics.
var (
	ErrRead   = errors.New("reading STEP stream")
	ErrWorker = errors.New("extraction worker failed")
)

// RelKind is the kind of a relationship record.
type RelKind uint8

const (
	RelAggregates RelKind = iota + 1
	RelContained
	RelDefinesByType
	RelDefinesByProperties
	RelAssociatesClassification
	RelAssociatesMaterial
)

// String returns the relationship kind name.
func (k RelKind) String() string {
	switch k {
	case RelAggregates:
		return "aggregates"
	case RelContained:
		return "contained"
	case RelDefinesByType:
		return "defines_by_type"
	case RelDefinesByProperties:
		return "defines_by_properties"
	case RelAssociatesClassification:
		return "classification"
	case RelAssociatesMaterial:
		return "material"
	default:
		return fmt.Sprintf("RelKind(%d)", k)
	}
}

// Text is an optional string attribute; Valid is false for $.
type Text struct {
	Value string
	Valid bool
}

// String returns the text, or "" when absent.
func (t Text) String() string { return t.Value }

// MarshalJSON encodes absent text as null.
func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

func textOf(v Value) Text {
	s, ok := v.Text()
	if !ok {
		return Text{}
	}
	return Text{Value: s, Valid: true}
}

// Entity is one IFC object record. Entities are immutable after extraction.
type Entity struct {
	ExpressID int
	Type      string
	Role      Role
	// GlobalID is the raw 22-character token; GUID is its 128-bit form.
	GlobalID       string
	GUID           uuid.UUID
	Name           Text
	Description    Text
	ObjectType     Text
	Tag            Text
	PredefinedType Text
	// PropertySets lists HasPropertySets of type objects.
	PropertySets []int
	Attributes   []Value
}

// Relation is an n-to-n edge between a relating entity and related ones.
type Relation struct {
	ID       int
	Type     string
	Kind     RelKind
	Relating int
	Related  []int
}

// SetKind distinguishes property sets from element quantity sets.
type SetKind uint8

const (
	SetProperties SetKind = iota + 1
	SetQuantities
)

// PropertySet is a named bag of property-value ids.
type PropertySet struct {
	ID      int
	Type    string
	Kind    SetKind
	Name    string
	Members []int
}

// Property is one property or quantity value. Complex properties hold
// their nested property ids in Children.
type Property struct {
	ID          int
	Type        string
	Name        string
	Description Text
	Value       Value
	Unit        int
	Children    []int
}

// IsComplex reports whether the property nests sub-properties.
func (p *Property) IsComplex() bool { return p.Type == "IFCCOMPLEXPROPERTY" }

// maxSamples bounds the pattern-miss samples kept for inspection.
const maxSamples = 16

// Diagnostics collects recoverable extraction problems.
type Diagnostics struct {
	PatternMisses  int
	MissesByType   map[string]int
	MissSamples    []string
	DecodeFailures int
	// Unresolved lists property ids referenced by a set that no record
	// resolved in the second pass.
	Unresolved []int
}

func (d *Diagnostics) miss(typ, record string) {
	d.PatternMisses++
	if d.MissesByType == nil {
		d.MissesByType = make(map[string]int)
	}
	d.MissesByType[typ]++
	if len(d.MissSamples) < maxSamples {
		if len(record) > 160 {
			record = record[:160] + "..."
		}
		d.MissSamples = append(d.MissSamples, record)
	}
}

// Tables is the output of extraction.
type Tables struct {
	Entities  map[int]*Entity
	Relations map[int]*Relation
	// ByRelating indexes relations per kind as relating id -> related ids,
	// in file order. Rows that repeat a relating id extend its list.
	ByRelating   map[RelKind]map[int][]int
	PropertySets map[int]*PropertySet
	Properties   map[int]*Property
	Diagnostics  Diagnostics
}

// NewTables returns empty tables.
func NewTables() *Tables {
	return &Tables{
		Entities:     make(map[int]*Entity),
		Relations:    make(map[int]*Relation),
		ByRelating:   make(map[RelKind]map[int][]int),
		PropertySets: make(map[int]*PropertySet),
		Properties:   make(map[int]*Property),
	}
}

func (t *Tables) addRelation(r *Relation) {
	t.Relations[r.ID] = r
	idx := t.ByRelating[r.Kind]
	if idx == nil {
		idx = make(map[int][]int)
		t.ByRelating[r.Kind] = idx
	}
	idx[r.Relating] = append(idx[r.Relating], r.Related...)
}

// Related returns the ids related to relating through relations of kind.
func (t *Tables) Related(kind RelKind, relating int) []int {
	return t.ByRelating[kind][relating]
}

// Edges returns the relating -> related index for kind (never nil).
func (t *Tables) Edges(kind RelKind) map[int][]int {
	if idx := t.ByRelating[kind]; idx != nil {
		return idx
	}
	return map[int][]int{}
}

// RelationsOf returns relations of kind sorted by id.
func (t *Tables) RelationsOf(kind RelKind) []*Relation {
	var out []*Relation
	for _, r := range t.Relations {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OfType returns entities of the given type sorted by express id.
func (t *Tables) OfType(typ string) []*Entity {
	var out []*Entity
	for _, e := range t.Entities {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpressID < out[j].ExpressID })
	return out
}

// EntityIDs returns all entity ids, sorted.
func (t *Tables) EntityIDs() []int {
	ids := make([]int, 0, len(t.Entities))
	for id := range t.Entities {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TypeOf returns the type name of an entity, or "" if unknown.
func (t *Tables) TypeOf(id int) string {
	if e, ok := t.Entities[id]; ok {
		return e.Type
	}
	return ""
}

// GlobalIDOf returns the raw GlobalId of an entity, or "" if unknown.
func (t *Tables) GlobalIDOf(id int) string {
	if e, ok := t.Entities[id]; ok {
		return e.GlobalID
	}
	return ""
}

// Clone returns a deep copy. Extraction workers hand their result over as
// a clone so nothing is shared across the boundary.
func (t *Tables) Clone() *Tables {
	c := NewTables()
	for id, e := range t.Entities {
		ce := *e
		ce.PropertySets = cloneInts(e.PropertySets)
		ce.Attributes = cloneValues(e.Attributes)
		c.Entities[id] = &ce
	}
	for id, r := range t.Relations {
		cr := *r
		cr.Related = cloneInts(r.Related)
		c.Relations[id] = &cr
	}
	for kind, idx := range t.ByRelating {
		ci := make(map[int][]int, len(idx))
		for k, v := range idx {
			ci[k] = cloneInts(v)
		}
		c.ByRelating[kind] = ci
	}
	for id, ps := range t.PropertySets {
		cp := *ps
		cp.Members = cloneInts(ps.Members)
		c.PropertySets[id] = &cp
	}
	for id, p := range t.Properties {
		cp := *p
		cp.Children = cloneInts(p.Children)
		cp.Value = cloneValue(p.Value)
		c.Properties[id] = &cp
	}
	d := t.Diagnostics
	c.Diagnostics = Diagnostics{
		PatternMisses:  d.PatternMisses,
		MissSamples:    append([]string(nil), d.MissSamples...),
		DecodeFailures: d.DecodeFailures,
		Unresolved:     cloneInts(d.Unresolved),
	}
	if d.MissesByType != nil {
		c.Diagnostics.MissesByType = make(map[string]int, len(d.MissesByType))
		for k, v := range d.MissesByType {
			c.Diagnostics.MissesByType[k] = v
		}
	}
	return c
}

func cloneInts(s []int) []int {
	if s == nil {
		return nil
	}
	return append(make([]int, 0, len(s)), s...)
}

func cloneValues(vals []Value) []Value {
	if vals == nil {
		return nil
	}
	out := make([]Value, len(vals))
	for i, v := range vals {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	v.List = cloneValues(v.List)
	return v
}

func parseID(s string) (int, error) {
	return strconv.Atoi(s)
}
