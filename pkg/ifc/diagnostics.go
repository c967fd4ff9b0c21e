package ifc

import "sort"

// Bucket names a class of dangling reference.
type Bucket string

const (
	// NoPropertyRelation: the entity is not related to any property set.
	NoPropertyRelation Bucket = "no_property_relation"
	// MissingPropertySet: a relation points to a property set that was not extracted.
	MissingPropertySet Bucket = "missing_property_set"
	// MissingValue: a property set or complex property references a value
	// that was not resolved.
	MissingValue Bucket = "missing_value"
	// Cycles: a complex property contains itself.
	Cycles Bucket = "cycles"
)

// Buckets lists every bucket in reporting order.
var Buckets = []Bucket{NoPropertyRelation, MissingPropertySet, MissingValue, Cycles}

// Dangling is one unresolved edge. Owner is the entity, relation or
// property that holds the reference; Ref is the id it points to.
type Dangling struct {
	Owner int
	Ref   int
}

// Diagnostics collects dangling references found while resolving
// properties. Entries are recorded once per (owner, ref) pair.
type Diagnostics struct {
	NoPropertyRelation []int
	MissingPropertySet []Dangling
	MissingValue       []Dangling
	Cycles             []Dangling

	seen map[diagKey]struct{}
}

type diagKey struct {
	bucket Bucket
	owner  int
	ref    int
}

func (d *Diagnostics) once(b Bucket, owner, ref int) bool {
	if d.seen == nil {
		d.seen = make(map[diagKey]struct{})
	}
	k := diagKey{b, owner, ref}
	if _, ok := d.seen[k]; ok {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

func (d *Diagnostics) noRelation(entity int) {
	if d.once(NoPropertyRelation, entity, 0) {
		d.NoPropertyRelation = append(d.NoPropertyRelation, entity)
	}
}

func (d *Diagnostics) missingSet(owner, set int) {
	if d.once(MissingPropertySet, owner, set) {
		d.MissingPropertySet = append(d.MissingPropertySet, Dangling{owner, set})
	}
}

func (d *Diagnostics) missingValue(owner, value int) {
	if d.once(MissingValue, owner, value) {
		d.MissingValue = append(d.MissingValue, Dangling{owner, value})
	}
}

func (d *Diagnostics) cycle(owner, ref int) {
	if d.once(Cycles, owner, ref) {
		d.Cycles = append(d.Cycles, Dangling{owner, ref})
	}
}

// Counts returns the number of entries per bucket.
func (d *Diagnostics) Counts() map[Bucket]int {
	return map[Bucket]int{
		NoPropertyRelation: len(d.NoPropertyRelation),
		MissingPropertySet: len(d.MissingPropertySet),
		MissingValue:       len(d.MissingValue),
		Cycles:             len(d.Cycles),
	}
}

// Total returns the number of recorded entries across all buckets.
func (d *Diagnostics) Total() int {
	n := 0
	for _, c := range d.Counts() {
		n += c
	}
	return n
}

// clone returns a sorted copy safe to hand to callers.
func (d *Diagnostics) clone() Diagnostics {
	c := Diagnostics{
		NoPropertyRelation: append([]int(nil), d.NoPropertyRelation...),
		MissingPropertySet: append([]Dangling(nil), d.MissingPropertySet...),
		MissingValue:       append([]Dangling(nil), d.MissingValue...),
		Cycles:             append([]Dangling(nil), d.Cycles...),
	}
	sort.Ints(c.NoPropertyRelation)
	for _, s := range [][]Dangling{c.MissingPropertySet, c.MissingValue, c.Cycles} {
		sort.Slice(s, func(i, j int) bool {
			if s[i].Owner != s[j].Owner {
				return s[i].Owner < s[j].Owner
			}
			return s[i].Ref < s[j].Ref
		})
	}
	return c
}
