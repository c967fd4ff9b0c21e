package ifc

import (
	"reflect"
	"sync"
	"testing"
)

func TestPropertiesOwnAndInherited(t *testing.T) {
	r := NewResolver(loadModel(t))

	bag := r.Properties(10)
	if bag == nil {
		t.Fatal("no bag for #10")
	}
	if bag.Type != "IFCWALL" || bag.GlobalID != "1xS3BCk291UvhgP2dvNsgQ" {
		t.Errorf("bag header = %s %s", bag.Type, bag.GlobalID)
	}

	tests := []struct {
		set, prop string
		want      any
	}{
		{"", "Name", "W1"},
		{"", "Description", nil},
		{"", "PredefinedType", "STANDARD"},
		{"Pset_WallCommon", "FireRating", "REI 60"},
		{"Pset_WallCommon", "LoadBearing", false},
		// Only on the type object.
		{"Pset_WallCommon", "AcousticRating", "40dB"},
	}
	for _, tt := range tests {
		got, ok := bag.Get(tt.set, tt.prop)
		if !ok || got != tt.want {
			t.Errorf("Get(%q, %q) = %v, %v; want %v", tt.set, tt.prop, got, ok, tt.want)
		}
	}

	if len(bag.Sets) != 1 {
		t.Errorf("sets = %d, want the type set merged into the occurrence set", len(bag.Sets))
	}
}

func TestPropertiesInheritedOnly(t *testing.T) {
	r := NewResolver(loadModel(t))
	bag := r.Properties(11)

	s, ok := bag.Set("Pset_WallCommon")
	if !ok || !s.Inherited {
		t.Fatalf("Pset_WallCommon = %+v, %v; want inherited set", s, ok)
	}
	if v, _ := bag.Get("Pset_WallCommon", "FireRating"); v != "REI 30" {
		t.Errorf("inherited FireRating = %v, want REI 30", v)
	}
	if v, _ := bag.Get("Pset_Custom", "Count"); v != int64(3) {
		t.Errorf("Count = %#v, want int64(3)", v)
	}
}

func TestComplexPropertyUnwrap(t *testing.T) {
	r := NewResolver(loadModel(t))
	flat := r.Properties(11).Flatten()

	want := map[string]any{
		"Pset_Custom.Count":              int64(3),
		"Pset_Custom.Outer.Leaf":         1.5,
		"Pset_Custom.Outer.Inner.Deep":   "x",
		"Pset_WallCommon.FireRating":     "REI 30",
		"Pset_WallCommon.AcousticRating": "40dB",
		"Name":                           "W2",
	}
	for k, v := range want {
		if flat[k] != v {
			t.Errorf("Flatten()[%q] = %#v, want %#v", k, flat[k], v)
		}
	}

	d := r.Diagnostics()
	if !reflect.DeepEqual(d.Cycles, []Dangling{{Owner: 62, Ref: 60}}) {
		t.Errorf("cycles = %v, want [{62 60}]", d.Cycles)
	}
}

func TestDiagnosticsBuckets(t *testing.T) {
	r := NewResolver(loadModel(t))
	r.ResolveAll()
	d := r.Diagnostics()

	if !reflect.DeepEqual(d.MissingPropertySet, []Dangling{{Owner: 12, Ref: 98}}) {
		t.Errorf("missing sets = %v", d.MissingPropertySet)
	}
	// #41 is shared by #11 and #13 but reported once.
	if !reflect.DeepEqual(d.MissingValue, []Dangling{{Owner: 41, Ref: 97}}) {
		t.Errorf("missing values = %v", d.MissingValue)
	}
	for _, id := range []int{1, 2, 14} {
		found := false
		for _, n := range d.NoPropertyRelation {
			found = found || n == id
		}
		if !found {
			t.Errorf("#%d not reported without property relation (%v)", id, d.NoPropertyRelation)
		}
	}
	for _, id := range d.NoPropertyRelation {
		if id == 10 || id == 11 || id == 12 {
			t.Errorf("#%d has property relations but was reported", id)
		}
	}

	c := d.Counts()
	if c[MissingPropertySet] != 1 || c[MissingValue] != 1 || c[Cycles] != 1 {
		t.Errorf("counts = %v", c)
	}
	if d.Total() != len(d.NoPropertyRelation)+3 {
		t.Errorf("Total() = %d", d.Total())
	}
}

func TestPropertiesMemoized(t *testing.T) {
	r := NewResolver(loadModel(t))
	if r.Properties(999) != nil {
		t.Error("unknown id should yield nil")
	}

	first := r.Properties(13)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Properties(13) != first {
				t.Error("bag was not memoized")
			}
		}()
	}
	wg.Wait()

	if got := r.PropertySetIDs(13); !reflect.DeepEqual(got, []int{41}) {
		t.Errorf("PropertySetIDs(13) = %v", got)
	}
	if tid, ok := r.TypeObject(10); !ok || tid != 30 {
		t.Errorf("TypeObject(10) = %d, %v", tid, ok)
	}
	if _, ok := r.TypeObject(13); ok {
		t.Error("#13 has no type object")
	}
}
