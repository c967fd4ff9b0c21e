package geometry

import (
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"
)

func threeEntityMesh(t *testing.T, opts Options) (*Engine, *MergedMesh) {
	t.Helper()
	e := NewEngine(opts)
	meshes := consolidate(t, e, SliceSource{
		{ExpressID: 1, Geometries: []PlacedGeometry{quad(1, red, 0)}},
		{ExpressID: 2, Geometries: []PlacedGeometry{quad(2, red, 2)}},
		{ExpressID: 3, Geometries: []PlacedGeometry{quad(3, red, 4), quad(4, red, 6)}},
	})
	return e, meshes[0]
}

// flagged returns the entities whose flags say visible, in buffer order.
func flagged(m *MergedMesh) []int {
	var out []int
	seen := map[int]bool{}
	for _, s := range m.VisibleSubMeshes() {
		if !seen[s.ExpressID] {
			seen[s.ExpressID] = true
			out = append(out, s.ExpressID)
		}
	}
	return out
}

func TestBatcherCoalescesEdits(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	defer e.Close()
	b := e.Batcher()

	if !m.HideSubMesh(1) || !m.HideSubMesh(2) {
		t.Fatal("HideSubMesh rejected a member entity")
	}
	if got := m.Snapshot().Entities(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("buffers changed before the debounce fired: %v", got)
	}
	if b.Pending() != 1 {
		t.Errorf("pending = %d, want 1", b.Pending())
	}

	b.Wait()
	if b.Rebuilds() != 1 {
		t.Errorf("rebuilds = %d, want 1", b.Rebuilds())
	}
	snap := m.Snapshot()
	if got := snap.Entities(); !reflect.DeepEqual(got, []int{3}) {
		t.Errorf("entities = %v, want [3]", got)
	}
	if len(snap.Positions) != 2*4*3 || len(snap.Indices) != 12 {
		t.Errorf("buffers = %d positions, %d indices", len(snap.Positions), len(snap.Indices))
	}
	if snap.Indices[6] != 4 {
		t.Errorf("second sub-mesh not re-offset: %v", snap.Indices)
	}
	if snap.Version != 1 {
		t.Errorf("version = %d, want 1", snap.Version)
	}
}

func TestBatcherSnapshotIsStable(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	defer e.Close()

	before := m.Snapshot()
	m.HideSubMesh(3)
	e.Batcher().Flush()

	if len(before.Indices) != 24 || before.Entities()[2] != 3 {
		t.Error("an earlier snapshot was modified by a rebuild")
	}
	if got := m.Snapshot().Entities(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("entities = %v", got)
	}
}

func TestBatcherHideAll(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	defer e.Close()
	b := e.Batcher()

	b.Isolate(m, nil)
	b.Flush()
	snap := m.Snapshot()
	if !snap.Hidden || snap.Entities() != nil {
		t.Errorf("mesh with nothing visible must be hidden, got %+v", snap.Ranges)
	}
	if len(snap.Indices) == 0 {
		t.Error("hidden mesh should keep its last buffers")
	}

	m.RestoreSubMesh()
	b.Flush()
	if got := m.Snapshot(); got.Hidden || len(got.Entities()) != 3 {
		t.Errorf("restore all: hidden=%v entities=%v", got.Hidden, got.Entities())
	}
}

func TestBatcherNoOpEdits(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	defer e.Close()
	b := e.Batcher()

	if m.HideSubMesh(99) {
		t.Error("unknown entity accepted")
	}
	m.RestoreSubMesh(1, 2)
	b.ShowAll(m)
	if b.Pending() != 0 {
		t.Errorf("edits that change nothing scheduled %d rebuilds", b.Pending())
	}
}

func TestBatcherIsolateAndRestore(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	defer e.Close()
	b := e.Batcher()

	e.Isolate([]int{2})
	b.Wait()
	if got := m.Snapshot().Entities(); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("isolate: %v", got)
	}
	if m.IsVisible(1) || !m.IsVisible(2) {
		t.Error("flags disagree with isolate")
	}

	m.RestoreSubMesh(3)
	b.Wait()
	if got := m.Snapshot().Entities(); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("restore: %v", got)
	}
}

func TestBatcherVisibilityInvariant(t *testing.T) {
	opts := testOptions()
	opts.Debounce = time.Millisecond
	e, m := threeEntityMesh(t, opts)
	defer e.Close()
	b := e.Batcher()

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		id := 1 + r.Intn(3)
		switch r.Intn(4) {
		case 0:
			e.HideEntity(id)
		case 1:
			e.ShowEntity(id)
		case 2:
			e.Isolate([]int{id})
		default:
			e.ShowAll()
		}
		if i%17 == 0 {
			time.Sleep(2 * time.Millisecond)
		}
	}
	b.Wait()

	snap := m.Snapshot()
	want := flagged(m)
	if len(want) == 0 {
		if !snap.Hidden {
			t.Error("nothing flagged visible but mesh is rendered")
		}
		return
	}
	if snap.Hidden || !reflect.DeepEqual(snap.Entities(), want) {
		t.Errorf("rendered %v (hidden=%v), flags say %v", snap.Entities(), snap.Hidden, want)
	}
}

func TestBatcherConcurrentEdits(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	defer e.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := 1 + (g+i)%3
				if i%2 == 0 {
					e.HideEntity(id)
				} else {
					e.ShowEntity(id)
				}
			}
		}(g)
	}
	wg.Wait()
	e.Batcher().Wait()

	want := flagged(m)
	got := m.Snapshot().Entities()
	if len(want) > 0 && !reflect.DeepEqual(got, want) {
		t.Errorf("rendered %v, flags say %v", got, want)
	}
}

func TestBatcherAfterClose(t *testing.T) {
	e, m := threeEntityMesh(t, testOptions())
	e.Close()

	m.HideSubMesh(1)
	if got := m.Snapshot().Entities(); !reflect.DeepEqual(got, []int{2, 3}) {
		t.Errorf("edit after close must rebuild immediately, got %v", got)
	}
}

func TestEnginesAreIndependent(t *testing.T) {
	a, ma := threeEntityMesh(t, testOptions())
	defer a.Close()
	b, mb := threeEntityMesh(t, testOptions())
	defer b.Close()

	a.HideEntity(1)
	if b.Batcher().Pending() != 0 {
		t.Error("edit in one engine scheduled work in another")
	}
	a.Batcher().Flush()
	if mb.IsVisible(1) == ma.IsVisible(1) {
		t.Error("visibility leaked across engines")
	}
}
