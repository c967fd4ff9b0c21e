package picking

import (
	"context"
	"testing"

	"github.com/Faultbox/ifckit/internal/engine/geometry"
	"github.com/Faultbox/ifckit/pkg/math"
)

func TestIntersectAABB(t *testing.T) {
	box := NewAABB(1, 1, 1, -1, -1, -1)
	tests := []struct {
		name  string
		ray   Ray
		hit   bool
		distT float32
	}{
		{"front", NewRay([3]float32{0, 0, 5}, [3]float32{0, 0, -1}), true, 4},
		{"inside", NewRay([3]float32{0, 0, 0}, [3]float32{1, 0, 0}), true, 1},
		{"behind", NewRay([3]float32{0, 0, 5}, [3]float32{0, 0, 1}), false, 0},
		{"parallel outside", NewRay([3]float32{2, 0, 5}, [3]float32{0, 0, -1}), false, 0},
		{"miss", NewRay([3]float32{0, 3, 5}, [3]float32{0, 0, -1}), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tt.ray.IntersectAABB(box)
			if ok != tt.hit {
				t.Fatalf("hit = %v, want %v", ok, tt.hit)
			}
			if ok && d != tt.distT {
				t.Errorf("distance = %v, want %v", d, tt.distT)
			}
		})
	}
}

func TestScreenToRayIdentity(t *testing.T) {
	r := ScreenToRay(50, 50, 100, 100, math.Identity())
	if r.Origin != [3]float32{0, 0, -1} || r.Direction != [3]float32{0, 0, 1} {
		t.Errorf("ray = %+v", r)
	}
}

func square(id int, x, z float32) geometry.FlatMesh {
	return geometry.FlatMesh{ExpressID: id, Geometries: []geometry.PlacedGeometry{{
		GeometryID: id,
		Color:      [4]float32{1, 1, 1, 1},
		Vertices: []float32{
			x, 0, z, 0, 0, 1,
			x + 1, 0, z, 0, 0, 1,
			x + 1, 1, z, 0, 0, 1,
		},
		Indices: []uint32{0, 1, 2},
	}}}
}

func TestPickSubMesh(t *testing.T) {
	e := geometry.NewEngine(geometry.DefaultOptions())
	defer e.Close()
	meshes, err := e.Consolidate(context.Background(), geometry.SliceSource{
		square(1, 0, 0),
		square(2, 0, 3),
		square(3, 5, 3),
	})
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}

	down := NewRay([3]float32{0.5, 0.2, 10}, [3]float32{0, 0, -1})
	hit, ok := PickSubMesh(down, meshes)
	if !ok || hit.ExpressID != 2 || hit.Distance != 7 {
		t.Fatalf("pick = %+v, %v; want entity 2 at 7", hit, ok)
	}

	e.HideEntity(2)
	e.Batcher().Flush()
	hit, ok = PickSubMesh(down, meshes)
	if !ok || hit.ExpressID != 1 {
		t.Errorf("after hiding 2: pick = %+v, %v; want entity 1", hit, ok)
	}

	e.Isolate(nil)
	e.Batcher().Flush()
	if _, ok := PickSubMesh(down, meshes); ok {
		t.Error("hidden mesh was picked")
	}
}
