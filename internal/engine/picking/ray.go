// Package picking casts rays against the sub-mesh bounds of merged meshes.
package picking

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/ifckit/internal/engine/geometry"
	"github.com/Faultbox/ifckit/pkg/math"
)

// Ray represents a ray in model space with origin and direction.
type Ray struct {
	Origin    [3]float32
	Direction [3]float32 // Normalized direction
}

// AABB represents an axis-aligned bounding box.
type AABB struct {
	Min [3]float32
	Max [3]float32
}

// NewRay returns a ray with a normalized direction.
func NewRay(origin, direction [3]float32) Ray {
	return Ray{Origin: origin, Direction: math.V3(direction).Normalize().Array()}
}

// ScreenToRay converts screen coordinates to a model-space ray.
// screenX, screenY are pixel coordinates, viewportW/H are viewport dimensions.
// invViewProj is the inverse of the view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj math.Mat4) Ray {
	// Normalized device coords (-1 to 1), Y flipped
	ndcX := 2.0*screenX/viewportW - 1.0
	ndcY := 1.0 - 2.0*screenY/viewportH

	// TransformPoint performs the perspective divide.
	near := invViewProj.TransformPoint([3]float32{ndcX, ndcY, -1})
	far := invViewProj.TransformPoint([3]float32{ndcX, ndcY, 1})

	dir := math.V3(far).Sub(math.V3(near))
	return Ray{Origin: near, Direction: dir.Normalize().Array()}
}

// IntersectAABB tests ray intersection with an axis-aligned bounding box.
// Returns the distance to intersection (t) and whether intersection occurred.
// If the ray starts inside the box, returns the exit distance.
func (r Ray) IntersectAABB(box AABB) (t float32, hit bool) {
	tmin := float32(-math32.MaxFloat32)
	tmax := float32(math32.MaxFloat32)

	for axis := 0; axis < 3; axis++ {
		if r.Direction[axis] == 0 {
			if r.Origin[axis] < box.Min[axis] || r.Origin[axis] > box.Max[axis] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[axis] - r.Origin[axis]) / r.Direction[axis]
		t2 := (box.Max[axis] - r.Origin[axis]) / r.Direction[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	}

	if tmax < tmin || tmax < 0 {
		return 0, false
	}

	// Entry point, or exit point if starting inside
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// NewAABB creates an AABB from two corners in any order.
func NewAABB(minX, minY, minZ, maxX, maxY, maxZ float32) AABB {
	box := AABB{
		Min: [3]float32{minX, minY, minZ},
		Max: [3]float32{maxX, maxY, maxZ},
	}
	for i := 0; i < 3; i++ {
		if box.Min[i] > box.Max[i] {
			box.Min[i], box.Max[i] = box.Max[i], box.Min[i]
		}
	}
	return box
}

// FromBounds converts geometry bounds to an AABB.
func FromBounds(b geometry.Bounds) AABB {
	return AABB{Min: b.Min, Max: b.Max}
}

// Hit is the result of a successful pick.
type Hit struct {
	ExpressID int
	GlobalID  string
	MeshID    int
	Distance  float32
}

// PickSubMesh returns the closest visible sub-mesh whose bounds the ray
// hits. Hidden meshes and hidden entities are skipped.
func PickSubMesh(r Ray, meshes []*geometry.MergedMesh) (Hit, bool) {
	var best Hit
	found := false
	for _, m := range meshes {
		if m.Snapshot().Hidden {
			continue
		}
		for _, s := range m.VisibleSubMeshes() {
			if !s.Bounds.Valid() {
				continue
			}
			t, ok := r.IntersectAABB(FromBounds(s.Bounds))
			if !ok || (found && t >= best.Distance) {
				continue
			}
			best = Hit{ExpressID: s.ExpressID, GlobalID: s.GlobalID, MeshID: m.ID, Distance: t}
			found = true
		}
	}
	return best, found
}
