package geometry

import (
	"github.com/Faultbox/ifckit/pkg/math"
)

// Deinterleave splits x,y,z,nx,ny,nz vertices into position and normal
// buffers.
func Deinterleave(vertices []float32) (positions, normals []float32) {
	n := len(vertices) / 6
	positions = make([]float32, n*3)
	normals = make([]float32, n*3)
	for i := 0; i < n; i++ {
		copy(positions[i*3:i*3+3], vertices[i*6:i*6+3])
		copy(normals[i*3:i*3+3], vertices[i*6+3:i*6+6])
	}
	return positions, normals
}

// applyTransform returns positions and normals moved into model space.
// When m is numerically the identity the inputs are returned unchanged.
func applyTransform(m math.Mat4, eps float32, positions, normals []float32) ([]float32, []float32, bool) {
	if m.IsIdentity(eps) {
		return positions, normals, false
	}

	nm := m.NormalMatrix()
	outP := make([]float32, len(positions))
	outN := make([]float32, len(normals))
	for i := 0; i+2 < len(positions); i += 3 {
		p := m.TransformPoint([3]float32{positions[i], positions[i+1], positions[i+2]})
		copy(outP[i:i+3], p[:])
	}
	for i := 0; i+2 < len(normals); i += 3 {
		d := nm.TransformDirection([3]float32{normals[i], normals[i+1], normals[i+2]})
		n := math.V3(d).Normalize().Array()
		copy(outN[i:i+3], n[:])
	}
	return outP, outN, true
}

// validGeometry reports whether a placed geometry is a well-formed
// triangle list.
func validGeometry(g PlacedGeometry) bool {
	if len(g.Vertices) == 0 || len(g.Vertices)%6 != 0 || len(g.Indices)%3 != 0 {
		return false
	}
	n := uint32(len(g.Vertices) / 6)
	for _, idx := range g.Indices {
		if idx >= n {
			return false
		}
	}
	return true
}
