package geometry

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/ifckit/pkg/math"
)

// normalDecimals quantizes normals in the composite weld key.
const normalDecimals = 3

// Mesh is an indexed triangle list with separate position and normal
// buffers.
type Mesh struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m Mesh) VertexCount() int { return len(m.Positions) / 3 }

type posKey [3]int64

type compositeKey struct {
	pos    posKey
	normal [3]int32
}

func quantize(v, scale float32) int64 {
	return int64(math32.Round(v * scale))
}

// Simplify welds vertices that share a quantized position and whose
// normals are within the cosine threshold. Vertices at the same position
// with diverging normals stay distinct so hard edges survive. Lookup goes
// by position first and only falls back to a position+normal key once a
// normal mismatch is seen. Triangles that collapse are dropped.
//
// The result never has more vertices than the input, and its indices
// form a valid triangle list.
func Simplify(in Mesh, decimals int, cosine float32) Mesh {
	n := in.VertexCount()
	if n == 0 {
		return Mesh{}
	}
	scale := math32.Pow(10, float32(decimals))
	nscale := math32.Pow(10, normalDecimals)

	out := Mesh{
		Positions: make([]float32, 0, len(in.Positions)),
		Normals:   make([]float32, 0, len(in.Normals)),
	}
	remap := make([]uint32, n)
	byPos := make(map[posKey]uint32, n)
	var byComposite map[compositeKey]uint32

	emit := func(i int) uint32 {
		idx := uint32(len(out.Positions) / 3)
		out.Positions = append(out.Positions, in.Positions[i*3:i*3+3]...)
		out.Normals = append(out.Normals, in.Normals[i*3:i*3+3]...)
		return idx
	}
	normalAt := func(buf []float32, i int) math.Vec3 {
		return math.Vec3{X: buf[i*3], Y: buf[i*3+1], Z: buf[i*3+2]}
	}

	for i := 0; i < n; i++ {
		pk := posKey{
			quantize(in.Positions[i*3], scale),
			quantize(in.Positions[i*3+1], scale),
			quantize(in.Positions[i*3+2], scale),
		}
		j, ok := byPos[pk]
		if !ok {
			j = emit(i)
			byPos[pk] = j
			remap[i] = j
			continue
		}

		nrm := normalAt(in.Normals, i)
		if normalAt(out.Normals, int(j)).CosineSimilarity(nrm) >= cosine {
			remap[i] = j
			continue
		}

		ck := compositeKey{pos: pk, normal: [3]int32{
			int32(math32.Round(nrm.X * nscale)),
			int32(math32.Round(nrm.Y * nscale)),
			int32(math32.Round(nrm.Z * nscale)),
		}}
		if byComposite == nil {
			byComposite = make(map[compositeKey]uint32)
		}
		if k, ok := byComposite[ck]; ok {
			remap[i] = k
			continue
		}
		k := emit(i)
		byComposite[ck] = k
		remap[i] = k
	}

	out.Indices = make([]uint32, 0, len(in.Indices))
	for t := 0; t+2 < len(in.Indices); t += 3 {
		a, b, c := remap[in.Indices[t]], remap[in.Indices[t+1]], remap[in.Indices[t+2]]
		if a == b || b == c || a == c {
			continue
		}
		out.Indices = append(out.Indices, a, b, c)
	}
	return out
}
