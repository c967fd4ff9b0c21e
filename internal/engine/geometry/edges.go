package geometry

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/ifckit/pkg/math"
)

// edgeDecimals quantizes edge endpoints.
const edgeDecimals = 4

type edgeKey struct {
	a, b posKey
}

type edgeRecord struct {
	normal  math.Vec3
	a, b    [3]float32
	matched bool
}

// ExtractEdges returns line segments (x1,y1,z1,x2,y2,z2 per segment) for
// the feature edges of a triangle list. An edge shared by two triangles is
// emitted when the cosine between their face normals is below
// cos(angleDeg). Edges used by a single triangle are boundary edges and
// are always emitted.
//
// Edges are keyed by their quantized endpoints in winding direction; the
// neighbouring triangle of a consistently wound mesh walks the same edge
// in reverse, so a match is looked up under the reversed key first.
func ExtractEdges(positions []float32, indices []uint32, angleDeg float32) []float32 {
	threshold := math32.Cos(angleDeg * math32.Pi / 180)
	scale := math32.Pow(10, edgeDecimals)

	point := func(i uint32) [3]float32 {
		return [3]float32{positions[i*3], positions[i*3+1], positions[i*3+2]}
	}
	key := func(p [3]float32) posKey {
		return posKey{quantize(p[0], scale), quantize(p[1], scale), quantize(p[2], scale)}
	}

	open := make(map[edgeKey]*edgeRecord)
	var order []edgeKey
	var out []float32

	for t := 0; t+2 < len(indices); t += 3 {
		tri := [3][3]float32{point(indices[t]), point(indices[t+1]), point(indices[t+2])}
		v0, v1, v2 := math.V3(tri[0]), math.V3(tri[1]), math.V3(tri[2])
		normal := v1.Sub(v0).Cross(v2.Sub(v0))
		if normal.Length() < 1e-12 {
			continue
		}
		normal = normal.Normalize()

		for e := 0; e < 3; e++ {
			pa, pb := tri[e], tri[(e+1)%3]
			ka, kb := key(pa), key(pb)
			if ka == kb {
				continue
			}

			rec := open[edgeKey{kb, ka}]
			if rec == nil || rec.matched {
				// Inconsistent winding walks the edge in the same direction.
				if same := open[edgeKey{ka, kb}]; same != nil && !same.matched {
					rec = same
				} else {
					rec = nil
				}
			}
			if rec != nil {
				rec.matched = true
				if rec.normal.Dot(normal) < threshold {
					out = append(out, rec.a[0], rec.a[1], rec.a[2], rec.b[0], rec.b[1], rec.b[2])
				}
				continue
			}

			k := edgeKey{ka, kb}
			if _, exists := open[k]; exists {
				continue
			}
			open[k] = &edgeRecord{normal: normal, a: pa, b: pb}
			order = append(order, k)
		}
	}

	for _, k := range order {
		if rec := open[k]; !rec.matched {
			out = append(out, rec.a[0], rec.a[1], rec.a[2], rec.b[0], rec.b[1], rec.b[2])
		}
	}
	return out
}
