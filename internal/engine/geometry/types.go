// Package geometry consolidates per-entity triangle meshes into one merged
// buffer per material and keeps those buffers in sync with per-entity
// visibility edits.
package geometry

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/pkg/math"
)

// PlacedGeometry is one geometry instance of a source entity as emitted by
// the geometry engine. Vertices are interleaved x,y,z,nx,ny,nz.
type PlacedGeometry struct {
	GeometryID int         `json:"geometryExpressID"`
	Color      [4]float32  `json:"color"`
	Transform  [16]float32 `json:"flatTransformation"`
	Vertices   []float32   `json:"vertices"`
	Indices    []uint32    `json:"indices"`
}

// VertexCount returns the number of interleaved vertices.
func (g PlacedGeometry) VertexCount() int { return len(g.Vertices) / 6 }

// FlatMesh is the geometry of one source entity.
type FlatMesh struct {
	ExpressID  int              `json:"expressID"`
	GlobalID   string           `json:"globalId,omitempty"`
	Geometries []PlacedGeometry `json:"geometries"`
}

// Material identifies a merge group by RGBA color.
type Material [4]float32

// Bounds holds an axis-aligned bounding box.
type Bounds struct {
	Min [3]float32
	Max [3]float32
}

// EmptyBounds returns inverted bounds that any point extends.
func EmptyBounds() Bounds {
	return Bounds{
		Min: [3]float32{1e30, 1e30, 1e30},
		Max: [3]float32{-1e30, -1e30, -1e30},
	}
}

// Valid reports whether the bounds contain at least one point.
func (b Bounds) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Union returns bounds covering both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if !o.Valid() {
		return b
	}
	b.extend(o.Min)
	b.extend(o.Max)
	return b
}

func (b *Bounds) extend(p [3]float32) {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
}

func boundsOf(positions []float32) Bounds {
	b := EmptyBounds()
	for i := 0; i+2 < len(positions); i += 3 {
		b.extend([3]float32{positions[i], positions[i+1], positions[i+2]})
	}
	return b
}

// SubMesh is the geometry one entity contributes to a merged mesh, kept
// as simplified and in model space. Its buffers are never modified after
// consolidation.
type SubMesh struct {
	ExpressID  int
	GlobalID   string
	GeometryID int
	Positions  []float32
	Normals    []float32
	Indices    []uint32
	Edges      []float32
	// Transform is the identity: the source transform is pre-applied.
	Transform math.Mat4
	Bounds    Bounds

	visible bool
}

// VertexCount returns the number of vertices.
func (s *SubMesh) VertexCount() int { return len(s.Positions) / 3 }

// Options configures consolidation and visibility batching.
type Options struct {
	// SimplifyThreshold is the vertex count above which geometry is welded.
	SimplifyThreshold int
	// PositionDecimals is the quantization of welded positions.
	PositionDecimals int
	// NormalCosine is the minimum normal similarity for welding.
	NormalCosine float32
	// EdgeAngle is the silhouette threshold in degrees.
	EdgeAngle float32
	// DisableEdges skips edge extraction.
	DisableEdges bool
	// IdentityEpsilon is the per-component tolerance of the identity fast path.
	IdentityEpsilon float32
	// CacheSize caps the number of memoized simplifications.
	CacheSize int
	// YieldEvery is the number of geometries between cooperative yields.
	YieldEvery int
	// Debounce is the visibility rebuild delay.
	Debounce time.Duration
	// Logger receives consolidation logs. Nil disables logging.
	Logger *zap.Logger
}

// DefaultOptions returns the default consolidation settings.
func DefaultOptions() Options {
	return Options{
		SimplifyThreshold: 1000,
		PositionDecimals:  4,
		NormalCosine:      0.98,
		EdgeAngle:         15,
		IdentityEpsilon:   1e-6,
		CacheSize:         4096,
		YieldEvery:        256,
		Debounce:          10 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SimplifyThreshold <= 0 {
		o.SimplifyThreshold = d.SimplifyThreshold
	}
	if o.PositionDecimals <= 0 {
		o.PositionDecimals = d.PositionDecimals
	}
	if o.NormalCosine <= 0 {
		o.NormalCosine = d.NormalCosine
	}
	if o.EdgeAngle <= 0 {
		o.EdgeAngle = d.EdgeAngle
	}
	if o.IdentityEpsilon <= 0 {
		o.IdentityEpsilon = d.IdentityEpsilon
	}
	if o.CacheSize <= 0 {
		o.CacheSize = d.CacheSize
	}
	if o.YieldEvery <= 0 {
		o.YieldEvery = d.YieldEvery
	}
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Stats summarizes one consolidation.
type Stats struct {
	Entities    int
	Geometries  int
	Skipped     int
	Simplified  int
	VerticesIn  int
	VerticesOut int
	CacheHits   int
	CacheMisses int
	Meshes      int
}
