package geometry

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/internal/metrics"
	"github.com/Faultbox/ifckit/pkg/math"
)

// Engine consolidates geometry into merged meshes and owns the batcher
// that keeps them in sync with visibility edits. Engines share no state.
type Engine struct {
	opts    Options
	log     *zap.Logger
	cache   *simplifyCache
	batcher *Batcher

	mu     sync.Mutex
	meshes []*MergedMesh
	stats  Stats
}

// NewEngine creates an engine. Zero option fields take their defaults.
func NewEngine(opts Options) *Engine {
	opts = opts.withDefaults()
	log := opts.Logger.Named("geometry")
	return &Engine{
		opts:    opts,
		log:     log,
		cache:   newSimplifyCache(opts.CacheSize),
		batcher: NewBatcher(opts.Debounce, !opts.DisableEdges, log),
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

// Batcher returns the engine's visibility batcher.
func (e *Engine) Batcher() *Batcher { return e.batcher }

// Meshes returns every merged mesh produced so far.
func (e *Engine) Meshes() []*MergedMesh {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*MergedMesh(nil), e.meshes...)
}

// Stats returns counters accumulated over all consolidations.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// group collects the sub-meshes of one material in discovery order.
type group struct {
	material Material
	subs     []*SubMesh
}

// Consolidate reads src and returns one merged mesh per distinct
// material, in order of first appearance. Transforms are pre-applied, so
// positions are in model space and every sub-mesh transform is the
// identity.
func (e *Engine) Consolidate(ctx context.Context, src Source) ([]*MergedMesh, error) {
	var groups []*group
	var stats Stats
	byColor := make(map[Material]int)
	items := 0

	err := src.Stream(ctx, func(fm FlatMesh) error {
		stats.Entities++
		for _, pg := range fm.Geometries {
			items++
			if items%e.opts.YieldEvery == 0 {
				runtime.Gosched()
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			stats.Geometries++
			if !validGeometry(pg) {
				stats.Skipped++
				e.log.Debug("skipping malformed geometry",
					zap.Int("entity", fm.ExpressID),
					zap.Int("geometry", pg.GeometryID),
					zap.Int("vertexFloats", len(pg.Vertices)),
					zap.Int("indices", len(pg.Indices)))
				continue
			}

			sub := e.prepare(fm, pg, &stats)
			mat := Material(pg.Color)
			gi, ok := byColor[mat]
			if !ok {
				gi = len(groups)
				byColor[mat] = gi
				groups = append(groups, &group{material: mat})
			}
			groups[gi].subs = append(groups[gi].subs, sub)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("consolidating geometry: %w", err)
	}

	meshes := make([]*MergedMesh, 0, len(groups))
	e.mu.Lock()
	base := len(e.meshes)
	for i, g := range groups {
		m := newMergedMesh(base+i, g.material, g.subs, e.batcher)
		for _, s := range g.subs {
			s.visible = true
		}
		m.state = build(g.subs, !e.opts.DisableEdges)
		meshes = append(meshes, m)
	}
	stats.Meshes = len(meshes)
	e.meshes = append(e.meshes, meshes...)
	e.stats = addStats(e.stats, stats)
	e.mu.Unlock()

	metrics.MeshesMerged.Add(float64(stats.Meshes))
	metrics.SubMeshes.Add(float64(stats.Geometries - stats.Skipped))
	metrics.VerticesWelded.Add(float64(stats.VerticesIn - stats.VerticesOut))
	e.log.Info("geometry consolidated",
		zap.Int("entities", stats.Entities),
		zap.Int("geometries", stats.Geometries),
		zap.Int("skipped", stats.Skipped),
		zap.Int("meshes", stats.Meshes),
		zap.Int("verticesIn", stats.VerticesIn),
		zap.Int("verticesOut", stats.VerticesOut),
		zap.Int("cacheHits", stats.CacheHits))

	return meshes, nil
}

// prepare simplifies one placed geometry in local space (memoized), moves
// it into model space and derives its edges.
func (e *Engine) prepare(fm FlatMesh, pg PlacedGeometry, stats *Stats) *SubMesh {
	n := pg.VertexCount()
	stats.VerticesIn += n

	var local Mesh
	if n > e.opts.SimplifyThreshold {
		key := structuralKey(pg.Vertices, pg.Indices)
		cached, ok := e.cache.get(key, len(pg.Vertices), len(pg.Indices))
		if ok {
			stats.CacheHits++
			metrics.SimplifyCache.WithLabelValues(metrics.CacheHit).Inc()
			local = cached
		} else {
			stats.CacheMisses++
			metrics.SimplifyCache.WithLabelValues(metrics.CacheMiss).Inc()
			p, nrm := Deinterleave(pg.Vertices)
			local = Simplify(Mesh{Positions: p, Normals: nrm, Indices: pg.Indices},
				e.opts.PositionDecimals, e.opts.NormalCosine)
			e.cache.put(key, len(pg.Vertices), len(pg.Indices), local)
		}
		stats.Simplified++
	} else {
		p, nrm := Deinterleave(pg.Vertices)
		local = Mesh{Positions: p, Normals: nrm, Indices: append([]uint32(nil), pg.Indices...)}
	}
	stats.VerticesOut += local.VertexCount()

	positions, normals, _ := applyTransform(sourceTransform(pg.Transform), e.opts.IdentityEpsilon,
		local.Positions, local.Normals)

	sub := &SubMesh{
		ExpressID:  fm.ExpressID,
		GlobalID:   fm.GlobalID,
		GeometryID: pg.GeometryID,
		Positions:  positions,
		Normals:    normals,
		Indices:    local.Indices,
		Transform:  math.Identity(),
		Bounds:     boundsOf(positions),
	}
	if !e.opts.DisableEdges {
		sub.Edges = ExtractEdges(positions, sub.Indices, e.opts.EdgeAngle)
	}
	return sub
}

// sourceTransform treats an all-zero matrix as a missing transform.
func sourceTransform(flat [16]float32) math.Mat4 {
	for _, v := range flat {
		if v != 0 {
			return math.Mat4(flat)
		}
	}
	return math.Identity()
}

// HideEntity hides an entity in every mesh it contributes to.
func (e *Engine) HideEntity(expressID int) bool {
	found := false
	for _, m := range e.Meshes() {
		found = e.batcher.Hide(m, expressID) || found
	}
	return found
}

// ShowEntity shows an entity in every mesh it contributes to.
func (e *Engine) ShowEntity(expressID int) bool {
	found := false
	for _, m := range e.Meshes() {
		found = e.batcher.Show(m, expressID) || found
	}
	return found
}

// ShowAll shows every entity of every mesh.
func (e *Engine) ShowAll() {
	for _, m := range e.Meshes() {
		e.batcher.ShowAll(m)
	}
}

// Isolate shows exactly the given entities across all meshes.
func (e *Engine) Isolate(expressIDs []int) {
	for _, m := range e.Meshes() {
		e.batcher.Isolate(m, expressIDs)
	}
}

// GeometryIDs maps each entity to the geometry ids it contributed.
func (e *Engine) GeometryIDs() map[int][]int {
	out := make(map[int][]int)
	for _, m := range e.Meshes() {
		for _, s := range m.SubMeshes() {
			out[s.ExpressID] = append(out[s.ExpressID], s.GeometryID)
		}
	}
	return out
}

// Close flushes pending visibility edits and stops the batcher timer.
func (e *Engine) Close() {
	e.batcher.Close()
}

func addStats(a, b Stats) Stats {
	a.Entities += b.Entities
	a.Geometries += b.Geometries
	a.Skipped += b.Skipped
	a.Simplified += b.Simplified
	a.VerticesIn += b.VerticesIn
	a.VerticesOut += b.VerticesOut
	a.CacheHits += b.CacheHits
	a.CacheMisses += b.CacheMisses
	a.Meshes += b.Meshes
	return a
}
