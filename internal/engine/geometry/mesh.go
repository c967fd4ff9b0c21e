package geometry

import (
	"sync"
)

// Range locates one sub-mesh inside the rendered buffers.
type Range struct {
	ExpressID  int
	IndexStart int
	IndexCount int
}

// Snapshot is a consistent view of a merged mesh's renderable state.
// Buffers are replaced, never modified, by rebuilds, so a snapshot stays
// valid after later edits.
type Snapshot struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
	Edges     []float32
	Bounds    Bounds
	Hidden    bool
	Version   uint64
	// Ranges lists the rendered sub-meshes in buffer order.
	Ranges []Range
}

// Entities returns the express ids of the rendered sub-meshes in buffer
// order, without repeats. A hidden mesh renders nothing.
func (s Snapshot) Entities() []int {
	if s.Hidden {
		return nil
	}
	var out []int
	seen := make(map[int]struct{}, len(s.Ranges))
	for _, r := range s.Ranges {
		if _, ok := seen[r.ExpressID]; ok {
			continue
		}
		seen[r.ExpressID] = struct{}{}
		out = append(out, r.ExpressID)
	}
	return out
}

// MergedMesh holds the geometry of every entity sharing one material.
// Renderers read it through Snapshot; visibility edits go through the
// owning Batcher and become visible after the next rebuild.
type MergedMesh struct {
	ID       int
	Material Material

	mu        sync.RWMutex
	subMeshes []*SubMesh
	byEntity  map[int][]int
	state     Snapshot
	batcher   *Batcher
}

func newMergedMesh(id int, material Material, subs []*SubMesh, b *Batcher) *MergedMesh {
	m := &MergedMesh{
		ID:        id,
		Material:  material,
		subMeshes: subs,
		byEntity:  make(map[int][]int),
		batcher:   b,
	}
	for i, s := range subs {
		m.byEntity[s.ExpressID] = append(m.byEntity[s.ExpressID], i)
	}
	return m
}

// Snapshot returns the current renderable state.
func (m *MergedMesh) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SubMeshes returns the per-entity geometry in buffer order. The
// returned sub-meshes must not be modified.
func (m *MergedMesh) SubMeshes() []*SubMesh {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*SubMesh(nil), m.subMeshes...)
}

// VisibleSubMeshes returns the sub-meshes currently flagged visible.
func (m *MergedMesh) VisibleSubMeshes() []*SubMesh {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*SubMesh
	for _, s := range m.subMeshes {
		if s.visible {
			out = append(out, s)
		}
	}
	return out
}

// Contains reports whether an entity contributes to this mesh.
func (m *MergedMesh) Contains(expressID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byEntity[expressID]
	return ok
}

// IsVisible reports the requested visibility of an entity. It may be
// ahead of the rendered state until the pending rebuild runs.
func (m *MergedMesh) IsVisible(expressID int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.byEntity[expressID] {
		if m.subMeshes[i].visible {
			return true
		}
	}
	return false
}

// HideSubMesh hides an entity. It reports whether the entity belongs to
// this mesh.
func (m *MergedMesh) HideSubMesh(expressID int) bool {
	return m.batcher.Hide(m, expressID)
}

// RestoreSubMesh shows the given entities, or every entity when called
// without ids.
func (m *MergedMesh) RestoreSubMesh(expressIDs ...int) {
	if len(expressIDs) == 0 {
		m.batcher.ShowAll(m)
		return
	}
	for _, id := range expressIDs {
		m.batcher.Show(m, id)
	}
}

// setVisible flips the flags of one entity and reports whether anything
// changed.
func (m *MergedMesh) setVisible(expressID int, visible bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	for _, i := range m.byEntity[expressID] {
		if s := m.subMeshes[i]; s.visible != visible {
			s.visible = visible
			changed = true
		}
	}
	return changed
}

// setVisibleWhere applies keep to every sub-mesh and reports whether any
// flag changed.
func (m *MergedMesh) setVisibleWhere(keep func(expressID int) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	for _, s := range m.subMeshes {
		v := keep(s.ExpressID)
		if s.visible != v {
			s.visible = v
			changed = true
		}
	}
	return changed
}

// build concatenates the visible sub-meshes into fresh buffers. Counts
// are computed first so every buffer is allocated once.
func build(subs []*SubMesh, withEdges bool) Snapshot {
	var verts, idx, edges int
	for _, s := range subs {
		verts += len(s.Positions)
		idx += len(s.Indices)
		edges += len(s.Edges)
	}

	snap := Snapshot{
		Positions: make([]float32, 0, verts),
		Normals:   make([]float32, 0, verts),
		Indices:   make([]uint32, 0, idx),
		Bounds:    EmptyBounds(),
		Ranges:    make([]Range, 0, len(subs)),
	}
	if withEdges {
		snap.Edges = make([]float32, 0, edges)
	}

	for _, s := range subs {
		offset := uint32(len(snap.Positions) / 3)
		start := len(snap.Indices)
		snap.Positions = append(snap.Positions, s.Positions...)
		snap.Normals = append(snap.Normals, s.Normals...)
		for _, i := range s.Indices {
			snap.Indices = append(snap.Indices, i+offset)
		}
		if withEdges {
			snap.Edges = append(snap.Edges, s.Edges...)
		}
		snap.Bounds = snap.Bounds.Union(s.Bounds)
		snap.Ranges = append(snap.Ranges, Range{
			ExpressID:  s.ExpressID,
			IndexStart: start,
			IndexCount: len(s.Indices),
		})
	}
	return snap
}
