package geometry

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/internal/metrics"
)

// Batcher coalesces visibility edits. Each edit only flips flags and marks
// the owning mesh pending; a single debounce timer, reset on every edit,
// rebuilds all pending meshes once activity settles.
type Batcher struct {
	delay     time.Duration
	withEdges bool
	log       *zap.Logger

	// work serializes rebuilds so an older rebuild never swaps in after
	// a newer one.
	work sync.Mutex

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[*MergedMesh]struct{}
	timer    *time.Timer
	running  int
	closed   bool
	rebuilds int
}

// NewBatcher creates a batcher with the given debounce delay.
func NewBatcher(delay time.Duration, withEdges bool, log *zap.Logger) *Batcher {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Batcher{
		delay:     delay,
		withEdges: withEdges,
		log:       log,
		pending:   make(map[*MergedMesh]struct{}),
	}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Hide hides an entity in m. It reports whether the entity belongs to m.
func (b *Batcher) Hide(m *MergedMesh, expressID int) bool {
	if !m.Contains(expressID) {
		return false
	}
	if m.setVisible(expressID, false) {
		b.schedule(m)
	}
	return true
}

// Show shows an entity in m. It reports whether the entity belongs to m.
func (b *Batcher) Show(m *MergedMesh, expressID int) bool {
	if !m.Contains(expressID) {
		return false
	}
	if m.setVisible(expressID, true) {
		b.schedule(m)
	}
	return true
}

// ShowAll shows every entity in m.
func (b *Batcher) ShowAll(m *MergedMesh) {
	if m.setVisibleWhere(func(int) bool { return true }) {
		b.schedule(m)
	}
}

// Isolate shows exactly the given entities in m.
func (b *Batcher) Isolate(m *MergedMesh, expressIDs []int) {
	keep := make(map[int]struct{}, len(expressIDs))
	for _, id := range expressIDs {
		keep[id] = struct{}{}
	}
	changed := m.setVisibleWhere(func(id int) bool {
		_, ok := keep[id]
		return ok
	})
	if changed {
		b.schedule(m)
	}
}

func (b *Batcher) schedule(m *MergedMesh) {
	b.mu.Lock()
	if b.closed {
		b.rebuilds++
		b.mu.Unlock()
		b.work.Lock()
		b.rebuild(m)
		b.work.Unlock()
		return
	}
	b.pending[m] = struct{}{}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.delay, b.fire)
	} else {
		b.timer.Reset(b.delay)
	}
	b.mu.Unlock()
}

// fire runs on the timer goroutine.
func (b *Batcher) fire() {
	b.mu.Lock()
	meshes := b.takePending()
	b.running++
	b.mu.Unlock()

	b.work.Lock()
	for _, m := range meshes {
		b.rebuild(m)
	}
	b.work.Unlock()

	b.mu.Lock()
	b.running--
	b.rebuilds += len(meshes)
	if b.running == 0 && len(b.pending) == 0 {
		b.idle.Broadcast()
	}
	b.mu.Unlock()
}

// takePending empties the pending set, ordered by mesh id. Callers hold mu.
func (b *Batcher) takePending() []*MergedMesh {
	meshes := make([]*MergedMesh, 0, len(b.pending))
	for m := range b.pending {
		meshes = append(meshes, m)
	}
	b.pending = make(map[*MergedMesh]struct{})
	sort.Slice(meshes, func(i, j int) bool { return meshes[i].ID < meshes[j].ID })
	return meshes
}

// Flush stops the timer and rebuilds every pending mesh now.
func (b *Batcher) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.mu.Unlock()
	b.fire()
}

// Wait blocks until no rebuild is pending or running.
func (b *Batcher) Wait() {
	b.mu.Lock()
	for b.running > 0 || len(b.pending) > 0 {
		b.idle.Wait()
	}
	b.mu.Unlock()
}

// Pending returns the number of meshes waiting for a rebuild.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Rebuilds returns the number of mesh rebuilds performed so far.
func (b *Batcher) Rebuilds() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rebuilds
}

// Close flushes pending work and stops the timer. Later edits rebuild
// synchronously.
func (b *Batcher) Close() {
	b.Flush()
	b.mu.Lock()
	b.closed = true
	b.timer = nil
	b.mu.Unlock()
}

// rebuild recomputes m's buffers from its visible sub-meshes and swaps
// them in under the write lock. A mesh with nothing visible is hidden and
// keeps its old buffers.
func (b *Batcher) rebuild(m *MergedMesh) {
	visible := m.VisibleSubMeshes()
	if len(visible) == 0 {
		m.mu.Lock()
		m.state.Hidden = true
		m.state.Version++
		m.mu.Unlock()
		metrics.VisibilityRebuilds.WithLabelValues(metrics.RebuildHidden).Inc()
		b.log.Debug("mesh hidden", zap.Int("mesh", m.ID))
		return
	}

	snap := build(visible, b.withEdges)

	m.mu.Lock()
	snap.Version = m.state.Version + 1
	m.state = snap
	m.mu.Unlock()

	metrics.VisibilityRebuilds.WithLabelValues(metrics.RebuildSwapped).Inc()
	b.log.Debug("mesh rebuilt",
		zap.Int("mesh", m.ID),
		zap.Int("subMeshes", len(visible)),
		zap.Int("indices", len(snap.Indices)))
}
