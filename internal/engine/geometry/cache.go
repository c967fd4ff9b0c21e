package geometry

import (
	"encoding/binary"
	gomath "math"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// hashSamples is the number of vertex and index values sampled per key.
const hashSamples = 32

// structuralKey hashes the buffer lengths and an evenly spaced sample of
// vertex and index values. It is cheap for large buffers and good enough
// to recognize repeated geometry; length equality is checked on lookup.
func structuralKey(vertices []float32, indices []uint32) uint64 {
	d := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(len(vertices)))
	_, _ = d.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(len(indices)))
	_, _ = d.Write(buf[:])

	for _, i := range sampleIndexes(len(vertices)) {
		binary.LittleEndian.PutUint32(buf[:4], gomath.Float32bits(vertices[i]))
		_, _ = d.Write(buf[:4])
	}
	for _, i := range sampleIndexes(len(indices)) {
		binary.LittleEndian.PutUint32(buf[:4], indices[i])
		_, _ = d.Write(buf[:4])
	}
	return d.Sum64()
}

// sampleIndexes returns up to hashSamples positions spread over [0, n),
// always including the first and last.
func sampleIndexes(n int) []int {
	if n == 0 {
		return nil
	}
	if n <= hashSamples {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, hashSamples)
	step := float64(n-1) / float64(hashSamples-1)
	for i := range out {
		out[i] = int(float64(i) * step)
	}
	return out
}

type cacheEntry struct {
	vertices int
	indices  int
	mesh     Mesh
}

// simplifyCache memoizes simplification results for the session. When it
// reaches its cap it is cleared rather than evicting per entry.
type simplifyCache struct {
	mu      sync.Mutex
	max     int
	entries map[uint64]cacheEntry
}

func newSimplifyCache(max int) *simplifyCache {
	return &simplifyCache{max: max, entries: make(map[uint64]cacheEntry)}
}

func (c *simplifyCache) get(key uint64, vertices, indices int) (Mesh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.vertices != vertices || e.indices != indices {
		return Mesh{}, false
	}
	return e.mesh, true
}

func (c *simplifyCache) put(key uint64, vertices, indices int, m Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		c.entries = make(map[uint64]cacheEntry)
	}
	c.entries[key] = cacheEntry{vertices: vertices, indices: indices, mesh: m}
}

func (c *simplifyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
