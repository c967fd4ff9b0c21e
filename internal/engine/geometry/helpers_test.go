package geometry

import "time"

var (
	red   = [4]float32{1, 0, 0, 1}
	green = [4]float32{0, 1, 0, 1}
)

// quad returns a unit square in the XY plane offset along X.
func quad(id int, color [4]float32, x float32) PlacedGeometry {
	return PlacedGeometry{
		GeometryID: id,
		Color:      color,
		Transform:  [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1},
		Vertices: []float32{
			x, 0, 0, 0, 0, 1,
			x + 1, 0, 0, 0, 0, 1,
			x + 1, 1, 0, 0, 0, 1,
			x, 1, 0, 0, 0, 1,
		},
		Indices: []uint32{0, 1, 2, 0, 2, 3},
	}
}

// soupGrid returns an n x n grid of quads as an unindexed triangle soup:
// every triangle has its own three vertices.
func soupGrid(id int, color [4]float32, n int) PlacedGeometry {
	g := PlacedGeometry{GeometryID: id, Color: color}
	add := func(x, y float32) {
		g.Vertices = append(g.Vertices, x, y, 0, 0, 0, 1)
		g.Indices = append(g.Indices, uint32(len(g.Indices)))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			x, y := float32(i), float32(j)
			add(x, y)
			add(x+1, y)
			add(x+1, y+1)
			add(x, y)
			add(x+1, y+1)
			add(x, y+1)
		}
	}
	return g
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Debounce = 40 * time.Millisecond
	return opts
}
