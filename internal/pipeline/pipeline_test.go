package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/Faultbox/ifckit/internal/config"
	"github.com/Faultbox/ifckit/internal/engine/geometry"
	"github.com/Faultbox/ifckit/internal/store"
	"github.com/Faultbox/ifckit/pkg/ifc"
	"github.com/Faultbox/ifckit/pkg/step"
)

func triangle(id int, color [4]float32, x float32) geometry.PlacedGeometry {
	return geometry.PlacedGeometry{
		GeometryID: id,
		Color:      color,
		Vertices: []float32{
			x, 0, 0, 0, 0, 1,
			x + 1, 0, 0, 0, 0, 1,
			x, 1, 0, 0, 0, 1,
		},
		Indices: []uint32{0, 1, 2},
	}
}

func testGeometry() geometry.Source {
	grey := [4]float32{0.5, 0.5, 0.5, 1}
	glass := [4]float32{0.2, 0.4, 0.9, 0.3}
	return geometry.SliceSource{
		{ExpressID: 10, Geometries: []geometry.PlacedGeometry{triangle(1000, grey, 0), triangle(1001, glass, 1)}},
		{ExpressID: 13, Geometries: []geometry.PlacedGeometry{triangle(1002, grey, 2)}},
	}
}

func load(t *testing.T, geom geometry.Source) *Model {
	t.Helper()
	m, err := Load(context.Background(), config.Default(), "testdata/model.ifc", geom)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestLoad(t *testing.T) {
	m := load(t, testGeometry())
	s := m.Summary

	if s.Relations != 9 || s.PropertySets != 3 {
		t.Errorf("relations=%d propertySets=%d, want 9 and 3", s.Relations, s.PropertySets)
	}
	if s.TreeNodes != 10 || s.DroppedEdges != 1 {
		t.Errorf("tree nodes=%d dropped=%d, want 10 and 1", s.TreeNodes, s.DroppedEdges)
	}
	if s.Meshes != 2 || s.SubMeshes != 3 {
		t.Errorf("meshes=%d subMeshes=%d, want 2 and 3", s.Meshes, s.SubMeshes)
	}
	if s.Dangling[ifc.Cycles] != 1 || s.Dangling[ifc.MissingPropertySet] == 0 || s.Dangling[ifc.MissingValue] == 0 {
		t.Errorf("dangling = %v", s.Dangling)
	}
	for _, stage := range []string{StageExtract, StageConsolidate, StageResolve, StageHierarchy} {
		if _, ok := s.Durations[stage]; !ok {
			t.Errorf("no duration for stage %s", stage)
		}
	}

	wall, ok := m.Tree.Node(10)
	if !ok {
		t.Fatal("wall #10 missing from the tree")
	}
	if !reflect.DeepEqual(wall.Geometry, []int{1000, 1001}) {
		t.Errorf("wall geometry = %v, want [1000 1001]", wall.Geometry)
	}
	if !m.Tree.Contains(4, 1001) {
		t.Error("storey #4 should contain geometry 1001")
	}
	if m.View == nil || m.View.Find(ifc.CategoryID("IFCWALL", 4)) == nil {
		t.Error("view lacks the wall category of storey #4")
	}

	v, ok := m.Resolver.Properties(10).Get("Pset_WallCommon", "FireRating")
	if !ok || v != "REI 60" {
		t.Errorf("FireRating = %v, %v", v, ok)
	}
}

func TestLoadWithoutGeometry(t *testing.T) {
	m := load(t, nil)
	if len(m.Meshes) != 0 || m.Summary.Meshes != 0 {
		t.Errorf("meshes without a geometry source: %d", len(m.Meshes))
	}
	if _, ok := m.Summary.Durations[StageConsolidate]; ok {
		t.Error("consolidate stage timed without a source")
	}
	if n, _ := m.Tree.Node(10); len(n.Geometry) != 0 {
		t.Errorf("geometry ids without a source: %v", n.Geometry)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", "testdata/missing.ifc", step.ErrRead},
		{"no project", "testdata/noproject.ifc", ifc.ErrNoProject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), nil, tt.path, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Load(ctx, nil, "testdata/model.ifc", testGeometry()); err == nil {
		t.Error("cancelled load succeeded")
	}
}

func decodeRows(t *testing.T, sink *store.MemorySink, table string) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for _, c := range sink.Chunks(table) {
		var part []map[string]any
		if err := json.Unmarshal(c, &part); err != nil {
			t.Fatalf("%s chunk: %v", table, err)
		}
		rows = append(rows, part...)
	}
	return rows
}

func TestExport(t *testing.T) {
	m := load(t, testGeometry())
	sink := store.NewMemorySink()

	stats, err := m.Export(context.Background(), sink, store.Options{MaxChunkBytes: 2048})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	entities := decodeRows(t, sink, TableEntities)
	if len(entities) != m.Summary.Entities || stats[TableEntities].Records != len(entities) {
		t.Errorf("entities exported = %d, want %d", len(entities), m.Summary.Entities)
	}
	if got := decodeRows(t, sink, TableRelations); len(got) != 9 {
		t.Errorf("relations exported = %d, want 9", len(got))
	}
	tree := decodeRows(t, sink, TableTree)
	if len(tree) != 10 || tree[0]["type"] != "IFCPROJECT" {
		t.Errorf("tree rows = %d, first %v", len(tree), tree[0])
	}

	var deep, inherited bool
	for _, row := range decodeRows(t, sink, TableProperties) {
		if row["expressId"] == float64(11) && row["name"] == "Outer.Inner.Deep" && row["value"] == "x" {
			deep = true
		}
		if row["expressId"] == float64(11) && row["name"] == "AcousticRating" && row["inherited"] == true {
			inherited = true
		}
		if row["name"] == "Count" && row["value"] != "3" {
			t.Errorf("integer value not stringified: %v", row["value"])
		}
	}
	if !deep {
		t.Error("nested complex property row missing")
	}
	if !inherited {
		t.Error("inherited type property row missing")
	}
	for table, st := range stats {
		if st.Chunks == 0 {
			t.Errorf("table %s reported no chunks", table)
		}
	}
}
