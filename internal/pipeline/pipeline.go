// Package pipeline wires extraction, property resolution, the spatial
// tree and geometry consolidation into one load of an IFC model.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/ifckit/internal/config"
	"github.com/Faultbox/ifckit/internal/engine/geometry"
	"github.com/Faultbox/ifckit/internal/logger"
	"github.com/Faultbox/ifckit/internal/metrics"
	"github.com/Faultbox/ifckit/pkg/ifc"
	"github.com/Faultbox/ifckit/pkg/step"
)

// Stage names used for timing.
const (
	StageExtract     = "extract"
	StageConsolidate = "consolidate"
	StageResolve     = "resolve"
	StageHierarchy   = "hierarchy"
	StageExport      = "export"
)

// Summary reports what one load produced.
type Summary struct {
	Path           string
	Entities       int
	Relations      int
	PropertySets   int
	Properties     int
	PatternMisses  int
	DecodeFailures int
	Unresolved     int
	Dangling       map[ifc.Bucket]int
	TreeNodes      int
	DroppedEdges   int
	Meshes         int
	SubMeshes      int
	Durations      map[string]time.Duration
}

// Model is a loaded IFC file.
type Model struct {
	Tables   *step.Tables
	Resolver *ifc.Resolver
	Tree     *ifc.Tree
	View     *ifc.ViewNode
	Meshes   []*geometry.MergedMesh
	Engine   *geometry.Engine
	Summary  Summary

	log *zap.Logger
}

// Load extracts path and, when geom is not nil, consolidates its geometry
// concurrently. The spatial tree is built once both are done so element
// nodes carry their geometry ids.
func Load(ctx context.Context, cfg *config.Config, path string, geom geometry.Source) (*Model, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	log := logger.Named("pipeline")
	sum := Summary{Path: path, Durations: make(map[string]time.Duration)}
	engine := geometry.NewEngine(cfg.GeometryOptions(logger.Log))

	var (
		tables *step.Tables
		xstats step.Stats
		meshes []*geometry.MergedMesh

		extractTime, consolidateTime time.Duration
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		timer := metrics.NewTimer(StageExtract)
		res := <-step.ExtractAsync(gctx, path, cfg.StepOptions(logger.Log))
		if res.Err != nil {
			return fmt.Errorf("extracting %s: %w", path, res.Err)
		}
		tables, xstats = res.Tables, res.Stats
		extractTime = timer.Stop()
		return nil
	})
	if geom != nil {
		g.Go(func() error {
			timer := metrics.NewTimer(StageConsolidate)
			m, err := engine.Consolidate(gctx, geom)
			if err != nil {
				return err
			}
			meshes = m
			consolidateTime = timer.Stop()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		engine.Close()
		return nil, err
	}

	sum.Durations[StageExtract] = extractTime
	if geom != nil {
		sum.Durations[StageConsolidate] = consolidateTime
	}
	recordExtraction(tables, xstats)

	timer := metrics.NewTimer(StageResolve)
	resolver := ifc.NewResolver(tables)
	resolver.ResolveAll()
	diag := resolver.Diagnostics()
	sum.Durations[StageResolve] = timer.Stop()

	counts := diag.Counts()
	dangling := make(map[string]int, len(counts))
	for b, n := range counts {
		dangling[string(b)] = n
	}
	metrics.RecordDangling(dangling)

	timer = metrics.NewTimer(StageHierarchy)
	tree, err := ifc.NewTree(tables, engine.GeometryIDs())
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("building spatial tree of %s: %w", path, err)
	}
	view := ifc.ProjectView(tree)
	sum.Durations[StageHierarchy] = timer.Stop()

	sum.Entities = len(tables.Entities)
	sum.Relations = len(tables.Relations)
	sum.PropertySets = len(tables.PropertySets)
	sum.Properties = len(tables.Properties)
	sum.PatternMisses = tables.Diagnostics.PatternMisses
	sum.DecodeFailures = tables.Diagnostics.DecodeFailures
	sum.Unresolved = len(tables.Diagnostics.Unresolved)
	sum.Dangling = counts
	sum.TreeNodes = tree.Len()
	sum.DroppedEdges = len(tree.Dropped)
	sum.Meshes = len(meshes)
	for _, m := range meshes {
		sum.SubMeshes += len(m.SubMeshes())
	}

	log.Info("model loaded",
		zap.String("path", path),
		zap.Int("entities", sum.Entities),
		zap.Int("relations", sum.Relations),
		zap.Int("propertySets", sum.PropertySets),
		zap.Int("properties", sum.Properties),
		zap.Int("treeNodes", sum.TreeNodes),
		zap.Int("meshes", sum.Meshes),
		zap.Duration("extract", sum.Durations[StageExtract]))
	if total := diag.Total(); total > 0 {
		log.Warn("dangling references",
			zap.Int("total", total),
			zap.Int(string(ifc.NoPropertyRelation), counts[ifc.NoPropertyRelation]),
			zap.Int(string(ifc.MissingPropertySet), counts[ifc.MissingPropertySet]),
			zap.Int(string(ifc.MissingValue), counts[ifc.MissingValue]),
			zap.Int(string(ifc.Cycles), counts[ifc.Cycles]))
	}
	if sum.PatternMisses > 0 {
		log.Warn("records did not match their pattern",
			zap.Int("misses", sum.PatternMisses),
			zap.Strings("samples", tables.Diagnostics.MissSamples))
	}
	if sum.DroppedEdges > 0 {
		log.Debug("containment edges dropped", zap.Int("edges", sum.DroppedEdges))
	}

	return &Model{
		Tables:   tables,
		Resolver: resolver,
		Tree:     tree,
		View:     view,
		Meshes:   meshes,
		Engine:   engine,
		Summary:  sum,
		log:      log,
	}, nil
}

// Close stops the geometry engine's batcher.
func (m *Model) Close() {
	m.Engine.Close()
}

func recordExtraction(t *step.Tables, st step.Stats) {
	metrics.RecordExtraction(map[string]int{
		"entities":      len(t.Entities),
		"relations":     len(t.Relations),
		"property_sets": len(t.PropertySets),
		"properties":    len(t.Properties),
	}, t.Diagnostics.MissesByType, t.Diagnostics.DecodeFailures, st.Bytes)
}
