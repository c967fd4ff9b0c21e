package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/internal/metrics"
	"github.com/Faultbox/ifckit/internal/store"
	"github.com/Faultbox/ifckit/pkg/ifc"
	"github.com/Faultbox/ifckit/pkg/step"
)

// Export table names.
const (
	TableEntities   = "entities"
	TableRelations  = "relations"
	TableProperties = "properties"
	TableTree       = "tree"
)

type entityRecord struct {
	ExpressID      int       `json:"expressId"`
	Type           string    `json:"type"`
	GlobalID       string    `json:"globalId,omitempty"`
	GUID           string    `json:"guid,omitempty"`
	Name           step.Text `json:"name"`
	Description    step.Text `json:"description"`
	ObjectType     step.Text `json:"objectType"`
	Tag            step.Text `json:"tag"`
	PredefinedType step.Text `json:"predefinedType"`
}

type relationRecord struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Kind     string `json:"kind"`
	Relating int    `json:"relating"`
	Related  []int  `json:"related"`
}

type propertyRecord struct {
	ExpressID int    `json:"expressId"`
	Set       string `json:"set"`
	Name      string `json:"name"`
	ValueType string `json:"valueType,omitempty"`
	Value     any    `json:"value"`
	Inherited bool   `json:"inherited,omitempty"`
}

type treeRecord struct {
	ExpressID    int    `json:"expressId"`
	Type         string `json:"type"`
	Parent       int    `json:"parent,omitempty"`
	Depth        int    `json:"depth"`
	PersistentID string `json:"persistentId"`
	Geometry     []int  `json:"geometry,omitempty"`
}

// Export writes entities, relations, flattened properties and the spatial
// tree through a chunk writer in front of sink. It returns per-table
// counters.
func (m *Model) Export(ctx context.Context, sink store.Sink, opts store.Options) (map[string]store.TableStats, error) {
	timer := metrics.NewTimer(StageExport)
	if opts.Logger == nil {
		opts.Logger = m.log
	}
	w := store.NewChunkWriter(sink, opts)

	for _, id := range m.Tables.EntityIDs() {
		e := m.Tables.Entities[id]
		rec := entityRecord{
			ExpressID:      e.ExpressID,
			Type:           e.Type,
			GlobalID:       e.GlobalID,
			Name:           e.Name,
			Description:    e.Description,
			ObjectType:     e.ObjectType,
			Tag:            e.Tag,
			PredefinedType: e.PredefinedType,
		}
		if e.GUID != uuid.Nil {
			rec.GUID = e.GUID.String()
		}
		if err := w.Write(ctx, TableEntities, rec); err != nil {
			return nil, err
		}
		if err := m.exportProperties(ctx, w, id); err != nil {
			return nil, err
		}
	}

	for _, kind := range []step.RelKind{
		step.RelAggregates, step.RelContained, step.RelDefinesByType,
		step.RelDefinesByProperties, step.RelAssociatesClassification, step.RelAssociatesMaterial,
	} {
		for _, r := range m.Tables.RelationsOf(kind) {
			rec := relationRecord{ID: r.ID, Type: r.Type, Kind: kind.String(), Relating: r.Relating, Related: r.Related}
			if err := w.Write(ctx, TableRelations, rec); err != nil {
				return nil, err
			}
		}
	}

	var werr error
	m.Tree.Walk(func(n *ifc.Node, depth int) bool {
		if werr != nil {
			return false
		}
		werr = w.Write(ctx, TableTree, treeRecord{
			ExpressID:    n.ExpressID,
			Type:         n.Type,
			Parent:       n.ParentID,
			Depth:        depth,
			PersistentID: n.PersistentID,
			Geometry:     n.Geometry,
		})
		return werr == nil
	})
	if werr != nil {
		return nil, werr
	}

	if err := w.Flush(ctx); err != nil {
		return nil, err
	}
	stats := w.Stats()
	d := timer.Stop()

	fields := []zap.Field{zap.Duration("elapsed", d)}
	for _, t := range []string{TableEntities, TableRelations, TableProperties, TableTree} {
		fields = append(fields, zap.Int(t, stats[t].Records))
	}
	m.log.Info("model exported", fields...)
	return stats, nil
}

func (m *Model) exportProperties(ctx context.Context, w *store.ChunkWriter, id int) error {
	bag := m.Resolver.Properties(id)
	if bag == nil {
		return nil
	}
	for _, s := range bag.Sets {
		for _, p := range s.Properties {
			if err := writeProperty(ctx, w, id, s, p.Name, p); err != nil {
				return fmt.Errorf("exporting properties of #%d: %w", id, err)
			}
		}
	}
	return nil
}

// writeProperty writes one row per leaf; nested names are dotted.
func writeProperty(ctx context.Context, w *store.ChunkWriter, id int, s ifc.PropertySet, name string, p ifc.Property) error {
	if p.Type == "IFCCOMPLEXPROPERTY" {
		for _, c := range p.Children {
			if err := writeProperty(ctx, w, id, s, name+"."+c.Name, c); err != nil {
				return err
			}
		}
		return nil
	}
	return w.Write(ctx, TableProperties, propertyRecord{
		ExpressID: id,
		Set:       s.Name,
		Name:      name,
		ValueType: p.Raw.TypeName,
		Value:     store.Stringify(p.Value),
		Inherited: s.Inherited,
	})
}
