package step

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/ifckit/pkg/guid"
)

// Phase is the state of an Extractor.
type Phase uint8

const (
	// PhaseIdle is the state before Run.
	PhaseIdle Phase = iota
	// PhaseIndex is the first pass: entity headers, relationships,
	// property-set membership.
	PhaseIndex
	// PhaseResolve is the second pass: values referenced by the index.
	PhaseResolve
	// PhaseDone is reached after a successful Run.
	PhaseDone
	// PhaseFailed is reached when Run returns an error.
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseIndex:
		return "index"
	case PhaseResolve:
		return "resolve"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", p)
	}
}

// Options configures extraction.
type Options struct {
	// ChunkSize is the read size in bytes (DefaultChunkSize if <= 0).
	ChunkSize int
	// ExtraTypes adds element types to the default vocabulary.
	ExtraTypes []string
	// Vocabulary overrides the vocabulary built from ExtraTypes.
	Vocabulary *Vocabulary
	// Logger receives pattern-miss and phase logs. Nil disables logging.
	Logger *zap.Logger
}

// MembershipIndex is the immutable handoff from the index phase to the
// resolve phase: the ids of every value line some set refers to.
type MembershipIndex struct {
	ids map[int]struct{}
}

// Len returns the number of referenced ids.
func (m MembershipIndex) Len() int { return len(m.ids) }

// Has reports whether id is referenced.
func (m MembershipIndex) Has(id int) bool {
	_, ok := m.ids[id]
	return ok
}

// IDs returns the referenced ids, sorted.
func (m MembershipIndex) IDs() []int {
	out := make([]int, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// working returns a mutable copy for the resolve phase to drain.
func (m MembershipIndex) working() map[int]struct{} {
	w := make(map[int]struct{}, len(m.ids))
	for id := range m.ids {
		w[id] = struct{}{}
	}
	return w
}

// Stats summarizes one Run.
type Stats struct {
	Records      int
	Chunks       int
	Bytes        int64
	IndexSize    int
	ResolveEarly bool
	ResolveReads int
}

// Extractor runs the two-pass extraction. An Extractor is single-use.
type Extractor struct {
	opts  Options
	vocab *Vocabulary
	log   *zap.Logger

	phase  Phase
	tables *Tables
	index  MembershipIndex
	stats  Stats
}

// NewExtractor creates an extractor.
func NewExtractor(opts Options) *Extractor {
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = NewVocabulary(opts.ExtraTypes...)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		opts:   opts,
		vocab:  vocab,
		log:    log.Named("step"),
		phase:  PhaseIdle,
		tables: NewTables(),
	}
}

// Phase returns the current phase.
func (e *Extractor) Phase() Phase { return e.phase }

// Index returns the membership index produced by the index phase.
func (e *Extractor) Index() MembershipIndex { return e.index }

// Stats returns counters for the last Run.
func (e *Extractor) Stats() Stats { return e.stats }

// Run performs both passes over rs. The stream is rewound between passes.
func (e *Extractor) Run(ctx context.Context, rs io.ReadSeeker) (*Tables, error) {
	if e.phase != PhaseIdle {
		return nil, fmt.Errorf("extractor already used (phase %s)", e.phase)
	}

	e.phase = PhaseIndex
	index, err := e.runIndex(ctx, rs)
	if err != nil {
		e.phase = PhaseFailed
		return nil, err
	}
	e.index = index
	e.log.Debug("index phase complete",
		zap.Int("entities", len(e.tables.Entities)),
		zap.Int("relations", len(e.tables.Relations)),
		zap.Int("propertySets", len(e.tables.PropertySets)),
		zap.Int("referencedValues", index.Len()))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		e.phase = PhaseFailed
		return nil, fmt.Errorf("%w: rewinding for second pass: %w", ErrRead, err)
	}

	e.phase = PhaseResolve
	if err := e.runResolve(ctx, rs, index); err != nil {
		e.phase = PhaseFailed
		return nil, err
	}

	e.phase = PhaseDone
	return e.tables, nil
}

// runIndex is pass 1.
func (e *Extractor) runIndex(ctx context.Context, r io.Reader) (MembershipIndex, error) {
	ids := make(map[int]struct{})
	rr := NewRecordReader(ctx, r, e.opts.ChunkSize)

	for {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return MembershipIndex{}, err
		}
		e.stats.Records++

		id, p, ok := e.vocab.Classify(rec)
		if !ok || (p.Role.IsValue() && p.Role != RoleComplexProperty) {
			continue
		}

		vals, layout, ok := e.match(p, rec)
		if !ok {
			continue
		}

		switch {
		case p.Role.IsEntity():
			e.tables.Entities[id] = buildEntity(id, p, layout, vals)

		case p.Role == RoleRelation:
			rel, ok := buildRelation(id, p, layout, vals)
			if !ok {
				e.tables.Diagnostics.miss(p.Type, rec)
				continue
			}
			e.tables.addRelation(rel)

		case p.Role == RolePropertySet || p.Role == RoleQuantitySet:
			ps := buildPropertySet(id, p, layout, vals)
			e.tables.PropertySets[id] = ps
			for _, m := range ps.Members {
				ids[m] = struct{}{}
			}

		case p.Role == RoleComplexProperty:
			// Nested members may precede their parent in the file, so they
			// join the index whether or not the parent is referenced.
			for _, m := range attr(vals, layout.Members).Refs() {
				ids[m] = struct{}{}
			}
		}
	}

	e.stats.Chunks = rr.Chunks()
	e.stats.Bytes = rr.BytesRead()
	e.stats.IndexSize = len(ids)
	return MembershipIndex{ids: ids}, nil
}

// runResolve is pass 2. It drains a working copy of the index and stops
// reading once every referenced id has been found.
func (e *Extractor) runResolve(ctx context.Context, r io.Reader, index MembershipIndex) error {
	pending := index.working()
	rr := NewRecordReader(ctx, r, e.opts.ChunkSize)

	for len(pending) > 0 {
		rec, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		e.stats.ResolveReads++

		id, ok := recordID(rec)
		if !ok {
			continue
		}
		if _, want := pending[id]; !want {
			continue
		}

		_, p, ok := e.vocab.Classify(rec)
		if !ok || !p.Role.IsValue() {
			continue
		}
		vals, layout, ok := e.match(p, rec)
		if !ok {
			continue
		}
		e.tables.Properties[id] = buildProperty(id, p, layout, vals)
		delete(pending, id)
	}

	e.stats.ResolveEarly = len(pending) == 0 && index.Len() > 0
	if len(pending) > 0 {
		unresolved := make([]int, 0, len(pending))
		for id := range pending {
			unresolved = append(unresolved, id)
		}
		sort.Ints(unresolved)
		e.tables.Diagnostics.Unresolved = unresolved
	}
	return nil
}

// match runs the structured pattern and layout selection, recording a
// pattern miss on failure.
func (e *Extractor) match(p *Pattern, rec string) ([]Value, Layout, bool) {
	_, args, ok := p.Match(rec)
	if !ok {
		e.tables.Diagnostics.miss(p.Type, rec)
		e.log.Debug("pattern miss", zap.String("type", p.Type), zap.String("record", truncate(rec)))
		return nil, Layout{}, false
	}
	vals, failures := ParseAttributes(args)
	e.tables.Diagnostics.DecodeFailures += failures

	layout, ok := p.Select(vals)
	if !ok {
		e.tables.Diagnostics.miss(p.Type, rec)
		e.log.Debug("no layout fits", zap.String("type", p.Type), zap.Int("arity", len(vals)))
		return nil, Layout{}, false
	}
	return vals, layout, true
}

func attr(vals []Value, slot int) Value {
	if slot < 0 || slot >= len(vals) {
		return Null
	}
	return vals[slot]
}

func buildEntity(id int, p *Pattern, l Layout, vals []Value) *Entity {
	e := &Entity{
		ExpressID:      id,
		Type:           p.Type,
		Role:           p.Role,
		Name:           textOf(attr(vals, l.Name)),
		Description:    textOf(attr(vals, l.Description)),
		ObjectType:     textOf(attr(vals, l.ObjectType)),
		Tag:            textOf(attr(vals, l.Tag)),
		PredefinedType: textOf(attr(vals, l.PredefinedType)),
		PropertySets:   attr(vals, l.PropertySets).Refs(),
		Attributes:     vals,
	}
	if g, ok := attr(vals, l.GlobalID).Text(); ok {
		e.GlobalID = g
		e.GUID = guid.Expand(g)
	}
	return e
}

func buildRelation(id int, p *Pattern, l Layout, vals []Value) (*Relation, bool) {
	relating := attr(vals, l.Relating)
	if relating.Kind != KindRef {
		return nil, false
	}
	return &Relation{
		ID:       id,
		Type:     p.Type,
		Kind:     p.RelKind,
		Relating: relating.Ref,
		Related:  attr(vals, l.Related).Refs(),
	}, true
}

func buildPropertySet(id int, p *Pattern, l Layout, vals []Value) *PropertySet {
	kind := SetProperties
	if p.Role == RoleQuantitySet {
		kind = SetQuantities
	}
	return &PropertySet{
		ID:      id,
		Type:    p.Type,
		Kind:    kind,
		Name:    textOf(attr(vals, l.Name)).Value,
		Members: attr(vals, l.Members).Refs(),
	}
}

func buildProperty(id int, p *Pattern, l Layout, vals []Value) *Property {
	prop := &Property{
		ID:          id,
		Type:        p.Type,
		Name:        textOf(attr(vals, l.Name)).Value,
		Description: textOf(attr(vals, l.Description)),
		Value:       attr(vals, l.Value),
	}
	if u := attr(vals, l.Unit); u.Kind == KindRef {
		prop.Unit = u.Ref
	}
	if p.Role == RoleComplexProperty {
		prop.Children = attr(vals, l.Members).Refs()
	}
	return prop
}

// recordID reads the #id prefix without running any regexp.
func recordID(rec string) (int, bool) {
	if len(rec) < 2 || rec[0] != '#' {
		return 0, false
	}
	n, i := 0, 1
	for i < len(rec) && isDigit(rec[i]) {
		n = n*10 + int(rec[i]-'0')
		i++
	}
	return n, i > 1
}

func truncate(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

// Extract runs a fresh Extractor over rs.
func Extract(ctx context.Context, rs io.ReadSeeker, opts Options) (*Tables, error) {
	return NewExtractor(opts).Run(ctx, rs)
}

// ExtractFile opens path and extracts it.
func ExtractFile(ctx context.Context, path string, opts Options) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}
	defer f.Close()
	return Extract(ctx, f, opts)
}

// Result is what an asynchronous extraction delivers.
type Result struct {
	Tables *Tables
	Stats  Stats
	Err    error
}

// ExtractAsync runs extraction of path on its own goroutine. The worker
// opens its own file handle and hands back a cloned result over the
// channel, so no mutable state is shared with the caller. The channel
// receives exactly one Result and is then closed.
func ExtractAsync(ctx context.Context, path string, opts Options) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- Result{Err: fmt.Errorf("%w: %v", ErrWorker, r)}
			}
		}()

		f, err := os.Open(path)
		if err != nil {
			out <- Result{Err: fmt.Errorf("%w: %w", ErrRead, err)}
			return
		}
		defer f.Close()

		ex := NewExtractor(opts)
		tables, err := ex.Run(ctx, f)
		if err != nil {
			out <- Result{Err: err}
			return
		}
		out <- Result{Tables: tables.Clone(), Stats: ex.Stats()}
	}()
	return out
}
