package ifc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/Faultbox/ifckit/pkg/step"
)

var (
	// ErrNoProject is returned when the tables contain no IFCPROJECT.
	ErrNoProject = errors.New("no IFCPROJECT entity")
	// ErrMultipleProjects is returned when more than one IFCPROJECT exists.
	ErrMultipleProjects = errors.New("multiple IFCPROJECT entities")
	// ErrUnknownRoot is returned when the root id has no type.
	ErrUnknownRoot = errors.New("unknown root entity")
)

// FindProject returns the express id of the single IFCPROJECT.
func FindProject(t *step.Tables) (int, error) {
	projects := t.OfType("IFCPROJECT")
	switch len(projects) {
	case 0:
		return 0, ErrNoProject
	case 1:
		return projects[0].ExpressID, nil
	default:
		return 0, fmt.Errorf("%w: #%d and #%d", ErrMultipleProjects,
			projects[0].ExpressID, projects[1].ExpressID)
	}
}

// TypeLookup resolves the entity type of an express id. *step.Tables
// implements it. Implementations that also provide
// GlobalIDOf(int) string fill Node.GlobalID.
type TypeLookup interface {
	TypeOf(id int) string
}

type globalIDLookup interface {
	GlobalIDOf(id int) string
}

// Node is one spatial node. Closure holds every descendant node id and
// every geometry id below and at the node, sorted. It is nil for the root.
type Node struct {
	ExpressID    int
	Type         string
	GlobalID     string
	ParentID     int
	Children     []*Node
	Closure      []int
	Geometry     []int
	PersistentID string
}

// Edge is a parent/child pair dropped while building the tree.
type Edge struct {
	Parent int
	Child  int
}

// Tree is a rooted containment tree.
type Tree struct {
	Root *Node
	// Dropped lists edges to nodes that already had a parent, including
	// edges that would close a cycle. The first parent wins.
	Dropped []Edge

	nodes    map[int]*Node
	geometry map[int]int
}

// Node returns the node with the given express id.
func (t *Tree) Node(id int) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Contains reports whether id (a node or geometry id) lies below ancestor.
func (t *Tree) Contains(ancestor, id int) bool {
	a, ok := t.nodes[ancestor]
	if !ok || ancestor == id {
		return false
	}
	if a == t.Root {
		if _, ok := t.nodes[id]; ok {
			return true
		}
		_, ok := t.geometry[id]
		return ok
	}
	i := sort.SearchInts(a.Closure, id)
	return i < len(a.Closure) && a.Closure[i] == id
}

// Walk visits nodes depth-first in pre-order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	type item struct {
		n     *Node
		depth int
	}
	stack := []item{{t.Root, 0}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(it.n, it.depth) {
			continue
		}
		for i := len(it.n.Children) - 1; i >= 0; i-- {
			stack = append(stack, item{it.n.Children[i], it.depth + 1})
		}
	}
}

// BuildHierarchy builds the containment tree below rootID. Children come
// from aggregation edges first, then containment edges. geometry maps an
// express id to the geometry ids it owns and may be nil.
//
// Traversal is an iterative post-order DFS, so depth is bounded by the
// heap rather than the goroutine stack.
func BuildHierarchy(rootID int, aggregation, containment, geometry map[int][]int, types TypeLookup) (*Tree, error) {
	typ := types.TypeOf(rootID)
	if typ == "" {
		return nil, fmt.Errorf("%w: #%d", ErrUnknownRoot, rootID)
	}
	guids, _ := types.(globalIDLookup)

	t := &Tree{
		nodes:    make(map[int]*Node),
		geometry: make(map[int]int),
	}
	newNode := func(id, parent int) *Node {
		n := &Node{ExpressID: id, Type: types.TypeOf(id), ParentID: parent}
		if guids != nil {
			n.GlobalID = guids.GlobalIDOf(id)
		}
		if g := geometry[id]; len(g) > 0 {
			n.Geometry = append([]int(nil), g...)
			for _, gid := range g {
				if _, ok := t.geometry[gid]; !ok {
					t.geometry[gid] = id
				}
			}
		}
		t.nodes[id] = n
		return n
	}

	type frame struct {
		node *Node
		kids []int
		next int
	}
	t.Root = newNode(rootID, 0)
	stack := []*frame{{node: t.Root, kids: childIDs(rootID, aggregation, containment)}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		if f.next < len(f.kids) {
			cid := f.kids[f.next]
			f.next++
			if existing, ok := t.nodes[cid]; ok {
				if existing.ParentID != f.node.ExpressID {
					t.Dropped = append(t.Dropped, Edge{Parent: f.node.ExpressID, Child: cid})
				}
				continue
			}
			child := newNode(cid, f.node.ExpressID)
			f.node.Children = append(f.node.Children, child)
			stack = append(stack, &frame{node: child, kids: childIDs(cid, aggregation, containment)})
			continue
		}

		f.node.Closure = closure(f.node)
		f.node.PersistentID = persistentID(f.node.Type, f.node.Closure)
		stack = stack[:len(stack)-1]
	}

	t.Root.Closure = nil
	return t, nil
}

func childIDs(id int, aggregation, containment map[int][]int) []int {
	agg, cont := aggregation[id], containment[id]
	if len(cont) == 0 {
		return agg
	}
	out := make([]int, 0, len(agg)+len(cont))
	out = append(out, agg...)
	return append(out, cont...)
}

func closure(n *Node) []int {
	set := make(map[int]struct{})
	for _, c := range n.Children {
		set[c.ExpressID] = struct{}{}
		for _, id := range c.Closure {
			set[id] = struct{}{}
		}
	}
	for _, g := range n.Geometry {
		set[g] = struct{}{}
	}
	if len(set) == 0 {
		return []int{}
	}
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// persistentID hashes the node type and its sorted closure, so an
// unchanged subtree gets the same id on every parse.
func persistentID(typ string, closure []int) string {
	var b strings.Builder
	b.Grow(len(typ) + 1 + len(closure)*6)
	b.WriteString(typ)
	b.WriteByte('|')
	for i, id := range closure {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}

// NewTree builds the tree of the single project in t from its aggregation
// and containment relations.
func NewTree(t *step.Tables, geometry map[int][]int) (*Tree, error) {
	root, err := FindProject(t)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(root, t.Edges(step.RelAggregates), t.Edges(step.RelContained), geometry, t)
}
