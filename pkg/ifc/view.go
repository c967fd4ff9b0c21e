package ifc

import "strconv"

// spatialTypes stay as direct children in the projected view.
var spatialTypes = map[string]bool{
	"IFCPROJECT":        true,
	"IFCSITE":           true,
	"IFCBUILDING":       true,
	"IFCBUILDINGSTOREY": true,
}

// ViewNode is one row of the projected tree. Category rows have no
// express id.
type ViewNode struct {
	ID        string
	ExpressID int
	Type      string
	Category  bool
	Children  []*ViewNode
}

// CategoryID returns the synthetic id of the category grouping entities
// of typ below parent.
func CategoryID(typ string, parent int) string {
	return "Category_" + typ + "_" + strconv.Itoa(parent)
}

// ProjectView projects the tree for display. Children that are not
// project, site, building or storey are grouped under one category node
// per (type, parent), inserted where the first entity of that type
// appears.
func ProjectView(t *Tree) *ViewNode {
	if t == nil || t.Root == nil {
		return nil
	}
	root := viewOf(t.Root)

	type item struct {
		n *Node
		v *ViewNode
	}
	stack := []item{{t.Root, root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		categories := make(map[string]*ViewNode)
		for _, c := range it.n.Children {
			cv := viewOf(c)
			if spatialTypes[c.Type] {
				it.v.Children = append(it.v.Children, cv)
			} else {
				cat, ok := categories[c.Type]
				if !ok {
					cat = &ViewNode{
						ID:       CategoryID(c.Type, it.n.ExpressID),
						Type:     c.Type,
						Category: true,
					}
					categories[c.Type] = cat
					it.v.Children = append(it.v.Children, cat)
				}
				cat.Children = append(cat.Children, cv)
			}
			stack = append(stack, item{c, cv})
		}
	}
	return root
}

func viewOf(n *Node) *ViewNode {
	return &ViewNode{
		ID:        strconv.Itoa(n.ExpressID),
		ExpressID: n.ExpressID,
		Type:      n.Type,
	}
}

// Find returns the view node with the given id.
func (v *ViewNode) Find(id string) *ViewNode {
	stack := []*ViewNode{v}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.ID == id {
			return n
		}
		stack = append(stack, n.Children...)
	}
	return nil
}
