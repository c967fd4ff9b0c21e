package step

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Role is what the extractor does with a record of a given type.
type Role uint8

const (
	RoleProject Role = iota + 1
	RoleSpatial
	RoleElement
	RoleTypeObject
	RoleRelation
	RolePropertySet
	RoleQuantitySet
	RoleProperty
	RoleComplexProperty
	RoleQuantity
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleProject:
		return "project"
	case RoleSpatial:
		return "spatial"
	case RoleElement:
		return "element"
	case RoleTypeObject:
		return "type"
	case RoleRelation:
		return "relation"
	case RolePropertySet:
		return "pset"
	case RoleQuantitySet:
		return "qset"
	case RoleProperty:
		return "property"
	case RoleComplexProperty:
		return "complex"
	case RoleQuantity:
		return "quantity"
	default:
		return fmt.Sprintf("Role(%d)", r)
	}
}

// IsEntity reports whether records of this role become Entity values.
func (r Role) IsEntity() bool {
	return r == RoleProject || r == RoleSpatial || r == RoleElement || r == RoleTypeObject
}

// IsValue reports whether records of this role are resolved in the second pass.
func (r Role) IsValue() bool {
	return r == RoleProperty || r == RoleComplexProperty || r == RoleQuantity
}

// Layout maps attribute positions to the fields the extractor reads.
// A slot of -1 means the attribute is absent for this type.
type Layout struct {
	// Arity is the exact attribute count, or 0 to accept any count that
	// covers every used slot.
	Arity int

	GlobalID       int
	Name           int
	Description    int
	ObjectType     int
	Tag            int
	PredefinedType int
	PropertySets   int

	Relating int
	Related  int

	Members int
	Value   int
	Unit    int
}

func emptyLayout(arity int) Layout {
	return Layout{
		Arity:          arity,
		GlobalID:       -1,
		Name:           -1,
		Description:    -1,
		ObjectType:     -1,
		Tag:            -1,
		PredefinedType: -1,
		PropertySets:   -1,
		Relating:       -1,
		Related:        -1,
		Members:        -1,
		Value:          -1,
		Unit:           -1,
	}
}

// rootLayout covers IfcRoot: GlobalId, OwnerHistory, Name, Description.
func rootLayout(arity int) Layout {
	l := emptyLayout(arity)
	l.GlobalID = 0
	l.Name = 2
	l.Description = 3
	return l
}

// objectLayout adds IfcObject.ObjectType.
func objectLayout(arity int) Layout {
	l := rootLayout(arity)
	l.ObjectType = 4
	return l
}

func (l Layout) maxSlot() int {
	m := -1
	for _, s := range []int{l.GlobalID, l.Name, l.Description, l.ObjectType, l.Tag,
		l.PredefinedType, l.PropertySets, l.Relating, l.Related, l.Members, l.Value, l.Unit} {
		if s > m {
			m = s
		}
	}
	return m
}

// fits reports whether an attribute tuple can be read with this layout.
func (l Layout) fits(vals []Value) bool {
	if l.Arity > 0 {
		return len(vals) == l.Arity
	}
	return len(vals) > l.maxSlot()
}

// Pattern is the compiled matcher for one entity type.
type Pattern struct {
	Type    string
	Role    Role
	RelKind RelKind
	Layout  Layout
	// Fallbacks cover producer deviations (mostly IFC2x3 arities) and are
	// tried only when the primary layout does not fit.
	Fallbacks []Layout

	re *regexp.Regexp
}

// Match applies the structured pattern to a record and returns the raw
// attribute text. ok is false on a pattern miss.
func (p *Pattern) Match(record string) (id int, args string, ok bool) {
	m := p.re.FindStringSubmatch(record)
	if m == nil {
		return 0, "", false
	}
	id, err := parseID(m[1])
	if err != nil {
		return 0, "", false
	}
	return id, m[2], true
}

// Select returns the first layout that fits the tuple.
func (p *Pattern) Select(vals []Value) (Layout, bool) {
	if p.Layout.fits(vals) {
		return p.Layout, true
	}
	for _, l := range p.Fallbacks {
		if l.fits(vals) {
			return l, true
		}
	}
	return Layout{}, false
}

// Vocabulary is the set of entity types of interest, each with its
// pattern, built once before extraction.
type Vocabulary struct {
	patterns map[string]*Pattern
}

// headerRe is the coarse filter applied to every record.
var headerRe = regexp.MustCompile(`^#(\d+)\s*=\s*([A-Za-z0-9_]+)\s*\(`)

// NewVocabulary returns the default vocabulary plus extra element types.
// Extra types use the generic building-element layout.
func NewVocabulary(extraElements ...string) *Vocabulary {
	v := &Vocabulary{patterns: make(map[string]*Pattern)}

	v.add("IFCPROJECT", RoleProject, 0, objectLayout(9))

	site := objectLayout(14)
	v.add("IFCSITE", RoleSpatial, 0, site, objectLayout(0))
	v.add("IFCBUILDING", RoleSpatial, 0, objectLayout(12), objectLayout(0))
	v.add("IFCBUILDINGSTOREY", RoleSpatial, 0, objectLayout(10), objectLayout(0))
	space := objectLayout(11)
	space.PredefinedType = 9
	v.add("IFCSPACE", RoleSpatial, 0, space, objectLayout(0))

	// IFC4 building elements carry PredefinedType after Tag; IFC2x3 stops at Tag.
	elem := objectLayout(9)
	elem.Tag = 7
	elem.PredefinedType = 8
	elem2x3 := objectLayout(8)
	elem2x3.Tag = 7
	for _, t := range defaultElements {
		v.add(t, RoleElement, 0, elem, elem2x3)
	}
	for _, t := range extraElements {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := v.patterns[t]; !ok {
			v.add(t, RoleElement, 0, elem, elem2x3)
		}
	}

	// Doors and windows gained PredefinedType and operation attributes in IFC4.
	opening := objectLayout(13)
	opening.Tag = 7
	opening.PredefinedType = 10
	opening2x3 := objectLayout(10)
	opening2x3.Tag = 7
	v.add("IFCDOOR", RoleElement, 0, opening, opening2x3)
	v.add("IFCWINDOW", RoleElement, 0, opening, opening2x3)

	typ := rootLayout(10)
	typ.PropertySets = 5
	typ.Tag = 7
	typ.PredefinedType = 9
	typLoose := rootLayout(0)
	typLoose.PropertySets = 5
	for _, t := range defaultTypes {
		v.add(t, RoleTypeObject, 0, typ, typLoose)
	}

	relAgg := rootLayout(6)
	relAgg.Relating = 4
	relAgg.Related = 5
	v.add("IFCRELAGGREGATES", RoleRelation, RelAggregates, relAgg)
	v.add("IFCRELNESTS", RoleRelation, RelAggregates, relAgg)

	relRev := rootLayout(6)
	relRev.Related = 4
	relRev.Relating = 5
	v.add("IFCRELCONTAINEDINSPATIALSTRUCTURE", RoleRelation, RelContained, relRev)
	v.add("IFCRELDEFINESBYTYPE", RoleRelation, RelDefinesByType, relRev)
	v.add("IFCRELDEFINESBYPROPERTIES", RoleRelation, RelDefinesByProperties, relRev)
	v.add("IFCRELASSOCIATESCLASSIFICATION", RoleRelation, RelAssociatesClassification, relRev)
	v.add("IFCRELASSOCIATESMATERIAL", RoleRelation, RelAssociatesMaterial, relRev)

	pset := rootLayout(5)
	pset.Members = 4
	v.add("IFCPROPERTYSET", RolePropertySet, 0, pset)
	qset := rootLayout(6)
	qset.Members = 5
	v.add("IFCELEMENTQUANTITY", RoleQuantitySet, 0, qset)

	single := emptyLayout(4)
	single.Name = 0
	single.Description = 1
	single.Value = 2
	single.Unit = 3
	v.add("IFCPROPERTYSINGLEVALUE", RoleProperty, 0, single)
	v.add("IFCPROPERTYENUMERATEDVALUE", RoleProperty, 0, single)
	v.add("IFCPROPERTYLISTVALUE", RoleProperty, 0, single)

	complexProp := emptyLayout(4)
	complexProp.Name = 0
	complexProp.Description = 1
	complexProp.Members = 3
	v.add("IFCCOMPLEXPROPERTY", RoleComplexProperty, 0, complexProp)

	// IFC4 added Formula after the quantity value.
	qty := emptyLayout(5)
	qty.Name = 0
	qty.Description = 1
	qty.Unit = 2
	qty.Value = 3
	qty2x3 := qty
	qty2x3.Arity = 4
	for _, t := range []string{"IFCQUANTITYLENGTH", "IFCQUANTITYAREA", "IFCQUANTITYVOLUME",
		"IFCQUANTITYCOUNT", "IFCQUANTITYWEIGHT", "IFCQUANTITYTIME"} {
		v.add(t, RoleQuantity, 0, qty, qty2x3)
	}

	return v
}

func (v *Vocabulary) add(typ string, role Role, kind RelKind, primary Layout, fallbacks ...Layout) {
	v.patterns[typ] = &Pattern{
		Type:      typ,
		Role:      role,
		RelKind:   kind,
		Layout:    primary,
		Fallbacks: fallbacks,
		re:        regexp.MustCompile(`(?is)^#(\d+)\s*=\s*` + typ + `\s*\((.*)\)\s*$`),
	}
}

// Lookup finds the pattern for a type name, case-insensitively.
func (v *Vocabulary) Lookup(typ string) (*Pattern, bool) {
	p, ok := v.patterns[strings.ToUpper(typ)]
	return p, ok
}

// Types returns the registered type names, sorted.
func (v *Vocabulary) Types() []string {
	out := make([]string, 0, len(v.patterns))
	for t := range v.patterns {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Classify applies the coarse filter: it extracts the id and type of a
// record and looks the type up. ok is false for records outside the
// vocabulary or without a simple header.
func (v *Vocabulary) Classify(record string) (id int, p *Pattern, ok bool) {
	m := headerRe.FindStringSubmatch(record)
	if m == nil {
		return 0, nil, false
	}
	p, ok = v.Lookup(m[2])
	if !ok {
		return 0, nil, false
	}
	id, err := parseID(m[1])
	if err != nil {
		return 0, nil, false
	}
	return id, p, true
}

var defaultElements = []string{
	"IFCWALL", "IFCWALLSTANDARDCASE", "IFCWALLELEMENTEDCASE", "IFCCURTAINWALL",
	"IFCSLAB", "IFCSLABSTANDARDCASE", "IFCROOF", "IFCBEAM", "IFCBEAMSTANDARDCASE",
	"IFCCOLUMN", "IFCCOLUMNSTANDARDCASE", "IFCMEMBER", "IFCMEMBERSTANDARDCASE",
	"IFCPLATE", "IFCPLATESTANDARDCASE", "IFCRAILING", "IFCSTAIR", "IFCSTAIRFLIGHT",
	"IFCRAMP", "IFCRAMPFLIGHT", "IFCCOVERING", "IFCFOOTING", "IFCPILE",
	"IFCBUILDINGELEMENTPROXY", "IFCBUILDINGELEMENTPART", "IFCCHIMNEY", "IFCSHADINGDEVICE",
	"IFCFURNISHINGELEMENT", "IFCFURNITURE", "IFCSYSTEMFURNITUREELEMENT",
	"IFCOPENINGELEMENT", "IFCDISTRIBUTIONELEMENT", "IFCDISTRIBUTIONCONTROLELEMENT",
	"IFCFLOWTERMINAL", "IFCFLOWSEGMENT", "IFCFLOWFITTING", "IFCFLOWCONTROLLER",
	"IFCFLOWMOVINGDEVICE", "IFCFLOWSTORAGEDEVICE", "IFCFLOWTREATMENTDEVICE",
	"IFCENERGYCONVERSIONDEVICE", "IFCPIPESEGMENT", "IFCPIPEFITTING", "IFCDUCTSEGMENT",
	"IFCDUCTFITTING", "IFCAIRTERMINAL", "IFCLIGHTFIXTURE", "IFCSANITARYTERMINAL",
	"IFCELEMENTASSEMBLY", "IFCDISCRETEACCESSORY", "IFCMECHANICALFASTENER",
	"IFCREINFORCINGBAR", "IFCREINFORCINGMESH", "IFCTRANSPORTELEMENT", "IFCGEOGRAPHICELEMENT",
	"IFCVIRTUALELEMENT", "IFCANNOTATION",
}

var defaultTypes = []string{
	"IFCWALLTYPE", "IFCSLABTYPE", "IFCBEAMTYPE", "IFCCOLUMNTYPE", "IFCMEMBERTYPE",
	"IFCPLATETYPE", "IFCRAILINGTYPE", "IFCSTAIRFLIGHTTYPE", "IFCCOVERINGTYPE",
	"IFCCURTAINWALLTYPE", "IFCDOORTYPE", "IFCWINDOWTYPE", "IFCDOORSTYLE", "IFCWINDOWSTYLE",
	"IFCFURNITURETYPE", "IFCFURNISHINGELEMENTTYPE", "IFCBUILDINGELEMENTPROXYTYPE",
	"IFCFOOTINGTYPE", "IFCPILETYPE", "IFCROOFTYPE", "IFCSPACETYPE",
	"IFCPIPESEGMENTTYPE", "IFCPIPEFITTINGTYPE", "IFCDUCTSEGMENTTYPE", "IFCDUCTFITTINGTYPE",
	"IFCAIRTERMINALTYPE", "IFCLIGHTFIXTURETYPE", "IFCSANITARYTERMINALTYPE",
}
