package step

import (
	"strconv"
	"strings"
)

// Kind identifies the decoded type of an attribute value.
type Kind uint8

const (
	KindNull Kind = iota
	KindDerived
	KindString
	// KindNumber is a real, normalized to float64.
	KindNumber
	KindInteger
	// KindBoolean covers .T., .F. and the unknown .U.
	KindBoolean
	// KindDate holds IFCDATE, IFCDATETIME, IFCTIME and IFCTIMESTAMP payloads.
	KindDate
	KindEnum
	KindRef
	KindList
	// KindRaw is a token kept verbatim because it could not be decoded.
	KindRaw
)

var kindNames = [...]string{
	KindNull:    "null",
	KindDerived: "derived",
	KindString:  "string",
	KindNumber:  "number",
	KindInteger: "integer",
	KindBoolean: "boolean",
	KindDate:    "date",
	KindEnum:    "enum",
	KindRef:     "ref",
	KindList:    "list",
	KindRaw:     "raw",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Logical is the STEP tri-state boolean.
type Logical uint8

const (
	False Logical = iota
	True
	Unknown
)

// String returns the STEP token for the logical value.
func (l Logical) String() string {
	switch l {
	case True:
		return ".T."
	case False:
		return ".F."
	default:
		return ".U."
	}
}

// Value is one decoded attribute of a STEP record.
type Value struct {
	Kind Kind
	// TypeName holds the wrapper of a typed value, e.g. IFCLABEL.
	TypeName string
	Str      string
	Num      float64
	Int      int64
	Bool     Logical
	Ref      int
	List     []Value
}

// Null is the $ value.
var Null = Value{Kind: KindNull}

// IsNull reports whether the value is $ or *.
func (v Value) IsNull() bool {
	return v.Kind == KindNull || v.Kind == KindDerived
}

// Text returns the textual payload of string-like values.
func (v Value) Text() (string, bool) {
	switch v.Kind {
	case KindString, KindDate, KindEnum, KindRaw:
		return v.Str, true
	}
	return "", false
}

// Refs returns the entity references held by the value. A single
// reference yields one id; lists yield every reference they contain.
func (v Value) Refs() []int {
	switch v.Kind {
	case KindRef:
		return []int{v.Ref}
	case KindList:
		ids := make([]int, 0, len(v.List))
		for _, item := range v.List {
			if item.Kind == KindRef {
				ids = append(ids, item.Ref)
			}
		}
		return ids
	}
	return nil
}

// Interface converts the value to a plain Go value for property bags and
// JSON output. Numbers become float64, integers int64, booleans bool (or
// nil for unknown) and lists []any.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNull, KindDerived:
		return nil
	case KindString, KindDate, KindEnum, KindRaw:
		return v.Str
	case KindNumber:
		return v.Num
	case KindInteger:
		return v.Int
	case KindBoolean:
		switch v.Bool {
		case True:
			return true
		case False:
			return false
		}
		return nil
	case KindRef:
		return v.Ref
	case KindList:
		out := make([]any, len(v.List))
		for i, item := range v.List {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// String renders the value for display. Reals are printed in plain
// decimal notation.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "$"
	case KindDerived:
		return "*"
	case KindString, KindDate, KindEnum, KindRaw:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindBoolean:
		switch v.Bool {
		case True:
			return "true"
		case False:
			return "false"
		}
		return "unknown"
	case KindRef:
		return "#" + strconv.Itoa(v.Ref)
	case KindList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = item.String()
		}
		return "(" + strings.Join(parts, ",") + ")"
	}
	return ""
}
