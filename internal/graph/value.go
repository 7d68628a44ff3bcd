package graph

import "github.com/paulmach/orb"

// ValueKind tags the variant held by a Value. Node/edge/graph attributes are
// stored as these tagged variants rather than bare interface{} or
// reflection over a CRS-like string, per the design notes' "tagged value
// variant and an explicit schema map" guidance.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindIntList
	KindNumberList
	KindGeometry
	KindObject
)

// Value is a single attribute value. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind ValueKind

	str    string
	num    float64
	boolv  bool
	ints   []int64
	nums   []float64
	geom   orb.LineString
	object interface{}
}

func String(s string) Value         { return Value{Kind: KindString, str: s} }
func Number(n float64) Value        { return Value{Kind: KindNumber, num: n} }
func Bool(b bool) Value             { return Value{Kind: KindBool, boolv: b} }
func IntList(v []int64) Value       { return Value{Kind: KindIntList, ints: v} }
func NumberList(v []float64) Value  { return Value{Kind: KindNumberList, nums: v} }
func Geometry(ls orb.LineString) Value { return Value{Kind: KindGeometry, geom: ls} }
func Object(v interface{}) Value    { return Value{Kind: KindObject, object: v} }

func (v Value) AsString() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsNumber() (float64, bool) {
	if v.Kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsBool() (bool, bool) {
	if v.Kind != KindBool {
		return false, false
	}
	return v.boolv, true
}

func (v Value) AsIntList() ([]int64, bool) {
	if v.Kind != KindIntList {
		return nil, false
	}
	return v.ints, true
}

func (v Value) AsNumberList() ([]float64, bool) {
	if v.Kind != KindNumberList {
		return nil, false
	}
	return v.nums, true
}

func (v Value) AsGeometry() (orb.LineString, bool) {
	if v.Kind != KindGeometry {
		return nil, false
	}
	return v.geom, true
}

func (v Value) AsObject() (interface{}, bool) {
	if v.Kind != KindObject {
		return nil, false
	}
	return v.object, true
}

// AttrStore is a per-entity attribute bag. It is always non-nil on a node,
// edge, or graph once constructed.
type AttrStore map[string]Value

func (a AttrStore) Clone() AttrStore {
	out := make(AttrStore, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
