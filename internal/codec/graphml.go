// Package codec implements C10: GraphML read/write via beevik/etree,
// GeoJSON exchange via paulmach/orb/geojson, and WKT linestring
// serialization via paulmach/orb/encoding/wkt.
//
// The etree element-walking idiom (SelectElement/SelectElements/
// CreateElement/CreateAttr) is grounded on
// rjhunjhunwala-TinyBigLoop__ingest.go's IngestNode/IngestWay/IngestArea,
// generalized from that repo's fixed OSM XML schema to GraphML's <key>/
// <node>/<edge> schema and the coercion table spec §4.10 describes.
package codec

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/osmgraph/osmgraph/internal/errs"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

// CoercionKind names how a raw GraphML attribute string is parsed back to a
// typed Value.
type CoercionKind int

const (
	CoerceString CoercionKind = iota
	CoerceFloat
	CoerceBool
	CoerceJSON
)

// DefaultCoercions is the per-key coercion table spec §4.10 names.
var DefaultCoercions = map[string]CoercionKind{
	"x": CoerceFloat, "y": CoerceFloat, "elevation": CoerceFloat,
	"osmid": CoerceFloat, "street_count": CoerceFloat, "bearing": CoerceFloat,
	"grade": CoerceFloat, "length": CoerceFloat, "speed_kph": CoerceFloat,
	"travel_time": CoerceFloat,
	"oneway":      CoerceBool, "reversed": CoerceBool, "simplified": CoerceBool,
	"merged_edges": CoerceJSON, "_merged_nodes": CoerceJSON,
}

// WriteGraphML serializes graph as a standards-compliant GraphML document
// per spec §6: one <key> per distinct attribute name/scope, one
// <graph edgedefault="directed">, one <node> per node, one <edge> per
// directed edge.
func WriteGraphML(graph *g.Graph) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("graphml")
	root.CreateAttr("xmlns", "http://graphml.graphdrawing.org/xmlns")

	keys := map[[2]string]bool{} // (name, scope)
	declareKey := func(name, scope string) {
		k := [2]string{name, scope}
		if keys[k] {
			return
		}
		keys[k] = true
		keyEl := root.CreateElement("key")
		keyEl.CreateAttr("id", scope+"_"+name)
		keyEl.CreateAttr("for", scope)
		keyEl.CreateAttr("attr.name", name)
		keyEl.CreateAttr("attr.type", "string")
	}

	for name := range graph.Attrs {
		declareKey(name, "graph")
	}
	for _, n := range graph.Nodes() {
		for name := range n.Attrs {
			declareKey(name, "node")
		}
	}
	for _, e := range graph.Edges() {
		for name := range e.Attrs {
			declareKey(name, "edge")
		}
	}

	graphEl := root.CreateElement("graph")
	graphEl.CreateAttr("edgedefault", "directed")
	for name, v := range graph.Attrs {
		dataEl := graphEl.CreateElement("data")
		dataEl.CreateAttr("key", "graph_"+name)
		dataEl.SetText(renderValue(v))
	}

	for _, n := range graph.Nodes() {
		nodeEl := graphEl.CreateElement("node")
		nodeEl.CreateAttr("id", n.ID)
		for name, v := range n.Attrs {
			dataEl := nodeEl.CreateElement("data")
			dataEl.CreateAttr("key", "node_"+name)
			dataEl.SetText(renderValue(v))
		}
	}

	for _, e := range graph.Edges() {
		edgeEl := graphEl.CreateElement("edge")
		edgeEl.CreateAttr("id", e.Key)
		edgeEl.CreateAttr("source", e.From)
		edgeEl.CreateAttr("target", e.To)
		for name, v := range e.Attrs {
			dataEl := edgeEl.CreateElement("data")
			dataEl.CreateAttr("key", "edge_"+name)
			dataEl.SetText(renderValue(v))
		}
	}

	return doc, nil
}

// renderValue stringifies a Value per spec §4.10: booleans as True/False,
// geometries as WKT, integer and number lists as bracketed comma-separated
// lists, objects as compact JSON, strings and numbers as their natural
// textual form.
func renderValue(v g.Value) string {
	switch v.Kind {
	case g.KindString:
		s, _ := v.AsString()
		return s
	case g.KindNumber:
		n, _ := v.AsNumber()
		return strconv.FormatFloat(n, 'g', -1, 64)
	case g.KindBool:
		b, _ := v.AsBool()
		if b {
			return "True"
		}
		return "False"
	case g.KindGeometry:
		ls, _ := v.AsGeometry()
		return wkt.MarshalString(ls)
	case g.KindIntList:
		ints, _ := v.AsIntList()
		parts := make([]string, len(ints))
		for i, n := range ints {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case g.KindNumberList:
		nums, _ := v.AsNumberList()
		parts := make([]string, len(nums))
		for i, n := range nums {
			parts[i] = strconv.FormatFloat(n, 'g', -1, 64)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		// KindObject and any other structured value: compact JSON per spec
		// §4.10.
		obj, _ := v.AsObject()
		b, err := json.Marshal(obj)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ReadGraphML parses a GraphML document into a graph, applying coercions
// (merged over DefaultCoercions, caller entries winning ties) to each
// attribute value per spec §4.10. The CRS defaults to epsg:4326 unless a
// graph-level "crs" attribute says otherwise.
func ReadGraphML(doc *etree.Document, coercions map[string]CoercionKind) (*g.Graph, error) {
	merged := map[string]CoercionKind{}
	for k, v := range DefaultCoercions {
		merged[k] = v
	}
	for k, v := range coercions {
		merged[k] = v
	}

	root := doc.SelectElement("graphml")
	if root == nil {
		return nil, errs.New(errs.ValidationFailed, "graphml: missing <graphml> root element")
	}
	graphEl := root.SelectElement("graph")
	if graphEl == nil {
		return nil, errs.New(errs.ValidationFailed, "graphml: missing <graph> element")
	}

	keyNames := map[string]string{} // key id -> attr.name
	for _, keyEl := range root.SelectElements("key") {
		id := attrValue(keyEl, "id")
		name := attrValue(keyEl, "attr.name")
		keyNames[id] = name
	}

	crs := "epsg:4326"
	for _, dataEl := range graphEl.SelectElements("data") {
		if keyNames[attrValue(dataEl, "key")] == "crs" {
			crs = dataEl.Text()
		}
	}

	graph := g.New(crs)
	for _, dataEl := range graphEl.SelectElements("data") {
		name := keyNames[attrValue(dataEl, "key")]
		graph.Attrs[name] = coerce(dataEl.Text(), name, merged)
	}

	for _, nodeEl := range graphEl.SelectElements("node") {
		id := attrValue(nodeEl, "id")
		attrs := g.AttrStore{}
		for _, dataEl := range nodeEl.SelectElements("data") {
			name := keyNames[attrValue(dataEl, "key")]
			attrs[name] = coerce(dataEl.Text(), name, merged)
		}
		graph.AddNode(id, attrs)
	}

	for _, edgeEl := range graphEl.SelectElements("edge") {
		key := attrValue(edgeEl, "id")
		source := attrValue(edgeEl, "source")
		target := attrValue(edgeEl, "target")
		attrs := g.AttrStore{}
		for _, dataEl := range edgeEl.SelectElements("data") {
			name := keyNames[attrValue(dataEl, "key")]
			attrs[name] = coerce(dataEl.Text(), name, merged)
		}
		if !graph.HasNode(source) || !graph.HasNode(target) {
			continue
		}
		if _, err := graph.AddEdgeWithKey(key, source, target, attrs); err != nil {
			return nil, err
		}
	}

	return graph, nil
}

func attrValue(el *etree.Element, name string) string {
	a := el.SelectAttr(name)
	if a == nil {
		return ""
	}
	return a.Value
}

func coerce(raw, name string, table map[string]CoercionKind) g.Value {
	if name == "geometry" {
		if geom, err := wkt.Unmarshal(raw); err == nil {
			if ls, ok := geom.(orb.LineString); ok {
				return g.Geometry(ls)
			}
		}
		return g.String(raw)
	}
	switch table[name] {
	case CoerceFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return g.Number(f)
		}
		return g.String(raw)
	case CoerceBool:
		return g.Bool(raw == "True" || raw == "true")
	case CoerceJSON:
		var obj interface{}
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			return g.Object(obj)
		}
		return g.String(raw)
	default:
		return g.String(raw)
	}
}
