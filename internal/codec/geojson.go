// graph_to_geojson / graph_from_gdfs (spec §6), grounded on
// rubenv-osmtopo__topojson.go's paulmach/go.geojson usage, ported to the
// actively maintained sibling package paulmach/orb/geojson that the rest of
// this module's orb-based geometry already depends on.
package codec

import (
	"os"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	g "github.com/osmgraph/osmgraph/internal/graph"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "codec")
}

// GraphToGeoJSON returns the node and edge feature collections spec §6
// describes.
func GraphToGeoJSON(graph *g.Graph) (nodes, edges *geojson.FeatureCollection) {
	nodes = geojson.NewFeatureCollection()
	for _, n := range graph.Nodes() {
		f := geojson.NewFeature(n.Point())
		f.Properties["id"] = n.ID
		for k, v := range n.Attrs {
			f.Properties[k] = valueToJSON(v)
		}
		nodes.Append(f)
	}

	edges = geojson.NewFeatureCollection()
	for _, e := range graph.Edges() {
		var geom orb.Geometry
		if ls, ok := e.Geometry(); ok {
			geom = ls
		} else {
			un, uok := graph.Node(e.From)
			vn, vok := graph.Node(e.To)
			if uok && vok {
				geom = orb.LineString{un.Point(), vn.Point()}
			} else {
				geom = orb.LineString{}
			}
		}
		f := geojson.NewFeature(geom)
		f.Properties["id"] = e.Key
		f.Properties["source"] = e.From
		f.Properties["target"] = e.To
		for k, v := range e.Attrs {
			f.Properties[k] = valueToJSON(v)
		}
		edges.Append(f)
	}

	return nodes, edges
}

// GraphFromGDFs inverts GraphToGeoJSON per spec §6: node id from osmid or
// id; edge endpoints from u/v or source/target; edges referencing unknown
// nodes are skipped, logged at WARNING with a count per spec §7, and also
// returned to the caller for surfacing in an API response.
func GraphFromGDFs(nodeFC, edgeFC *geojson.FeatureCollection, crs string) (*g.Graph, []string) {
	graph := g.New(crs)
	var warnings []string

	for _, f := range nodeFC.Features {
		id := nodeID(f.Properties)
		if id == "" {
			continue
		}
		attrs := g.AttrStore{}
		if pt, ok := f.Geometry.(orb.Point); ok {
			attrs["x"] = g.Number(pt[0])
			attrs["y"] = g.Number(pt[1])
		}
		for k, v := range f.Properties {
			if k == "id" || k == "osmid" {
				continue
			}
			attrs[k] = jsonToValue(v)
		}
		graph.AddNode(id, attrs)
	}

	for _, f := range edgeFC.Features {
		u, v := edgeEndpoints(f.Properties)
		if u == "" || v == "" || !graph.HasNode(u) || !graph.HasNode(v) {
			warnings = append(warnings, "skipped edge referencing unknown node: "+u+" -> "+v)
			continue
		}
		attrs := g.AttrStore{}
		if ls, ok := f.Geometry.(orb.LineString); ok {
			attrs["geometry"] = g.Geometry(ls)
		}
		for k, val := range f.Properties {
			switch k {
			case "id", "source", "target", "u", "v":
				continue
			}
			attrs[k] = jsonToValue(val)
		}
		if _, err := graph.AddEdge(u, v, attrs); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	if len(warnings) > 0 {
		level.Warn(logger).Log("msg", "graph_from_gdfs skipped malformed input", "count", len(warnings))
	}
	return graph, warnings
}

func nodeID(props geojson.Properties) string {
	if v, ok := props["osmid"]; ok {
		return toIDString(v)
	}
	if v, ok := props["id"]; ok {
		return toIDString(v)
	}
	return ""
}

func edgeEndpoints(props geojson.Properties) (u, v string) {
	if a, ok := props["u"]; ok {
		if b, ok := props["v"]; ok {
			return toIDString(a), toIDString(b)
		}
	}
	if a, ok := props["source"]; ok {
		if b, ok := props["target"]; ok {
			return toIDString(a), toIDString(b)
		}
	}
	return "", ""
}

func toIDString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func valueToJSON(v g.Value) interface{} {
	switch v.Kind {
	case g.KindString:
		s, _ := v.AsString()
		return s
	case g.KindNumber:
		n, _ := v.AsNumber()
		return n
	case g.KindBool:
		b, _ := v.AsBool()
		return b
	case g.KindIntList:
		ints, _ := v.AsIntList()
		return ints
	case g.KindNumberList:
		nums, _ := v.AsNumberList()
		return nums
	case g.KindGeometry:
		ls, _ := v.AsGeometry()
		return ls
	default:
		obj, _ := v.AsObject()
		return obj
	}
}

func jsonToValue(v interface{}) g.Value {
	switch t := v.(type) {
	case string:
		return g.String(t)
	case float64:
		return g.Number(t)
	case bool:
		return g.Bool(t)
	default:
		return g.Object(t)
	}
}
