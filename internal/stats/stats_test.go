package stats

import (
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/osmgraph/osmgraph/internal/geo"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

func buildVGraph() *g.Graph {
	// a-b, a-c, a-d: street_count(a) should be 3, street_count(b)=1.
	graph := g.New("epsg:4326")
	for _, id := range []string{"a", "b", "c", "d"} {
		graph.AddNode(id, g.AttrStore{"x": g.Number(0), "y": g.Number(0)})
	}
	graph.AddEdge("a", "b", g.AttrStore{"length": g.Number(10)})
	graph.AddEdge("b", "a", g.AttrStore{"length": g.Number(10)})
	graph.AddEdge("a", "c", g.AttrStore{"length": g.Number(10)})
	graph.AddEdge("a", "d", g.AttrStore{"length": g.Number(10)})
	return graph
}

func TestCountStreetsPerNode(t *testing.T) {
	graph := buildVGraph()
	CountStreetsPerNode(graph)

	a, _ := graph.Node("a")
	if sc, _ := a.Attrs["street_count"].AsNumber(); sc != 3 {
		t.Errorf("street_count(a) = %v, want 3", sc)
	}
	b, _ := graph.Node("b")
	if sc, _ := b.Attrs["street_count"].AsNumber(); sc != 1 {
		t.Errorf("street_count(b) = %v, want 1", sc)
	}
}

func TestCountStreetsPerNodeSelfLoopCountsTwice(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", nil)
	graph.AddEdge("a", "a", nil)

	CountStreetsPerNode(graph)
	n, _ := graph.Node("a")
	if sc, _ := n.Attrs["street_count"].AsNumber(); sc != 2 {
		t.Errorf("street_count(a) with a self-loop = %v, want 2", sc)
	}
}

func TestEdgeLengthTotalAndStreetLengthTotal(t *testing.T) {
	graph := buildVGraph()
	if got := EdgeLengthTotal(graph); got != 40 {
		t.Errorf("EdgeLengthTotal() = %v, want 40 (4 directed edges x 10)", got)
	}
	if got := StreetLengthTotal(graph); got != 30 {
		t.Errorf("StreetLengthTotal() = %v, want 30 (a-b counted once + a-c + a-d)", got)
	}
}

func TestStreetSegmentCount(t *testing.T) {
	graph := buildVGraph()
	if got := StreetSegmentCount(graph); got != 3 {
		t.Errorf("StreetSegmentCount() = %d, want 3", got)
	}
}

func TestIntersectionCountDefaultsMinStreetsToTwo(t *testing.T) {
	graph := buildVGraph()
	CountStreetsPerNode(graph)

	if got := IntersectionCount(graph, 0); got != 1 {
		t.Errorf("IntersectionCount(0) = %d, want 1 (only a has street_count>=2)", got)
	}
}

func TestSelfLoopProportion(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", nil)
	graph.AddNode("b", nil)
	graph.AddEdge("a", "a", nil)
	graph.AddEdge("a", "b", nil)

	if got := SelfLoopProportion(graph); got != 0.5 {
		t.Errorf("SelfLoopProportion() = %v, want 0.5", got)
	}
}

func TestSelfLoopProportionEmptyGraph(t *testing.T) {
	if got := SelfLoopProportion(g.New("epsg:4326")); got != 0 {
		t.Errorf("SelfLoopProportion() on an empty graph = %v, want 0", got)
	}
}

func TestCircuityAvgComputesRatio(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(0), "y": g.Number(0)})
	graph.AddNode("b", g.AttrStore{"x": g.Number(0), "y": g.Number(0.01)})
	// straight-line distance a-b is non-zero; make the edge length longer
	// than that to get a circuity ratio > 1.
	straight := geoHaversine(graph, "a", "b")
	graph.AddEdge("a", "b", g.AttrStore{"length": g.Number(straight * 2)})

	avg, ok := CircuityAvg(graph)
	if !ok {
		t.Fatal("CircuityAvg() returned ok=false")
	}
	if math.Abs(avg-2) > 0.01 {
		t.Errorf("CircuityAvg() = %v, want ~2", avg)
	}
}

func TestCircuityAvgNoValidEdges(t *testing.T) {
	graph := g.New("epsg:4326")
	if _, ok := CircuityAvg(graph); ok {
		t.Error("CircuityAvg() on an edgeless graph should return ok=false")
	}
}

func TestOrientationEntropyUniformIsMaximal(t *testing.T) {
	// Four cardinal bearings spread evenly across 4 bins should yield the
	// maximum possible entropy for that bin count, ln(4).
	bearings := []float64{0, 90, 180, 270}
	entropy, ok := OrientationEntropy(bearings, 4)
	if !ok {
		t.Fatal("OrientationEntropy() returned ok=false")
	}
	want := math.Log(4)
	if math.Abs(entropy-want) > 0.05 {
		t.Errorf("OrientationEntropy() = %v, want ~%v", entropy, want)
	}
}

func TestOrientationEntropyEmptyBearings(t *testing.T) {
	if _, ok := OrientationEntropy(nil, 36); ok {
		t.Error("OrientationEntropy(nil) should return ok=false")
	}
}

func TestStreetCountHistogramRanksByFrequency(t *testing.T) {
	graph := buildVGraph()
	CountStreetsPerNode(graph)

	hist := StreetCountHistogram(graph)
	if len(hist) == 0 {
		t.Fatal("StreetCountHistogram() returned no buckets")
	}
	if hist[0].Count < hist[len(hist)-1].Count {
		t.Errorf("StreetCountHistogram() not sorted by descending count: %v", hist)
	}
}

func geoHaversine(graph *g.Graph, u, v string) float64 {
	un, _ := graph.Node(u)
	vn, _ := graph.Node(v)
	return geo.Haversine(orb.Point{un.X(), un.Y()}, orb.Point{vn.X(), vn.Y()})
}
