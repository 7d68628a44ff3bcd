package truncate

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/osmgraph/osmgraph/internal/geo"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

func lineGraph() *g.Graph {
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(0), "y": g.Number(0)})
	graph.AddNode("b", g.AttrStore{"x": g.Number(1), "y": g.Number(0)})
	graph.AddNode("c", g.AttrStore{"x": g.Number(5), "y": g.Number(0)})
	graph.AddEdge("a", "b", g.AttrStore{"length": g.Number(1)})
	graph.AddEdge("b", "c", g.AttrStore{"length": g.Number(4)})
	return graph
}

func TestByBBoxDropsOutsideNodes(t *testing.T) {
	graph := lineGraph()
	box := geo.BBox{North: 1, South: -1, East: 2, West: -1}

	out := ByBBox(graph, box, BBoxOptions{})

	if out.HasNode("c") {
		t.Error("c lies outside the box, should be dropped")
	}
	if !out.HasNode("a") || !out.HasNode("b") {
		t.Error("a and b lie inside the box, should be kept")
	}
}

func TestByBBoxTruncateByEdgeReprievesCrossingNode(t *testing.T) {
	graph := lineGraph()
	// box only covers x in [-1, 2]; c (x=5) is outside but the b-c edge
	// crosses the box boundary, so TruncateByEdge should keep c.
	box := geo.BBox{North: 1, South: -1, East: 2, West: -1}

	without := ByBBox(graph, box, BBoxOptions{})
	with := ByBBox(graph, box, BBoxOptions{TruncateByEdge: true})

	if without.HasNode("c") {
		t.Error("without TruncateByEdge, c should be dropped")
	}
	if !with.HasNode("c") {
		t.Error("with TruncateByEdge, the edge crossing the boundary should reprieve c")
	}
}

func TestByPolygonKeepsOnlyInteriorNodes(t *testing.T) {
	graph := lineGraph()
	square := orb.Polygon{orb.Ring{{-1, -1}, {2, -1}, {2, 1}, {-1, 1}, {-1, -1}}}

	out := ByPolygon(graph, square)

	if out.HasNode("c") {
		t.Error("c lies outside the polygon, should be dropped")
	}
	if !out.HasNode("a") || !out.HasNode("b") {
		t.Error("a and b lie inside the polygon, should be kept")
	}
}

func TestByDistanceKeepsNodesWithinRadius(t *testing.T) {
	graph := lineGraph()

	out, err := ByDistance(graph, "a", 2, "length")
	if err != nil {
		t.Fatalf("ByDistance() error: %v", err)
	}
	if !out.HasNode("a") || !out.HasNode("b") {
		t.Error("a (dist 0) and b (dist 1) should survive a radius-2 truncation")
	}
	if out.HasNode("c") {
		t.Error("c is dist 5 from a, should be dropped at radius 2")
	}
}

func TestByDistanceUnknownSourceErrors(t *testing.T) {
	graph := lineGraph()
	if _, err := ByDistance(graph, "ghost", 10, "length"); err == nil {
		t.Error("ByDistance() with an unknown source should error")
	}
}

func TestWeakComponentsTreatsDirectedEdgesAsUndirected(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", nil)
	graph.AddNode("b", nil)
	graph.AddNode("c", nil)
	graph.AddEdge("a", "b", nil) // one direction only

	components := WeakComponents(graph)
	sizes := map[int]int{}
	for _, c := range components {
		sizes[len(c)]++
	}
	if sizes[2] != 1 || sizes[1] != 1 {
		t.Errorf("WeakComponents() sizes = %v, want one size-2 (a,b) and one size-1 (c)", sizes)
	}
}

func TestLargestWeakComponentPicksBiggest(t *testing.T) {
	graph := g.New("epsg:4326")
	for _, id := range []string{"a", "b", "c", "d"} {
		graph.AddNode(id, nil)
	}
	graph.AddEdge("a", "b", nil)
	graph.AddEdge("b", "c", nil)
	// d is isolated.

	out := LargestWeakComponent(graph)
	if got := out.NodeCount(); got != 3 {
		t.Errorf("LargestWeakComponent() node count = %d, want 3", got)
	}
	if out.HasNode("d") {
		t.Error("isolated node d should not be in the largest component")
	}
}

func TestStronglyConnectedComponentsSplitsOnDirectionality(t *testing.T) {
	graph := g.New("epsg:4326")
	for _, id := range []string{"a", "b", "c"} {
		graph.AddNode(id, nil)
	}
	graph.AddEdge("a", "b", nil)
	graph.AddEdge("b", "c", nil)
	// No edge back from c, so each node is its own strong component.

	components := StronglyConnectedComponents(graph)
	if len(components) != 3 {
		t.Fatalf("StronglyConnectedComponents() = %d components, want 3", len(components))
	}
}

func TestStronglyConnectedComponentsMergesCycle(t *testing.T) {
	graph := g.New("epsg:4326")
	for _, id := range []string{"a", "b", "c"} {
		graph.AddNode(id, nil)
	}
	graph.AddEdge("a", "b", nil)
	graph.AddEdge("b", "c", nil)
	graph.AddEdge("c", "a", nil)

	components := StronglyConnectedComponents(graph)
	if len(components) != 1 {
		t.Fatalf("StronglyConnectedComponents() = %d components, want 1 (a cycle)", len(components))
	}
	if len(components[0]) != 3 {
		t.Errorf("component size = %d, want 3", len(components[0]))
	}
}
