package consolidate

import (
	"testing"

	g "github.com/osmgraph/osmgraph/internal/graph"
)

func TestConsolidateMergesCloseNodes(t *testing.T) {
	graph := g.New("epsg:4326")
	// a and b sit a few meters apart (well under a 10m tolerance); c is far away.
	graph.AddNode("a", g.AttrStore{"x": g.Number(-79.00000), "y": g.Number(43.00000)})
	graph.AddNode("b", g.AttrStore{"x": g.Number(-79.00003), "y": g.Number(43.00000)})
	graph.AddNode("c", g.AttrStore{"x": g.Number(-79.10000), "y": g.Number(43.10000)})
	graph.AddEdge("a", "c", g.AttrStore{"length": g.Number(1000)})
	graph.AddEdge("b", "c", g.AttrStore{"length": g.Number(1000)})

	out := Consolidate(graph, 10)

	if got := out.NodeCount(); got != 2 {
		t.Fatalf("NodeCount() = %d, want 2 (a+b merged, c standalone)", got)
	}
	if out.HasNode("a") == out.HasNode("b") {
		t.Fatalf("exactly one of a/b should survive as the cluster representative")
	}

	rep := "a"
	if !out.HasNode("a") {
		rep = "b"
	}
	n, ok := out.Node(rep)
	if !ok {
		t.Fatalf("representative node %q missing", rep)
	}
	if _, ok := n.Attrs["_merged_nodes"].AsObject(); !ok {
		t.Error("merged representative should carry a _merged_nodes attribute")
	}
}

func TestConsolidateLeavesDistantNodesAlone(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(0), "y": g.Number(0)})
	graph.AddNode("b", g.AttrStore{"x": g.Number(1), "y": g.Number(0)})
	graph.AddEdge("a", "b", g.AttrStore{"length": g.Number(1)})

	out := Consolidate(graph, 5)

	if got := out.NodeCount(); got != 2 {
		t.Errorf("NodeCount() = %d, want 2 (nodes too far apart to merge)", got)
	}
}

func TestConsolidatePreservesEdgesAcrossMerge(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(-79.00000), "y": g.Number(43.00000)})
	graph.AddNode("b", g.AttrStore{"x": g.Number(-79.00001), "y": g.Number(43.00000)})
	graph.AddNode("c", g.AttrStore{"x": g.Number(-79.10000), "y": g.Number(43.10000)})
	graph.AddEdge("a", "c", g.AttrStore{"length": g.Number(1000)})

	out := Consolidate(graph, 10)

	if got := out.EdgeCount(); got != 1 {
		t.Errorf("EdgeCount() = %d, want 1 (edge remapped onto the merged representative)", got)
	}
}

func TestConsolidateSingletonClusterKeepsOriginalAttrs(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(0), "y": g.Number(0), "street_count": g.Number(3)})

	out := Consolidate(graph, 5)

	n, ok := out.Node("a")
	if !ok {
		t.Fatalf("singleton node a missing from output")
	}
	if v, ok := n.Attrs["street_count"].AsNumber(); !ok || v != 3 {
		t.Errorf("street_count = %v, want 3 (preserved)", v)
	}
	if _, ok := n.Attrs["_merged_nodes"].AsObject(); ok {
		t.Error("a singleton cluster should not carry a _merged_nodes attribute")
	}
}
