package service

import (
	"context"
	"strings"
	"testing"

	"github.com/osmgraph/osmgraph/internal/config"
	"github.com/osmgraph/osmgraph/internal/geo"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

func chainGraphML(t *testing.T) string {
	t.Helper()
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(0), "y": g.Number(0)})
	graph.AddNode("b", g.AttrStore{"x": g.Number(0), "y": g.Number(0.0001)})
	graph.AddNode("c", g.AttrStore{"x": g.Number(0), "y": g.Number(0.0002)})
	graph.AddEdge("a", "b", g.AttrStore{"length": g.Number(10)})
	graph.AddEdge("b", "a", g.AttrStore{"length": g.Number(10)})
	graph.AddEdge("b", "c", g.AttrStore{"length": g.Number(10)})
	graph.AddEdge("c", "b", g.AttrStore{"length": g.Number(10)})

	text, err := encodeGraphML(graph)
	if err != nil {
		t.Fatalf("encodeGraphML() error: %v", err)
	}
	return text
}

func TestDecodeEncodeGraphMLRoundTrips(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", g.AttrStore{"x": g.Number(1), "y": g.Number(2)})

	text, err := encodeGraphML(graph)
	if err != nil {
		t.Fatalf("encodeGraphML() error: %v", err)
	}
	back, err := decodeGraphML(text)
	if err != nil {
		t.Fatalf("decodeGraphML() error: %v", err)
	}
	if !back.HasNode("a") {
		t.Error("round-tripped graph missing node a")
	}
}

func TestDecodeGraphMLInvalidXMLErrors(t *testing.T) {
	if _, err := decodeGraphML("not xml at all <<<"); err == nil {
		t.Error("decodeGraphML() on malformed XML should error")
	}
}

func TestServiceSimplifyCollapsesChain(t *testing.T) {
	svc := New(config.Default())
	out, err := svc.Simplify(context.Background(), chainGraphML(t), false)
	if err != nil {
		t.Fatalf("Simplify() error: %v", err)
	}
	graph, err := decodeGraphML(out)
	if err != nil {
		t.Fatalf("decodeGraphML(result) error: %v", err)
	}
	if graph.HasNode("b") {
		t.Error("interstitial node b should be removed by Simplify")
	}
	if !graph.HasNode("a") || !graph.HasNode("c") {
		t.Error("endpoint nodes a and c should survive Simplify")
	}
}

func TestServiceConsolidateMergesCloseNodes(t *testing.T) {
	svc := New(config.Default())
	// a and b are ~11m apart (0.0001 deg lat), well under a 50m tolerance.
	out, err := svc.Consolidate(context.Background(), chainGraphML(t), 50)
	if err != nil {
		t.Fatalf("Consolidate() error: %v", err)
	}
	graph, err := decodeGraphML(out)
	if err != nil {
		t.Fatalf("decodeGraphML(result) error: %v", err)
	}
	if graph.NodeCount() >= 3 {
		t.Errorf("Consolidate() at a generous tolerance should merge nodes, got %d nodes", graph.NodeCount())
	}
}

func TestServiceTruncateBBoxDropsOutsideNodes(t *testing.T) {
	svc := New(config.Default())
	box := geo.BBox{North: 0.00005, South: -0.00005, East: 0.00005, West: -0.00005}

	out, err := svc.TruncateBBox(context.Background(), chainGraphML(t), box, false)
	if err != nil {
		t.Fatalf("TruncateBBox() error: %v", err)
	}
	graph, err := decodeGraphML(out)
	if err != nil {
		t.Fatalf("decodeGraphML(result) error: %v", err)
	}
	if graph.HasNode("c") {
		t.Error("TruncateBBox() should drop node c, which lies outside the box")
	}
}

func TestServiceShortestPathReturnsCostAndNodes(t *testing.T) {
	svc := New(config.Default())
	result, err := svc.ShortestPath(context.Background(), chainGraphML(t), "a", "c", "length")
	if err != nil {
		t.Fatalf("ShortestPath() error: %v", err)
	}
	if result.Cost != 20 {
		t.Errorf("ShortestPath() cost = %v, want 20", result.Cost)
	}
	want := []string{"a", "b", "c"}
	if len(result.Nodes) != len(want) {
		t.Fatalf("ShortestPath() nodes = %v, want %v", result.Nodes, want)
	}
	for i := range want {
		if result.Nodes[i] != want[i] {
			t.Errorf("ShortestPath() nodes[%d] = %q, want %q", i, result.Nodes[i], want[i])
		}
	}
}

func TestServiceKShortestPathsComputesCostPerPath(t *testing.T) {
	svc := New(config.Default())
	results, err := svc.KShortestPaths(context.Background(), chainGraphML(t), "a", "c", "length", 1)
	if err != nil {
		t.Fatalf("KShortestPaths() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("KShortestPaths() = %d results, want 1", len(results))
	}
	if results[0].Cost != 20 {
		t.Errorf("KShortestPaths()[0].Cost = %v, want 20", results[0].Cost)
	}
}

func TestServiceStatsComputesEdgeLengthTotal(t *testing.T) {
	svc := New(config.Default())
	result, err := svc.Stats(context.Background(), chainGraphML(t))
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if result.EdgeLengthTotal != 40 {
		t.Errorf("Stats().EdgeLengthTotal = %v, want 40 (4 directed edges x 10)", result.EdgeLengthTotal)
	}
}

func TestServiceShortestPathPropagatesDecodeError(t *testing.T) {
	svc := New(config.Default())
	if _, err := svc.ShortestPath(context.Background(), "garbage", "a", "b", "length"); err == nil {
		t.Error("ShortestPath() with malformed graphml should error")
	}
}

func TestPathCostDefaultsToLengthWeight(t *testing.T) {
	graph := g.New("epsg:4326")
	graph.AddNode("a", nil)
	graph.AddNode("b", nil)
	graph.AddEdge("a", "b", g.AttrStore{"length": g.Number(7)})

	if got := pathCost(graph, []string{"a", "b"}, ""); got != 7 {
		t.Errorf("pathCost() with an empty weight = %v, want 7 (defaults to length)", got)
	}
}

func TestEncodeGraphMLProducesParsableXML(t *testing.T) {
	text := chainGraphML(t)
	if !strings.Contains(text, "<graphml") {
		t.Error("encodeGraphML() output missing <graphml> element")
	}
}
