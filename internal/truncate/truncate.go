// Package truncate implements C6: cutting a graph down to a bbox, a
// polygon, a distance radius from a source node, or its largest connected
// component.
//
// BBox/polygon membership testing is grounded on
// azybler-map_router__parser.go's BBox{MinLat,MaxLat,MinLng,MaxLng}.Contains,
// generalized to the spec's [north,south,east,west] convention and to
// polygon-ring point-in-polygon tests. Distance-radius truncation reuses
// internal/route's shortest-path-tree builder (route.DistancesFrom) rather
// than maintaining a second Dijkstra implementation.
package truncate

import (
	"os"

	"github.com/go-kit/log"
	"github.com/paulmach/orb"

	"github.com/osmgraph/osmgraph/internal/errs"
	"github.com/osmgraph/osmgraph/internal/geo"
	g "github.com/osmgraph/osmgraph/internal/graph"
	"github.com/osmgraph/osmgraph/internal/route"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "truncate")
}

// BBoxOptions configures ByBBox.
type BBoxOptions struct {
	TruncateByEdge        bool
	LargestComponentOnly bool
}

// ByBBox drops nodes outside box, per spec §4.6. When TruncateByEdge is set,
// an outside node incident to an edge whose geometry (or endpoint fallback
// segment) crosses the box polygon is reprieved.
func ByBBox(graph *g.Graph, box geo.BBox, opts BBoxOptions) *g.Graph {
	outside := map[string]bool{}
	for _, n := range graph.Nodes() {
		x, y := n.X(), n.Y()
		if y > box.North || y < box.South || x > box.East || x < box.West {
			outside[n.ID] = true
		}
	}

	if opts.TruncateByEdge {
		boxPoly := bboxPolygon(box)
		reprieved := map[string]bool{}
		for _, e := range graph.Edges() {
			if !outside[e.From] && !outside[e.To] {
				continue
			}
			line, ok := e.Geometry()
			if !ok {
				un, uok := graph.Node(e.From)
				vn, vok := graph.Node(e.To)
				if !uok || !vok {
					continue
				}
				line = orb.LineString{un.Point(), vn.Point()}
			}
			if lineIntersectsPolygon(line, boxPoly) {
				if outside[e.From] {
					reprieved[e.From] = true
				}
				if outside[e.To] {
					reprieved[e.To] = true
				}
			}
		}
		for id := range reprieved {
			delete(outside, id)
		}
	}

	out := graph.Clone()
	for id := range outside {
		out.RemoveNode(id)
	}

	if opts.LargestComponentOnly {
		out = LargestWeakComponent(out)
	}
	return out
}

// ByPolygon drops any node whose point is not inside polygon (any ring
// counts; a hole is not subtracted, matching the single-outer-ring usage
// the spec's worked examples exercise).
func ByPolygon(graph *g.Graph, polygon orb.Polygon) *g.Graph {
	out := graph.Clone()
	for _, n := range out.Nodes() {
		if !pointInPolygon(n.Point(), polygon) {
			out.RemoveNode(n.ID)
		}
	}
	return out
}

// ByDistance drops nodes farther than dist from source under edge attribute
// weight (default "length"), or unreachable, per spec §4.6.
func ByDistance(graph *g.Graph, source string, dist float64, weight string) (*g.Graph, error) {
	if !graph.HasNode(source) {
		return nil, errs.New(errs.InvalidInput, "truncate by distance: unknown source node "+source)
	}
	if weight == "" {
		weight = "length"
	}

	dists, err := route.DistancesFrom(graph, source, route.Options{Weight: weight})
	if err != nil {
		return nil, err
	}

	out := graph.Clone()
	kept := 0
	for _, n := range out.Nodes() {
		d, ok := dists[n.ID]
		if !ok || d > dist {
			out.RemoveNode(n.ID)
			continue
		}
		kept++
	}
	logger.Log("msg", "truncated by distance", "source", source, "radius", dist, "nodes_kept", kept)
	return out, nil
}

// LargestWeakComponent returns the subgraph induced by the largest weakly
// connected component (treating every edge as undirected), ties broken by
// first-found per spec §4.6.
func LargestWeakComponent(graph *g.Graph) *g.Graph {
	components := WeakComponents(graph)
	if len(components) == 0 {
		return graph.Clone()
	}
	best := components[0]
	for _, c := range components[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	return inducedSubgraph(graph, best)
}

// WeakComponents returns every weakly connected component (each a set of
// node ids) via DFS over the symmetric closure of edges, in first-found
// order.
func WeakComponents(graph *g.Graph) []map[string]bool {
	adjacency := symmetricAdjacency(graph)
	visited := map[string]bool{}
	var components []map[string]bool

	for _, n := range graph.Nodes() {
		if visited[n.ID] {
			continue
		}
		component := map[string]bool{}
		stack := []string{n.ID}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if visited[cur] {
				continue
			}
			visited[cur] = true
			component[cur] = true
			for _, neighbor := range adjacency[cur] {
				if !visited[neighbor] {
					stack = append(stack, neighbor)
				}
			}
		}
		components = append(components, component)
	}
	return components
}

func symmetricAdjacency(graph *g.Graph) map[string][]string {
	adj := map[string][]string{}
	for _, e := range graph.Edges() {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	return adj
}

// StronglyConnectedComponents implements Tarjan's algorithm, iteratively, to
// avoid recursion depth limits on large graphs per spec §4.6.
func StronglyConnectedComponents(graph *g.Graph) []map[string]bool {
	index := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	counter := 0
	var components []map[string]bool

	type frame struct {
		node     string
		edgeIdx  int
		outEdges []*g.Edge
	}

	for _, n := range graph.Nodes() {
		if _, seen := index[n.ID]; seen {
			continue
		}

		var callStack []*frame
		callStack = append(callStack, &frame{node: n.ID, outEdges: graph.OutEdges(n.ID)})
		index[n.ID] = counter
		lowlink[n.ID] = counter
		counter++
		stack = append(stack, n.ID)
		onStack[n.ID] = true

		for len(callStack) > 0 {
			top := callStack[len(callStack)-1]
			if top.edgeIdx < len(top.outEdges) {
				to := top.outEdges[top.edgeIdx].To
				top.edgeIdx++
				if _, seen := index[to]; !seen {
					index[to] = counter
					lowlink[to] = counter
					counter++
					stack = append(stack, to)
					onStack[to] = true
					callStack = append(callStack, &frame{node: to, outEdges: graph.OutEdges(to)})
				} else if onStack[to] {
					if index[to] < lowlink[top.node] {
						lowlink[top.node] = index[to]
					}
				}
				continue
			}

			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := callStack[len(callStack)-1]
				if lowlink[top.node] < lowlink[parent.node] {
					lowlink[parent.node] = lowlink[top.node]
				}
			}

			if lowlink[top.node] == index[top.node] {
				component := map[string]bool{}
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					component[w] = true
					if w == top.node {
						break
					}
				}
				components = append(components, component)
			}
		}
	}
	return components
}

// LargestStrongComponent mirrors LargestWeakComponent for strong
// connectivity.
func LargestStrongComponent(graph *g.Graph) *g.Graph {
	components := StronglyConnectedComponents(graph)
	if len(components) == 0 {
		return graph.Clone()
	}
	best := components[0]
	for _, c := range components[1:] {
		if len(c) > len(best) {
			best = c
		}
	}
	return inducedSubgraph(graph, best)
}

func inducedSubgraph(graph *g.Graph, keep map[string]bool) *g.Graph {
	out := g.New(graph.CRS())
	out.Attrs = graph.Attrs.Clone()
	for _, n := range graph.Nodes() {
		if keep[n.ID] {
			out.AddNode(n.ID, n.Attrs.Clone())
		}
	}
	for _, e := range graph.Edges() {
		if keep[e.From] && keep[e.To] {
			out.AddEdge(e.From, e.To, e.Attrs.Clone())
		}
	}
	return out
}

func bboxPolygon(box geo.BBox) orb.Polygon {
	ring := orb.Ring{
		{box.West, box.South},
		{box.East, box.South},
		{box.East, box.North},
		{box.West, box.North},
		{box.West, box.South},
	}
	return orb.Polygon{ring}
}

func pointInPolygon(p orb.Point, polygon orb.Polygon) bool {
	for _, ring := range polygon {
		if ringContains(ring, p) {
			return true
		}
	}
	return false
}

// ringContains is the standard even-odd ray-casting test.
func ringContains(ring orb.Ring, p orb.Point) bool {
	inside := false
	n := len(ring)
	if n < 3 {
		return false
	}
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > p[1]) != (yj > p[1]) {
			xcross := xi + (p[1]-yi)/(yj-yi)*(xj-xi)
			if p[0] < xcross {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func lineIntersectsPolygon(line orb.LineString, polygon orb.Polygon) bool {
	for _, p := range line {
		if pointInPolygon(p, polygon) {
			return true
		}
	}
	for _, ring := range polygon {
		for i := 0; i < len(line)-1; i++ {
			for j := 0; j < len(ring)-1; j++ {
				if segmentsIntersect(line[i], line[i+1], ring[j], ring[j+1]) {
					return true
				}
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
