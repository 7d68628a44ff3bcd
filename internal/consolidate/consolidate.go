// Package consolidate implements C5: merging junctions whose buffered
// neighborhoods overlap into single representative nodes.
//
// The proximity bucketing is grounded on the teacher's
// internal/util/graph/segmentOverlap.go ZoneMap/GetZones grid scheme,
// repurposed from "which line segments are close and parallel" into "which
// nodes fall within 2*tolerance of each other" before union-find.
package consolidate

import (
	"math"
	"os"
	"sort"

	"github.com/go-kit/log"
	"github.com/paulmach/orb"

	"github.com/osmgraph/osmgraph/internal/geo"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "consolidate")
}

// unionFind is a standard disjoint-set structure over node ids.
type unionFind struct {
	parent map[string]string
}

func newUnionFind(ids []string) *unionFind {
	uf := &unionFind{parent: make(map[string]string, len(ids))}
	for _, id := range ids {
		uf.parent[id] = id
	}
	return uf
}

func (u *unionFind) find(x string) string {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	// Deterministic merge direction so the root ends up predictable
	// regardless of union order; final representative selection still
	// re-derives the lexicographically smallest id per cluster below.
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// distanceFuncOrb picks Euclidean or great-circle distance depending on the
// graph's CRS, per spec §4.5.
func distanceFuncOrb(crs string) func(a, b [2]float64) float64 {
	if geo.IsProjected(crs) {
		return func(a, b [2]float64) float64 {
			return geo.Euclidean(orb.Point{a[0], a[1]}, orb.Point{b[0], b[1]})
		}
	}
	return func(a, b [2]float64) float64 {
		return geo.Haversine(orb.Point{a[0], a[1]}, orb.Point{b[0], b[1]})
	}
}

// gridCell buckets coordinates into cells sized to the clustering threshold
// so only nearby nodes are distance-checked, mirroring the teacher's
// ZoneMap grid.
type gridCell struct{ x, y int64 }

func cellFor(x, y, width float64) gridCell {
	return gridCell{int64(math.Floor(x / width)), int64(math.Floor(y / width))}
}

// Consolidate merges nodes within 2*tolerance of each other (buffers
// overlap) into single representative nodes, returning a fresh graph per
// spec §4.5. Nodes lacking coordinates are preserved as singleton clusters.
func Consolidate(graph *g.Graph, tolerance float64) *g.Graph {
	threshold := 2 * tolerance
	crs := graph.CRS()
	dist := distanceFuncOrb(crs)

	var coordIDs []string
	coords := map[string][2]float64{}
	for _, n := range graph.Nodes() {
		if hasFiniteCoords(n) {
			coordIDs = append(coordIDs, n.ID)
			coords[n.ID] = [2]float64{n.X(), n.Y()}
		}
	}

	uf := newUnionFind(idsOf(graph.Nodes()))

	// Bucket width equal to the threshold guarantees any pair within
	// threshold lies in the same or an adjacent cell.
	cellWidth := threshold
	if !geo.IsProjected(crs) {
		// Coordinates are degrees. A degree of longitude shrinks with
		// cos(latitude), so cells are sized for the highest latitude present
		// (111000 m per degree, slightly under the true figure): every cell
		// is then at least threshold meters across in both directions, and
		// the adjacent-cell search misses no pair within threshold.
		maxAbsLat := 0.0
		for _, id := range coordIDs {
			if lat := math.Abs(coords[id][1]); lat > maxAbsLat {
				maxAbsLat = lat
			}
		}
		cosLat := math.Max(math.Cos(maxAbsLat*math.Pi/180), 1e-6)
		cellWidth = threshold / (111000.0 * cosLat)
		if cellWidth <= 0 {
			cellWidth = 1e-6
		}
	}
	if cellWidth <= 0 {
		cellWidth = 1
	}

	buckets := map[gridCell][]string{}
	for _, id := range coordIDs {
		c := coords[id]
		cell := cellFor(c[0], c[1], cellWidth)
		buckets[cell] = append(buckets[cell], id)
	}

	for _, id := range coordIDs {
		c := coords[id]
		cell := cellFor(c[0], c[1], cellWidth)
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				neighborCell := gridCell{cell.x + dx, cell.y + dy}
				for _, other := range buckets[neighborCell] {
					if other <= id {
						continue
					}
					if dist(c, coords[other]) <= threshold {
						uf.union(id, other)
					}
				}
			}
		}
	}

	clusters := map[string][]string{}
	for _, n := range graph.Nodes() {
		root := uf.find(n.ID)
		clusters[root] = append(clusters[root], n.ID)
	}

	// representativeOf maps every original node id to the lex-min id of its
	// cluster, per spec §4.5's deterministic representative rule.
	representativeOf := map[string]string{}
	repAttrs := map[string]g.AttrStore{}
	for _, members := range clusters {
		sort.Strings(members)
		rep := members[0]
		for _, m := range members {
			representativeOf[m] = rep
		}

		if len(members) == 1 {
			if orig, ok := graph.Node(rep); ok {
				repAttrs[rep] = orig.Attrs.Clone()
			}
			continue
		}

		var sx, sy float64
		n := 0
		for _, m := range members {
			if c, ok := coords[m]; ok {
				sx += c[0]
				sy += c[1]
				n++
			}
		}
		attrs := g.AttrStore{}
		if orig, ok := graph.Node(rep); ok {
			attrs = orig.Attrs.Clone()
		}
		if n > 0 {
			attrs["x"] = g.Number(sx / float64(n))
			attrs["y"] = g.Number(sy / float64(n))
		}
		mergedIDs := make([]interface{}, len(members))
		for i, m := range members {
			mergedIDs[i] = m
		}
		attrs["_merged_nodes"] = g.Object(mergedIDs)
		repAttrs[rep] = attrs
	}

	out := g.New(crs)
	out.Attrs = graph.Attrs.Clone()
	for rep, attrs := range repAttrs {
		out.AddNode(rep, attrs)
	}

	for _, e := range graph.Edges() {
		from := representativeOf[e.From]
		to := representativeOf[e.To]
		out.AddEdge(from, to, e.Attrs.Clone())
	}

	merged := len(graph.Nodes()) - len(repAttrs)
	logger.Log("msg", "consolidated nodes", "tolerance", tolerance, "clusters", len(repAttrs), "nodes_merged_away", merged)
	return out
}

func hasFiniteCoords(n *g.Node) bool {
	x, okx := n.Attrs["x"].AsNumber()
	y, oky := n.Attrs["y"].AsNumber()
	if !okx || !oky {
		return false
	}
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

func idsOf(nodes []*g.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
