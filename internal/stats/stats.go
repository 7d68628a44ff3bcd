// Package stats implements C9: the descriptive statistics spec §4.9 names,
// grounded on fbenz-osmrouting's alg.Histogram (fbenz-osmrouting/src/alg/
// histogram.go, an example repo, not the teacher) for the frequency-ranked
// street-count histogram, generalized from that package's log-line dump into returned
// Go values.
package stats

import (
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/osmgraph/osmgraph/internal/geo"
	g "github.com/osmgraph/osmgraph/internal/graph"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "stats")
}

// CountStreetsPerNode recomputes and stamps street_count on every node, per
// spec §4.9: a self-loop contributes 2, directed parallel edges each count
// once via canonicalized unordered pairs.
func CountStreetsPerNode(graph *g.Graph) {
	for _, n := range graph.Nodes() {
		count := 0
		if graph.HasSelfLoop(n.ID) {
			count += 2
		}
		seen := map[[2]string]bool{}
		for _, e := range graph.OutEdges(n.ID) {
			if e.From == e.To {
				continue
			}
			pair := canonicalPair(e.From, e.To)
			if !seen[pair] {
				seen[pair] = true
				count++
			}
		}
		for _, e := range graph.InEdges(n.ID) {
			if e.From == e.To {
				continue
			}
			pair := canonicalPair(e.From, e.To)
			if !seen[pair] {
				seen[pair] = true
				count++
			}
		}
		n.Attrs["street_count"] = g.Number(float64(count))
	}
}

// EdgeLengthTotal sums finite "length" across every edge.
func EdgeLengthTotal(graph *g.Graph) float64 {
	var total float64
	for _, e := range graph.Edges() {
		if l, ok := e.Attrs["length"].AsNumber(); ok && isFinite(l) {
			total += l
		}
	}
	return total
}

// StreetLengthTotal sums length over undirected (u,v) pairs, counting each
// reciprocal pair once, per spec §4.9.
func StreetLengthTotal(graph *g.Graph) float64 {
	seen := map[[2]string]bool{}
	var total float64
	for _, e := range graph.Edges() {
		pair := canonicalPair(e.From, e.To)
		if seen[pair] {
			continue
		}
		seen[pair] = true
		if l, ok := e.Attrs["length"].AsNumber(); ok && isFinite(l) {
			total += l
		}
	}
	return total
}

// StreetSegmentCount returns the number of unique unordered (u,v) pairs.
func StreetSegmentCount(graph *g.Graph) int {
	seen := map[[2]string]bool{}
	for _, e := range graph.Edges() {
		seen[canonicalPair(e.From, e.To)] = true
	}
	return len(seen)
}

// IntersectionCount returns nodes with street_count >= minStreets.
func IntersectionCount(graph *g.Graph, minStreets int) int {
	if minStreets <= 0 {
		minStreets = 2
	}
	count := 0
	for _, n := range graph.Nodes() {
		if sc, ok := n.Attrs["street_count"].AsNumber(); ok && int(sc) >= minStreets {
			count++
		}
	}
	return count
}

// CircuityAvg returns the mean over edges of (edge length / straight-line
// endpoint distance), skipping zero-distance segments, nil if no valid
// edges exist, per spec §4.9.
func CircuityAvg(graph *g.Graph) (float64, bool) {
	projected := geo.IsProjected(graph.CRS())
	var sum float64
	var n int
	skippedLength, skippedEndpoint, skippedZero := 0, 0, 0
	for _, e := range graph.Edges() {
		length, ok := e.Attrs["length"].AsNumber()
		if !ok || !isFinite(length) {
			skippedLength++
			continue
		}
		un, uok := graph.Node(e.From)
		vn, vok := graph.Node(e.To)
		if !uok || !vok {
			skippedEndpoint++
			continue
		}
		var straight float64
		if projected {
			straight = geo.Euclidean(un.Point(), vn.Point())
		} else {
			straight = geo.Haversine(un.Point(), vn.Point())
		}
		if straight == 0 {
			skippedZero++
			continue
		}
		sum += length / straight
		n++
	}
	if skipped := skippedLength + skippedEndpoint + skippedZero; skipped > 0 {
		level.Warn(logger).Log("msg", "circuity_avg skipped edges", "bad_length", skippedLength,
			"missing_endpoint", skippedEndpoint, "zero_distance", skippedZero)
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// SelfLoopProportion returns loops / total edges; 0 if the graph has no
// edges.
func SelfLoopProportion(graph *g.Graph) float64 {
	total := graph.EdgeCount()
	if total == 0 {
		return 0
	}
	loops := 0
	for _, e := range graph.Edges() {
		if e.From == e.To {
			loops++
		}
	}
	return float64(loops) / float64(total)
}

// OrientationEntropy computes the Shannon entropy (natural log) of the
// double-counted bearing histogram described in spec §4.9. Returns (0,
// false) for an empty bearings slice.
func OrientationEntropy(bearings []float64, bins int) (float64, bool) {
	if len(bearings) == 0 {
		return 0, false
	}
	if bins <= 0 {
		bins = 36
	}

	doubleBins := 2 * bins
	width := 360.0 / float64(doubleBins)
	hist := make([]float64, doubleBins)
	for _, b := range bearings {
		b = math.Mod(b, 360)
		if b < 0 {
			b += 360
		}
		idx := int(b / width)
		if idx >= doubleBins {
			idx = doubleBins - 1
		}
		hist[idx]++
	}

	// Roll the last bin to the front so a bin straddling 0/360 isn't split.
	rolled := make([]float64, doubleBins)
	rolled[0] = hist[doubleBins-1]
	copy(rolled[1:], hist[:doubleBins-1])

	merged := make([]float64, bins)
	for i := 0; i < bins; i++ {
		merged[i] = rolled[2*i] + rolled[2*i+1]
	}

	total := 0.0
	for _, c := range merged {
		total += c
	}
	if total == 0 {
		return 0, false
	}

	entropy := 0.0
	for _, c := range merged {
		if c == 0 {
			continue
		}
		p := c / total
		entropy -= p * math.Log(p)
	}
	return entropy, true
}

// Histogram ranks the distinct values of a node or edge attribute by
// descending frequency, grounded directly on fbenz-osmrouting's
// alg.Histogram/Samples sort-by-count idiom.
type Histogram struct {
	Value string
	Count int
}

// StreetCountHistogram ranks street_count values by frequency, highest
// first, ties broken by the value itself for determinism.
func StreetCountHistogram(graph *g.Graph) []Histogram {
	counts := map[int]int{}
	for _, n := range graph.Nodes() {
		if sc, ok := n.Attrs["street_count"].AsNumber(); ok {
			counts[int(sc)]++
		}
	}
	keys := make([]int, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]Histogram, len(keys))
	for i, k := range keys {
		out[i] = Histogram{Value: strconv.Itoa(k), Count: counts[k]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func canonicalPair(a, b string) [2]string {
	if a <= b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

