// Package graph implements the directed multigraph data model (C2) and the
// builder (C3) that turns raw map elements into one.
//
// The model generalizes the teacher's fixed-field AdjacencyList/Edge struct
// (internal/util/graph/graph.go in JogRoute) into attribute-bag nodes and
// edges addressed by string ids, with parallel edges distinguished by an
// opaque key instead of the teacher's global edgeId counter.
package graph

import (
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/osmgraph/osmgraph/internal/errs"
)

// Node is a junction or way terminus. X/Y are required once a node is
// inserted into a graph intended for analysis; everything else lives in
// Attrs.
type Node struct {
	ID    string
	Attrs AttrStore
}

func (n *Node) X() float64 {
	v, _ := n.Attrs["x"].AsNumber()
	return v
}

func (n *Node) Y() float64 {
	v, _ := n.Attrs["y"].AsNumber()
	return v
}

func (n *Node) Point() orb.Point {
	return orb.Point{n.X(), n.Y()}
}

// Edge is a directed road segment. Key distinguishes parallel edges between
// the same ordered pair.
type Edge struct {
	Key   string
	From  string
	To    string
	Attrs AttrStore
}

func (e *Edge) Length() float64 {
	v, _ := e.Attrs["length"].AsNumber()
	return v
}

func (e *Edge) Geometry() (orb.LineString, bool) {
	return e.Attrs["geometry"].AsGeometry()
}

// Graph is a directed multigraph with graph/node/edge attribute spaces. It
// exclusively owns its node and edge attribute stores; derived structures
// (GeoJSON, routed paths) must copy out of it.
//
// Not safe for concurrent mutation (spec §5): callers serialize access to a
// single Graph the same way the teacher serializes access to its
// AdjacencyList via the route finder's own mutexes.
type Graph struct {
	Attrs AttrStore

	nodes     map[string]*Node
	nodeOrder []string

	edges     map[string]*Edge
	edgeOrder []string

	// out[from][to] is the insertion-ordered list of edge keys from from to
	// to; in[to][from] mirrors it. On removal the key is filtered out of that
	// pair's list in place, which keeps removal O(degree) and avoids the
	// teacher's slice-splice RemoveEdge bugs when multiple parallel edges
	// share an endpoint.
	out map[string]map[string][]string
	in  map[string]map[string][]string
}

// New returns an empty graph with simplified=false and the given CRS.
func New(crs string) *Graph {
	return &Graph{
		Attrs: AttrStore{
			"crs":        String(crs),
			"simplified": Bool(false),
		},
		nodes: map[string]*Node{},
		edges: map[string]*Edge{},
		out:   map[string]map[string][]string{},
		in:    map[string]map[string][]string{},
	}
}

func (g *Graph) CRS() string {
	v, _ := g.Attrs["crs"].AsString()
	return v
}

func (g *Graph) Simplified() bool {
	v, _ := g.Attrs["simplified"].AsBool()
	return v
}

// AddNode inserts (or overwrites) a node with the given attributes.
func (g *Graph) AddNode(id string, attrs AttrStore) *Node {
	if attrs == nil {
		attrs = AttrStore{}
	}
	n := &Node{ID: id, Attrs: attrs}
	if _, exists := g.nodes[id]; !exists {
		g.nodeOrder = append(g.nodeOrder, id)
	}
	g.nodes[id] = n
	return n
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// RemoveNode deletes a node and every edge incident to it.
func (g *Graph) RemoveNode(id string) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	for to, keys := range g.out[id] {
		for _, k := range append([]string{}, keys...) {
			g.RemoveEdgeByKey(k)
		}
		_ = to
	}
	for from, keys := range g.in[id] {
		for _, k := range append([]string{}, keys...) {
			g.RemoveEdgeByKey(k)
		}
		_ = from
	}
	delete(g.nodes, id)
	delete(g.out, id)
	delete(g.in, id)
}

// Nodes returns nodes in stable insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, id := range g.nodeOrder {
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }

// AddEdge inserts a directed edge from -> to with a fresh opaque key and
// returns it. Both endpoints must already exist.
func (g *Graph) AddEdge(from, to string, attrs AttrStore) (string, error) {
	if _, ok := g.nodes[from]; !ok {
		return "", errs.New(errs.ValidationFailed, "add edge: unknown from node "+from)
	}
	if _, ok := g.nodes[to]; !ok {
		return "", errs.New(errs.ValidationFailed, "add edge: unknown to node "+to)
	}
	key := uuid.NewString()
	return g.addEdgeWithKey(key, from, to, attrs)
}

// AddEdgeWithKey inserts a directed edge from -> to under a caller-supplied
// key instead of minting a fresh uuid. Callers that must preserve edge
// identity across a round trip (the GraphML codec restoring a parallel
// edge's original key) use this instead of AddEdge. Both endpoints must
// already exist and key must not already be in use.
func (g *Graph) AddEdgeWithKey(key, from, to string, attrs AttrStore) (string, error) {
	if key == "" {
		return "", errs.New(errs.ValidationFailed, "add edge: empty key")
	}
	if _, ok := g.nodes[from]; !ok {
		return "", errs.New(errs.ValidationFailed, "add edge: unknown from node "+from)
	}
	if _, ok := g.nodes[to]; !ok {
		return "", errs.New(errs.ValidationFailed, "add edge: unknown to node "+to)
	}
	if _, exists := g.edges[key]; exists {
		return "", errs.New(errs.ValidationFailed, "add edge: key already in use: "+key)
	}
	return g.addEdgeWithKey(key, from, to, attrs)
}

func (g *Graph) addEdgeWithKey(key, from, to string, attrs AttrStore) (string, error) {
	if attrs == nil {
		attrs = AttrStore{}
	}
	e := &Edge{Key: key, From: from, To: to, Attrs: attrs}
	g.edges[key] = e
	g.edgeOrder = append(g.edgeOrder, key)

	if g.out[from] == nil {
		g.out[from] = map[string][]string{}
	}
	g.out[from][to] = append(g.out[from][to], key)

	if g.in[to] == nil {
		g.in[to] = map[string][]string{}
	}
	g.in[to][from] = append(g.in[to][from], key)

	return key, nil
}

func (g *Graph) Edge(key string) (*Edge, bool) {
	e, ok := g.edges[key]
	return e, ok
}

// RemoveEdgeByKey deletes a single parallel edge by its key.
func (g *Graph) RemoveEdgeByKey(key string) {
	e, ok := g.edges[key]
	if !ok {
		return
	}
	delete(g.edges, key)
	g.out[e.From][e.To] = removeString(g.out[e.From][e.To], key)
	g.in[e.To][e.From] = removeString(g.in[e.To][e.From], key)
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Edges returns edges in stable insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, k := range g.edgeOrder {
		if e, ok := g.edges[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) EdgeCount() int { return len(g.edges) }

// EdgesBetween returns every parallel edge from -> to, insertion order.
func (g *Graph) EdgesBetween(from, to string) []*Edge {
	keys := g.out[from][to]
	out := make([]*Edge, 0, len(keys))
	for _, k := range keys {
		if e, ok := g.edges[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// OutEdges returns every edge leaving id, ordered first by destination id
// (sorted) then by parallel-edge insertion order.
func (g *Graph) OutEdges(id string) []*Edge {
	var out []*Edge
	dests := make([]string, 0, len(g.out[id]))
	for to := range g.out[id] {
		dests = append(dests, to)
	}
	sort.Strings(dests)
	for _, to := range dests {
		out = append(out, g.EdgesBetween(id, to)...)
	}
	return out
}

// InEdges returns every edge arriving at id.
func (g *Graph) InEdges(id string) []*Edge {
	var out []*Edge
	froms := make([]string, 0, len(g.in[id]))
	for from := range g.in[id] {
		froms = append(froms, from)
	}
	sort.Strings(froms)
	for _, from := range froms {
		out = append(out, g.EdgesBetween(from, id)...)
	}
	return out
}

func (g *Graph) OutDegree(id string) int {
	n := 0
	for _, keys := range g.out[id] {
		n += len(keys)
	}
	return n
}

func (g *Graph) InDegree(id string) int {
	n := 0
	for _, keys := range g.in[id] {
		n += len(keys)
	}
	return n
}

// TotalDegree is in-degree plus out-degree. A self-loop edge is counted in
// both.
func (g *Graph) TotalDegree(id string) int {
	return g.OutDegree(id) + g.InDegree(id)
}

// UniqueNeighbors returns the set of distinct nodes reachable by a single
// edge in either direction, excluding id itself (self-loops don't count as
// a neighbor).
func (g *Graph) UniqueNeighbors(id string) []string {
	seen := map[string]bool{}
	for to := range g.out[id] {
		if to != id {
			seen[to] = true
		}
	}
	for from := range g.in[id] {
		if from != id {
			seen[from] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasSelfLoop reports whether id has an edge to itself.
func (g *Graph) HasSelfLoop(id string) bool {
	return len(g.out[id][id]) > 0
}

// Clone returns a deep-enough copy: fresh node/edge maps and attribute
// stores, safe to mutate independently of g.
func (g *Graph) Clone() *Graph {
	out := New(g.CRS())
	out.Attrs = g.Attrs.Clone()
	for _, n := range g.Nodes() {
		out.AddNode(n.ID, n.Attrs.Clone())
	}
	for _, e := range g.Edges() {
		out.addEdgeWithKey(e.Key, e.From, e.To, e.Attrs.Clone())
	}
	return out
}
