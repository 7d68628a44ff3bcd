package graph

import (
	"os"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/osmgraph/osmgraph/internal/errs"
	"github.com/osmgraph/osmgraph/internal/geo"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "graph")
}

// CreatedWith is stamped onto every built graph's created_with attribute.
const CreatedWith = "osmgraph"

// onewayValues and reversedValues implement spec §4.3 rule (iii) and the
// reversal condition (the roundabout rule is applied in decideOneway), grounded on azybler-map_router__parser.go's
// directionFlags oneway switch, generalized into the exact value sets the
// spec names.
var onewayValues = map[string]bool{
	"yes": true, "true": true, "1": true,
	"-1": true, "reverse": true, "T": true, "F": true,
}

var reversedValues = map[string]bool{
	"-1": true, "reverse": true, "T": true,
}

// RawElement is one parsed map element: a node or a way, after tag
// filtering by the fetcher. This is the logical shape the collaborator
// contract in spec §6 hands to the builder — "async iterator of response
// batches {elements:[{type, id, lat, lon?, nodes?, tags?}]}" — flattened to
// a single Go struct per element.
type RawElement struct {
	Type string // "node" or "way"
	ID   int64

	Lat, Lon float64 // node only

	Nodes []int64 // way only: node ids in order

	Tags map[string]string
}

// BuildOptions configures oneway inference (spec §4.3).
type BuildOptions struct {
	// NetworkType selects the caller flag used by rule (ii).
	NetworkType string
	// BidirectionalNetworkTypes names network types for which rule (ii)
	// forces bidirectional edges regardless of tags.
	BidirectionalNetworkTypes map[string]bool
	// AllOneway is the global "treat all as oneway" override, rule (i).
	AllOneway bool
	// CRS stamped on the built graph's crs attribute.
	CRS string
}

// Build converts one or more batches of raw elements into a graph, per spec
// §4.3. Oneway/reversal rules are applied per-way; length is stamped on
// every edge from endpoint great-circle distance.
func Build(batches [][]RawElement, opts BuildOptions) (*Graph, error) {
	type rawNode struct {
		lat, lon float64
		tags     map[string]string
	}
	type rawWay struct {
		osmid int64
		nodes []int64
		tags  map[string]string
	}

	nodeDict := map[int64]rawNode{}
	var pathDict []rawWay

	for _, batch := range batches {
		for _, el := range batch {
			switch el.Type {
			case "node":
				nodeDict[el.ID] = rawNode{lat: el.Lat, lon: el.Lon, tags: el.Tags}
			case "way":
				if !accessible(el.Tags, opts.NetworkType) {
					continue
				}
				nodes := dedupConsecutive(el.Nodes)
				pathDict = append(pathDict, rawWay{osmid: el.ID, nodes: nodes, tags: el.Tags})
			}
		}
	}

	if len(nodeDict) == 0 && len(pathDict) == 0 {
		return nil, errs.New(errs.EmptyResponse, "fetcher returned no nodes and no ways")
	}

	crs := opts.CRS
	if crs == "" {
		crs = "epsg:4326"
	}

	g := New(crs)
	g.Attrs["created_date"] = String(time.Now().UTC().Format(time.RFC3339))
	g.Attrs["created_with"] = String(CreatedWith)

	for id, n := range nodeDict {
		attrs := AttrStore{
			"x": Number(n.lon),
			"y": Number(n.lat),
		}
		for k, v := range n.tags {
			attrs[k] = String(v)
		}
		g.AddNode(strconv.FormatInt(id, 10), attrs)
	}

	bidirectional := opts.BidirectionalNetworkTypes != nil && opts.BidirectionalNetworkTypes[opts.NetworkType]
	skippedSegments := 0

	for _, way := range pathDict {
		oneway, reversed := decideOneway(way.tags, opts.AllOneway, bidirectional)

		nodes := way.nodes
		if oneway && reversed {
			nodes = reverseInt64(nodes)
		}

		for i := 0; i < len(nodes)-1; i++ {
			u := strconv.FormatInt(nodes[i], 10)
			v := strconv.FormatInt(nodes[i+1], 10)

			un, uOk := g.Node(u)
			vn, vOk := g.Node(v)
			if !uOk || !vOk {
				// A way referencing a node outside this batch's node
				// dictionary; skip the segment rather than fail the whole
				// build.
				skippedSegments++
				continue
			}

			length := geo.Haversine(un.Point(), vn.Point())

			fwdAttrs := edgeAttrs(way.osmid, way.tags, length, oneway, false)
			if _, err := g.AddEdge(u, v, fwdAttrs); err != nil {
				return nil, err
			}

			if !oneway {
				bwdAttrs := edgeAttrs(way.osmid, way.tags, length, oneway, true)
				if _, err := g.AddEdge(v, u, bwdAttrs); err != nil {
					return nil, err
				}
			}
		}
	}
	if skippedSegments > 0 {
		level.Warn(logger).Log("msg", "skipped way segments referencing unknown nodes", "count", skippedSegments)
	}

	return g, nil
}

func edgeAttrs(osmid int64, tags map[string]string, length float64, oneway, reversed bool) AttrStore {
	attrs := AttrStore{
		"osmid":    Number(float64(osmid)),
		"length":   Number(length),
		"oneway":   Bool(oneway),
		"reversed": Bool(reversed),
	}
	for k, v := range tags {
		attrs[k] = String(v)
	}
	return attrs
}

// decideOneway applies spec §4.3 step 4's ordered rules and returns whether
// the way is oneway and, if so, whether its node sequence must be reversed
// before edges are emitted.
func decideOneway(tags map[string]string, allOneway, bidirectional bool) (oneway, reversed bool) {
	if allOneway {
		return true, false
	}
	if bidirectional {
		return false, false
	}
	if v, ok := tags["oneway"]; ok && onewayValues[v] {
		return true, reversedValues[v]
	}
	if tags["junction"] == "roundabout" {
		return true, false
	}
	return false, false
}

func dedupConsecutive(ids []int64) []int64 {
	if len(ids) == 0 {
		return ids
	}
	out := make([]int64, 0, len(ids))
	out = append(out, ids[0])
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1] {
			out = append(out, ids[i])
		}
	}
	return out
}

func reverseInt64(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, v := range ids {
		out[len(ids)-1-i] = v
	}
	return out
}
