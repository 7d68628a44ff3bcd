// Package transport wires endpoints.Set into an http.Handler via go-kit's
// transport/http.Server, grounded on the teacher's pkg/mapdata/transport/
// http.go and pkg/routegen/transport/http.go NewHTTPHandler/decode/encode
// split.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	httptransport "github.com/go-kit/kit/transport/http"

	"github.com/osmgraph/osmgraph/internal/geo"
	"github.com/osmgraph/osmgraph/internal/service/endpoints"
	"github.com/osmgraph/osmgraph/internal/transport/httpkit"
)

// NewHTTPHandler mounts one route per core operation under /api/.
func NewHTTPHandler(ep endpoints.Set) http.Handler {
	m := http.NewServeMux()

	m.Handle("/api/build", httptransport.NewServer(ep.BuildEndpoint, decodeBuildRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/build/geojson", httptransport.NewServer(ep.FromGeoJSONEndpoint, decodeFromGeoJSONRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/simplify", httptransport.NewServer(ep.SimplifyEndpoint, decodeSimplifyRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/consolidate", httptransport.NewServer(ep.ConsolidateEndpoint, decodeConsolidateRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/truncate/bbox", httptransport.NewServer(ep.TruncateBBoxEndpoint, decodeTruncateBBoxRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/route/shortest", httptransport.NewServer(ep.ShortestPathEndpoint, decodeShortestPathRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/route/k-shortest", httptransport.NewServer(ep.KShortestEndpoint, decodeKShortestRequest, httpkit.EncodeJSONResponse))
	m.Handle("/api/stats", httptransport.NewServer(ep.StatsEndpoint, decodeStatsRequest, httpkit.EncodeJSONResponse))

	return m
}

func decodeBuildRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return nil, err
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return nil, err
	}
	radius, err := strconv.ParseFloat(q.Get("radius"), 64)
	if err != nil {
		return nil, err
	}
	return endpoints.BuildRequest{Lat: lat, Lon: lon, RadiusMeters: radius, NetworkType: q.Get("network_type")}, nil
}

func decodeFromGeoJSONRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		Nodes json.RawMessage `json:"nodes"`
		Edges json.RawMessage `json:"edges"`
		CRS   string          `json:"crs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.FromGeoJSONRequest{NodeFeatures: req.Nodes, EdgeFeatures: req.Edges, CRS: req.CRS}, nil
}

func decodeSimplifyRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		GraphML          string `json:"graphml"`
		TrackMergedEdges bool   `json:"track_merged_edges"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.SimplifyRequest{GraphML: req.GraphML, TrackMergedEdges: req.TrackMergedEdges}, nil
}

func decodeConsolidateRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		GraphML   string  `json:"graphml"`
		Tolerance float64 `json:"tolerance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.ConsolidateRequest{GraphML: req.GraphML, Tolerance: req.Tolerance}, nil
}

func decodeTruncateBBoxRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		GraphML        string  `json:"graphml"`
		North          float64 `json:"north"`
		South          float64 `json:"south"`
		East           float64 `json:"east"`
		West           float64 `json:"west"`
		TruncateByEdge bool    `json:"truncate_by_edge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.TruncateBBoxRequest{
		GraphML:        req.GraphML,
		BBox:           geo.BBox{North: req.North, South: req.South, East: req.East, West: req.West},
		TruncateByEdge: req.TruncateByEdge,
	}, nil
}

func decodeShortestPathRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		GraphML     string `json:"graphml"`
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Weight      string `json:"weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.ShortestPathRequest{GraphML: req.GraphML, Origin: req.Origin, Destination: req.Destination, Weight: req.Weight}, nil
}

func decodeKShortestRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		GraphML     string `json:"graphml"`
		Origin      string `json:"origin"`
		Destination string `json:"destination"`
		Weight      string `json:"weight"`
		K           int    `json:"k"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.KShortestRequest{GraphML: req.GraphML, Origin: req.Origin, Destination: req.Destination, Weight: req.Weight, K: req.K}, nil
}

func decodeStatsRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req struct {
		GraphML string `json:"graphml"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return endpoints.StatsRequest{GraphML: req.GraphML}, nil
}
