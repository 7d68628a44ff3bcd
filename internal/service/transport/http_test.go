package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/osmgraph/osmgraph/internal/geo"
	"github.com/osmgraph/osmgraph/internal/service"
	"github.com/osmgraph/osmgraph/internal/service/endpoints"
)

type stubService struct{}

func (stubService) BuildFromOverpass(ctx context.Context, lat, lon, radiusMeters float64, networkType string) (string, error) {
	return "built", nil
}

func (stubService) FromGeoJSON(ctx context.Context, nodeFC, edgeFC []byte, crs string) (string, []string, error) {
	return "built-from-geojson", nil, nil
}

func (stubService) Simplify(ctx context.Context, graphML string, trackMergedEdges bool) (string, error) {
	return "simplified:" + graphML, nil
}

func (stubService) Consolidate(ctx context.Context, graphML string, tolerance float64) (string, error) {
	return "consolidated", nil
}

func (stubService) TruncateBBox(ctx context.Context, graphML string, box geo.BBox, truncateByEdge bool) (string, error) {
	return "truncated", nil
}

func (stubService) ShortestPath(ctx context.Context, graphML, origin, destination, weight string) (service.PathResult, error) {
	return service.PathResult{Nodes: []string{origin, destination}, Cost: 42}, nil
}

func (stubService) KShortestPaths(ctx context.Context, graphML, origin, destination, weight string, k int) ([]service.PathResult, error) {
	return []service.PathResult{{Nodes: []string{origin, destination}, Cost: 42}}, nil
}

func (stubService) Stats(ctx context.Context, graphML string) (service.StatsResult, error) {
	return service.StatsResult{StreetSegmentCount: 7}, nil
}

func newTestServer() *httptest.Server {
	set := endpoints.NewEndpointSet(stubService{})
	return httptest.NewServer(NewHTTPHandler(set))
}

func TestShortestPathRouteDecodesBodyAndEncodesResult(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{
		"graphml": "<graphml/>", "origin": "a", "destination": "b", "weight": "length",
	})
	resp, err := http.Post(srv.URL+"/api/route/shortest", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/route/shortest error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result service.PathResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.Cost != 42 {
		t.Errorf("result.Cost = %v, want 42", result.Cost)
	}
}

func TestBuildRouteParsesQueryParameters(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/build?lat=1.5&lon=2.5&radius=500&network_type=walk")
	if err != nil {
		t.Fatalf("GET /api/build error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out != "built" {
		t.Errorf("response = %q, want built", out)
	}
}

func TestFromGeoJSONRouteDecodesBodyAndEncodesResult(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{
		"nodes": map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}},
		"edges": map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}},
		"crs":   "epsg:4326",
	})
	resp, err := http.Post(srv.URL+"/api/build/geojson", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/build/geojson error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		GraphML  string   `json:"graphml"`
		Warnings []string `json:"warnings,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if out.GraphML != "built-from-geojson" {
		t.Errorf("response graphml = %q, want built-from-geojson", out.GraphML)
	}
}

func TestBuildRouteMissingParamErrors(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/build?lon=2.5&radius=500")
	if err != nil {
		t.Fatalf("GET /api/build error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Error("missing lat parameter should not return 200")
	}
}

func TestStatsRouteReturnsDecodedResult(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"graphml": "<graphml/>"})
	resp, err := http.Post(srv.URL+"/api/stats", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/stats error: %v", err)
	}
	defer resp.Body.Close()
	var result service.StatsResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if result.StreetSegmentCount != 7 {
		t.Errorf("result.StreetSegmentCount = %d, want 7", result.StreetSegmentCount)
	}
}
