// Package endpoints wires service.Service methods into go-kit
// endpoint.Endpoints, grounded on the teacher's pkg/mapdata/endpoints and
// pkg/routegen/endpoints Set types, generalized from one endpoint per
// service to one endpoint per core operation.
package endpoints

import (
	"context"

	"github.com/go-kit/kit/endpoint"

	"github.com/osmgraph/osmgraph/internal/geo"
	"github.com/osmgraph/osmgraph/internal/service"
)

// Set bundles every operation's endpoint.
type Set struct {
	BuildEndpoint        endpoint.Endpoint
	FromGeoJSONEndpoint  endpoint.Endpoint
	SimplifyEndpoint     endpoint.Endpoint
	ConsolidateEndpoint  endpoint.Endpoint
	TruncateBBoxEndpoint endpoint.Endpoint
	ShortestPathEndpoint endpoint.Endpoint
	KShortestEndpoint    endpoint.Endpoint
	StatsEndpoint        endpoint.Endpoint
}

// NewEndpointSet builds a Set backed by svc.
func NewEndpointSet(svc service.Service) Set {
	return Set{
		BuildEndpoint:        makeBuildEndpoint(svc),
		FromGeoJSONEndpoint:  makeFromGeoJSONEndpoint(svc),
		SimplifyEndpoint:     makeSimplifyEndpoint(svc),
		ConsolidateEndpoint:  makeConsolidateEndpoint(svc),
		TruncateBBoxEndpoint: makeTruncateBBoxEndpoint(svc),
		ShortestPathEndpoint: makeShortestPathEndpoint(svc),
		KShortestEndpoint:    makeKShortestEndpoint(svc),
		StatsEndpoint:        makeStatsEndpoint(svc),
	}
}

// BuildRequest is the payload for BuildEndpoint.
type BuildRequest struct {
	Lat, Lon, RadiusMeters float64
	NetworkType            string
}

func makeBuildEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(BuildRequest)
		return svc.BuildFromOverpass(ctx, req.Lat, req.Lon, req.RadiusMeters, req.NetworkType)
	}
}

// FromGeoJSONRequest is the payload for FromGeoJSONEndpoint.
type FromGeoJSONRequest struct {
	NodeFeatures, EdgeFeatures []byte
	CRS                        string
}

// FromGeoJSONResponse carries both the built graph and any skipped-edge
// warnings spec §6 calls for.
type FromGeoJSONResponse struct {
	GraphML  string   `json:"graphml"`
	Warnings []string `json:"warnings,omitempty"`
}

func makeFromGeoJSONEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(FromGeoJSONRequest)
		graphML, warnings, err := svc.FromGeoJSON(ctx, req.NodeFeatures, req.EdgeFeatures, req.CRS)
		if err != nil {
			return nil, err
		}
		return FromGeoJSONResponse{GraphML: graphML, Warnings: warnings}, nil
	}
}

// SimplifyRequest is the payload for SimplifyEndpoint.
type SimplifyRequest struct {
	GraphML          string
	TrackMergedEdges bool
}

func makeSimplifyEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(SimplifyRequest)
		return svc.Simplify(ctx, req.GraphML, req.TrackMergedEdges)
	}
}

// ConsolidateRequest is the payload for ConsolidateEndpoint.
type ConsolidateRequest struct {
	GraphML   string
	Tolerance float64
}

func makeConsolidateEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(ConsolidateRequest)
		return svc.Consolidate(ctx, req.GraphML, req.Tolerance)
	}
}

// TruncateBBoxRequest is the payload for TruncateBBoxEndpoint.
type TruncateBBoxRequest struct {
	GraphML        string
	BBox           geo.BBox
	TruncateByEdge bool
}

func makeTruncateBBoxEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(TruncateBBoxRequest)
		return svc.TruncateBBox(ctx, req.GraphML, req.BBox, req.TruncateByEdge)
	}
}

// ShortestPathRequest is the payload for ShortestPathEndpoint.
type ShortestPathRequest struct {
	GraphML                string
	Origin, Destination    string
	Weight                 string
}

func makeShortestPathEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(ShortestPathRequest)
		return svc.ShortestPath(ctx, req.GraphML, req.Origin, req.Destination, req.Weight)
	}
}

// KShortestRequest is the payload for KShortestEndpoint.
type KShortestRequest struct {
	GraphML             string
	Origin, Destination string
	Weight              string
	K                   int
}

func makeKShortestEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(KShortestRequest)
		return svc.KShortestPaths(ctx, req.GraphML, req.Origin, req.Destination, req.Weight, req.K)
	}
}

// StatsRequest is the payload for StatsEndpoint.
type StatsRequest struct {
	GraphML string
}

func makeStatsEndpoint(svc service.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(StatsRequest)
		return svc.Stats(ctx, req.GraphML)
	}
}
