// Package geocode implements the gazetteer collaborator contract spec §6
// names: geocode(q) and geocode_to_gdf(q, which_result?, by_osmid?), plus
// the UTM-zone-defaulting projection helper.
//
// The HTTP client shape (endpoint URL, query params, JSON decode, sentinel
// error on an empty result set) is grounded on the teacher's
// pkg/mapdata/mapdata.go GetMapData, generalized from Overpass's query
// language to Nominatim's search endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/osmgraph/osmgraph/internal/errs"
)

var logger log.Logger

func init() {
	logger = log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "component", "geocode")
}

// Result is one Nominatim-style search hit.
type Result struct {
	OSMID     int64
	OSMType   string
	Lat, Lon  float64
	Importance float64
	Polygon   orb.Geometry // nil if the result has no boundary geometry
	DisplayName string
}

// Client queries a Nominatim-compatible search endpoint.
type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
}

func (c *Client) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://nominatim.openstreetmap.org/search"
}

// search issues the HTTP request and decodes the Nominatim JSON array into
// Results, sorted by importance descending, per spec §6's
// geocode_to_gdf contract.
func (c *Client) search(ctx context.Context, q string, byOSMID bool) ([]Result, error) {
	values := url.Values{}
	values.Set("format", "jsonv2")
	values.Set("polygon_geojson", "1")
	if byOSMID {
		values.Set("osm_ids", q)
	} else {
		values.Set("q", q)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"?"+values.Encode(), nil)
	if err != nil {
		return nil, errs.Wrap(errs.FetcherFailure, "geocode request", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.FetcherFailure, "geocode request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.FetcherFailure, fmt.Sprintf("geocoder returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.FetcherFailure, "reading geocode response", err)
	}

	var raw []struct {
		OSMID       int64           `json:"osm_id"`
		OSMType     string          `json:"osm_type"`
		Lat         string          `json:"lat"`
		Lon         string          `json:"lon"`
		Importance  float64         `json:"importance"`
		DisplayName string          `json:"display_name"`
		GeoJSON     json.RawMessage `json:"geojson"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.Wrap(errs.FetcherFailure, "decoding geocode response", err)
	}

	if len(raw) == 0 {
		return nil, errs.New(errs.GeocodeMiss, "geocoder returned zero results for "+q)
	}

	out := make([]Result, 0, len(raw))
	badGeometry := 0
	for _, r := range raw {
		var lat, lon float64
		fmt.Sscanf(r.Lat, "%f", &lat)
		fmt.Sscanf(r.Lon, "%f", &lon)

		result := Result{
			OSMID: r.OSMID, OSMType: r.OSMType,
			Lat: lat, Lon: lon,
			Importance:  r.Importance,
			DisplayName: r.DisplayName,
		}
		if len(r.GeoJSON) > 0 {
			if geom, err := geojson.UnmarshalGeometry(r.GeoJSON); err == nil {
				result.Polygon = geom.Geometry()
			} else {
				badGeometry++
			}
		}
		out = append(out, result)
	}
	if badGeometry > 0 {
		level.Warn(logger).Log("msg", "geocode results with unparsable geometry", "count", badGeometry)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// Geocode returns the (lat, lon) of the top-importance result for q.
func (c *Client) Geocode(ctx context.Context, q string) (lat, lon float64, err error) {
	results, err := c.search(ctx, q, false)
	if err != nil {
		return 0, 0, err
	}
	return results[0].Lat, results[0].Lon, nil
}

// GeocodeToGDF returns a FeatureCollection of geocoder results for q,
// per spec §6: whichResult selects a single result by its (1-based,
// importance-sorted) rank when > 0; byOSMID switches the query to an
// osm_ids lookup. GeocodeMiss is returned if whichResult is out of range.
func (c *Client) GeocodeToGDF(ctx context.Context, q string, whichResult int, byOSMID bool) (*geojson.FeatureCollection, error) {
	results, err := c.search(ctx, q, byOSMID)
	if err != nil {
		return nil, err
	}

	if whichResult > 0 {
		if whichResult > len(results) {
			return nil, errs.New(errs.GeocodeMiss, "requested result index out of range")
		}
		results = results[whichResult-1 : whichResult]
	}

	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		geom := r.Polygon
		if geom == nil {
			geom = orb.Point{r.Lon, r.Lat}
		}
		f := geojson.NewFeature(geom)
		f.Properties["osm_id"] = r.OSMID
		f.Properties["osm_type"] = r.OSMType
		f.Properties["importance"] = r.Importance
		f.Properties["display_name"] = r.DisplayName
		fc.Append(f)
	}
	return fc, nil
}

// RequirePolygon returns errs.GeocodeMiss if none of results carries a
// (multi)polygon geometry, per spec §7's GeocodeMiss condition "no
// (multi)polygon among results when one is required".
func RequirePolygon(results []Result) (orb.Geometry, error) {
	for _, r := range results {
		switch r.Polygon.(type) {
		case orb.Polygon, orb.MultiPolygon:
			return r.Polygon, nil
		}
	}
	return nil, errs.New(errs.GeocodeMiss, "no polygon among geocoder results")
}

// UTMZoneCode implements spec §6's projection collaborator contract: UTM
// zone defaulting from a center longitude/latitude. zone = floor((lon+180)/6)+1;
// EPSG code = 32600+zone (north) or 32700+zone (south).
func UTMZoneCode(centerLon, centerLat float64) int {
	zone := int(math.Floor((centerLon+180)/6)) + 1
	if centerLat >= 0 {
		return 32600 + zone
	}
	return 32700 + zone
}
