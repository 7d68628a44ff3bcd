// Package config collects the single immutable settings surface the
// toolkit's collaborators are constructed with, replacing the process-global
// settings object the design notes call out as an anti-pattern to avoid.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is passed by value into service.New(cfg), which copies the fields
// it uses into the fetcher and build options it constructs. It is never
// mutated after FromEnv/FromFile returns it.
type Config struct {
	// OverpassURL is the map-element fetcher endpoint.
	OverpassURL string
	// NominatimURL is the gazetteer/geocoder endpoint.
	NominatimURL string
	// UserAgent is sent on every outbound request, per the map service's
	// usage policy.
	UserAgent string
	// RequestTimeout bounds every collaborator HTTP call.
	RequestTimeout time.Duration
	// DefaultCRS is stamped onto graphs built without an explicit CRS.
	DefaultCRS string
	// BidirectionalNetworkTypes lists network types for which the builder's
	// caller-flag oneway rule (§4.3 rule ii) forces bidirectional edges.
	BidirectionalNetworkTypes map[string]bool
	// QueryAreaCeiling is the configured ceiling (square meters) on the area
	// of a single query; 0 means unbounded. osmgraphd reports it in its
	// startup log; no query is checked against it.
	QueryAreaCeiling float64
	// CacheDir is where a collaborator may cache raw fetcher responses. The
	// core never creates or reads this directory itself — ownership is the
	// collaborator's, per §5 Resource policy.
	CacheDir string
	// LogLevel is the configured minimum level name ("INFO", "WARNING",
	// "ERROR"). The package loggers do not filter on it.
	LogLevel string
}

// Default mirrors the teacher's hardcoded fallbacks (the Overpass endpoint
// used by pkg/mapdata.GetMapData, port 8081/8080 defaults in cmd/), but
// collected into one struct instead of scattered literals.
func Default() Config {
	return Config{
		OverpassURL:    "http://overpass-api.de/api/interpreter",
		NominatimURL:   "https://nominatim.openstreetmap.org",
		UserAgent:      "osmgraph/1.0",
		RequestTimeout: 180 * time.Second,
		DefaultCRS:     "epsg:4326",
		BidirectionalNetworkTypes: map[string]bool{
			"walk": true,
			"bike": true,
		},
		QueryAreaCeiling: 0, // 0 == unbounded
		CacheDir:         "",
		LogLevel:         "INFO",
	}
}

// envString mirrors the teacher's cmd/mapdata.envString /
// cmd/routegen.envString helper exactly.
func envString(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// FromEnv builds a Config starting from Default and overriding with
// OSMGRAPH_-prefixed environment variables, the same scheme the teacher uses
// for ADDRESS/PORT/MAP_DATA_URL but centralized into one loader.
func FromEnv() Config {
	cfg := Default()
	cfg.OverpassURL = envString("OSMGRAPH_OVERPASS_URL", cfg.OverpassURL)
	cfg.NominatimURL = envString("OSMGRAPH_NOMINATIM_URL", cfg.NominatimURL)
	cfg.UserAgent = envString("OSMGRAPH_USER_AGENT", cfg.UserAgent)
	cfg.DefaultCRS = envString("OSMGRAPH_DEFAULT_CRS", cfg.DefaultCRS)
	cfg.CacheDir = envString("OSMGRAPH_CACHE_DIR", cfg.CacheDir)
	cfg.LogLevel = envString("OSMGRAPH_LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("OSMGRAPH_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RequestTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("OSMGRAPH_QUERY_AREA_CEILING_M2"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QueryAreaCeiling = f
		}
	}
	if v := os.Getenv("OSMGRAPH_BIDIRECTIONAL_NETWORK_TYPES"); v != "" {
		cfg.BidirectionalNetworkTypes = map[string]bool{}
		for _, t := range strings.Split(v, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				cfg.BidirectionalNetworkTypes[t] = true
			}
		}
	}

	return cfg
}

// FromFile starts from FromEnv (Default plus environment overrides) and
// layers the YAML/TOML/JSON config file at path on top, so values set in the
// file take precedence over both the defaults and the environment.
func FromFile(path string) (Config, error) {
	cfg := FromEnv()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if v.IsSet("overpass_url") {
		cfg.OverpassURL = v.GetString("overpass_url")
	}
	if v.IsSet("nominatim_url") {
		cfg.NominatimURL = v.GetString("nominatim_url")
	}
	if v.IsSet("user_agent") {
		cfg.UserAgent = v.GetString("user_agent")
	}
	if v.IsSet("default_crs") {
		cfg.DefaultCRS = v.GetString("default_crs")
	}
	if v.IsSet("cache_dir") {
		cfg.CacheDir = v.GetString("cache_dir")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}
	if v.IsSet("request_timeout_seconds") {
		cfg.RequestTimeout = time.Duration(v.GetInt("request_timeout_seconds")) * time.Second
	}
	if v.IsSet("query_area_ceiling_m2") {
		cfg.QueryAreaCeiling = v.GetFloat64("query_area_ceiling_m2")
	}
	if v.IsSet("bidirectional_network_types") {
		types := v.GetStringSlice("bidirectional_network_types")
		cfg.BidirectionalNetworkTypes = map[string]bool{}
		for _, t := range types {
			cfg.BidirectionalNetworkTypes[t] = true
		}
	}

	return cfg, nil
}
