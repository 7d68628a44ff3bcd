package graph

// networkHighways lists the highway tag values accessible for each network
// type, grounded on azybler-map_router__parser.go's carHighways set and
// generalized to walk/bike networks. "all" disables highway filtering
// (every highway class is kept), matching the map service's own "all"
// network type; the access-tag check still applies.
var networkHighways = map[string]map[string]bool{
	"drive": {
		"motorway": true, "motorway_link": true,
		"trunk": true, "trunk_link": true,
		"primary": true, "primary_link": true,
		"secondary": true, "secondary_link": true,
		"tertiary": true, "tertiary_link": true,
		"unclassified": true, "residential": true,
		"living_street": true, "service": true,
	},
	"walk": {
		"footway": true, "path": true, "pedestrian": true,
		"living_street": true, "residential": true, "service": true,
		"steps": true, "track": true, "unclassified": true,
	},
	"bike": {
		"cycleway": true, "path": true, "track": true,
		"residential": true, "living_street": true, "service": true,
		"unclassified": true, "tertiary": true, "secondary": true,
	},
}

// accessible reports whether a way with the given tags should be kept for
// networkType. An empty/"all" networkType keeps everything.
func accessible(tags map[string]string, networkType string) bool {
	if networkType == "" || networkType == "all" {
		return allowedByAccessTags(tags)
	}

	allowed, ok := networkHighways[networkType]
	if !ok {
		return allowedByAccessTags(tags)
	}
	if !allowed[tags["highway"]] {
		return false
	}
	return allowedByAccessTags(tags)
}

// allowedByAccessTags drops ways explicitly closed to general access,
// grounded on azybler-map_router__parser.go's isCarAccessible access/
// motor_vehicle checks, generalized to any network type.
func allowedByAccessTags(tags map[string]string) bool {
	switch tags["access"] {
	case "no", "private":
		return false
	}
	return true
}
