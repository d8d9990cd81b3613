package models

import "fmt"

// Resource names a CAPI endpoint.
type Resource string

const (
	ResourceProfile        Resource = "profile"
	ResourceFleetCarrier   Resource = "fleetcarrier"
	ResourceMarket         Resource = "market"
	ResourceShipyard       Resource = "shipyard"
	ResourceCommunityGoals Resource = "communitygoals"
	ResourceJournal        Resource = "journal"
)

// CachedResources are served through the read-through cache.
var CachedResources = []Resource{
	ResourceProfile,
	ResourceFleetCarrier,
	ResourceMarket,
	ResourceShipyard,
	ResourceCommunityGoals,
}

// Cacheable reports whether r goes through the cache.
func (r Resource) Cacheable() bool {
	for _, c := range CachedResources {
		if c == r {
			return true
		}
	}
	return false
}

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	switch r := Resource(s); r {
	case ResourceProfile, ResourceFleetCarrier, ResourceMarket, ResourceShipyard,
		ResourceCommunityGoals, ResourceJournal:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resource: %s", s)
	}
}

// Environment selects the CAPI server.
type Environment string

const (
	EnvLive Environment = "live"
	EnvBeta Environment = "beta"
)

// Environments lists every CAPI environment.
var Environments = []Environment{EnvLive, EnvBeta}

// EnvironmentFor maps the beta flag used by commands.
func EnvironmentFor(beta bool) Environment {
	if beta {
		return EnvBeta
	}
	return EnvLive
}
