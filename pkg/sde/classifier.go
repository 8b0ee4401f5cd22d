// Package sde exposes the narrow slice of EVE's Static Data Export that
// battlescope actually needs: a solar system's security classification (for
// the ruleset's tracked_security_types filter and a battle's security_type
// column) and a ship's tracked category (for name-enrichment hydration).
package sde

// SecurityType is the ruleset's tracked-security-types enum.
type SecurityType string

const (
	SecurityHighsec  SecurityType = "highsec"
	SecurityLowsec   SecurityType = "lowsec"
	SecurityNullsec  SecurityType = "nullsec"
	SecurityWormhole SecurityType = "wormhole"
	SecurityPochven  SecurityType = "pochven"
)

// SystemInfo is the minimal per-system fact battlescope needs from the SDE.
type SystemInfo struct {
	SolarSystemID  int64
	SecurityStatus float64
}

// pochvenSystemIDs are the 17 Triglavian-occupied systems; the SDE tags them
// with a nominal nullsec-range security status, so they must be special-cased
// rather than derived from the status float alone.
var pochvenSystemIDs = map[int64]bool{
	30000592: true, 30001200: true, 30001201: true, 30001203: true,
	30001204: true, 30001205: true, 30001212: true, 30001213: true,
	30001214: true, 30001215: true, 30001220: true, 30001221: true,
	30001222: true, 30001223: true, 30001224: true, 30001225: true,
	30001226: true,
}

// wormholeSystemIDRange covers J-space (class 1-6, thera, shattered);
// every wormhole system ID in the SDE falls in 31000000-31002999.
const (
	wormholeRangeStart = 31000000
	wormholeRangeEnd   = 31002999
)

// Classify derives a SecurityType from a system's ID and security status.
// No repo in the retrieved pack exposes this as a library call; EVE's own
// security bands are: >=0.45 highsec, >0.0 and <0.45 lowsec, <=0.0 nullsec,
// with wormhole space and Pochven carved out by ID range.
func Classify(sys SystemInfo) SecurityType {
	if pochvenSystemIDs[sys.SolarSystemID] {
		return SecurityPochven
	}
	if sys.SolarSystemID >= wormholeRangeStart && sys.SolarSystemID <= wormholeRangeEnd {
		return SecurityWormhole
	}
	switch {
	case sys.SecurityStatus >= 0.45:
		return SecurityHighsec
	case sys.SecurityStatus > 0.0:
		return SecurityLowsec
	default:
		return SecurityNullsec
	}
}

// SystemResolver looks up a system's security status, e.g. from a cached SDE
// dump or the external-API client (C3). Kept as a capability interface per
// the "global state behind capability interfaces" design note so tests can
// inject a fixed table instead of a live data source.
type SystemResolver interface {
	ResolveSystem(systemID int64) (SystemInfo, bool)
}

// TrackedShipCategories mirrors the group IDs battlescope calls out in
// enrichment responses (hull classes EVE players consider notable in a
// battle report). Group IDs are the EVE SDE's invGroups.groupID.
var TrackedShipCategories = map[int64]string{
	541:  "interdictor",
	833:  "forcerecon",
	963:  "strategic",
	894:  "hic",
	1972: "monitor",
	898:  "blackops",
	900:  "marauders",
	1538: "fax",
	485:  "dread",
	547:  "carrier",
	659:  "super",
	30:   "titan",
	4594: "lancer",
}

// ShipCategory returns the tracked category name for a ship's group ID, or
// "" if the hull isn't one of the notable classes.
func ShipCategory(groupID int64) string {
	return TrackedShipCategories[groupID]
}

// Classifier bundles a SystemResolver with the pure classification rules
// above; it is what gets constructed once at service start and threaded
// through C4 (ingestion filter) and C6 (battle security_type).
type Classifier struct {
	resolver SystemResolver
}

// NewClassifier builds a Classifier with no resolver attached; callers wire
// one in via WithResolver. A Classifier with no resolver treats every system
// as nullsec. No binary in this repository attaches a resolver (pkg/app
// builds the shared Classifier with NewClassifier alone), so the services
// classify every system as nullsec.
func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) WithResolver(r SystemResolver) *Classifier {
	c.resolver = r
	return c
}

func (c *Classifier) ClassifySystem(systemID int64) SecurityType {
	if c.resolver == nil {
		return SecurityNullsec
	}
	info, ok := c.resolver.ResolveSystem(systemID)
	if !ok {
		return SecurityNullsec
	}
	return Classify(info)
}
