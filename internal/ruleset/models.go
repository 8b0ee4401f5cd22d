// Package ruleset implements C2, the hot-reloadable cache of the single
// active admission ruleset: an in-memory TTL cache backed by Postgres,
// invalidated cross-process via a Redis pub/sub topic whenever C7 writes
// an update.
package ruleset

import "time"

// SecurityType mirrors the classifier's output vocabulary so a ruleset can
// restrict admission to specific space types without importing the
// classifier package itself.
type SecurityType string

const (
	SecurityHighsec  SecurityType = "highsec"
	SecurityLowsec   SecurityType = "lowsec"
	SecurityNullsec  SecurityType = "nullsec"
	SecurityWormhole SecurityType = "wormhole"
	SecurityPochven  SecurityType = "pochven"
)

const (
	MaxTrackedEntities = 250
	MaxTrackedSystems  = 1000
)

// Ruleset is the single active admission policy. ID is a fixed UUID; there
// is exactly one row.
type Ruleset struct {
	ID                   string
	MinPilots            uint16
	TrackedAllianceIDs   []int64
	TrackedCorpIDs       []int64
	TrackedSystemIDs     []int64
	TrackedSecurityTypes []SecurityType
	IgnoreUnlisted       bool
	UpdatedBy            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Validate enforces the size limits and minimums spec.md §3 places on a
// ruleset; C7 must reject an update that fails this before it ever reaches
// the store.
func (r Ruleset) Validate() error {
	if r.MinPilots < 1 {
		return errMinPilots
	}
	if len(r.TrackedAllianceIDs) > MaxTrackedEntities {
		return errTooManyAlliances
	}
	if len(r.TrackedCorpIDs) > MaxTrackedEntities {
		return errTooManyCorps
	}
	if len(r.TrackedSystemIDs) > MaxTrackedSystems {
		return errTooManySystems
	}
	return nil
}

// HasTrackedLists reports whether an alliance or corporation list is
// configured, per the ingestion filter's "no tracked lists configured"
// branch. tracked_system_ids is not counted; the filter's intersection test
// does not look at it either.
func (r Ruleset) HasTrackedLists() bool {
	return len(r.TrackedAllianceIDs) > 0 || len(r.TrackedCorpIDs) > 0
}
