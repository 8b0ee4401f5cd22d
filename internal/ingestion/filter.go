package ingestion

import (
	"battlescope/internal/killmail"
	"battlescope/internal/ruleset"
	"battlescope/pkg/sde"
)

// decision is the admission filter's outcome for a single event.
type decision int

const (
	admit decision = iota
	drop
)

// evaluateFilter implements §4.4's admission rule against the current
// ruleset: a minimum-pilot floor, then either an allow-everything default or
// an allowlist intersection, then an optional security-type restriction.
func evaluateFilter(event killmail.Event, r ruleset.Ruleset, classifier *sde.Classifier) decision {
	if event.ParticipantCount() < int(r.MinPilots) {
		return drop
	}

	// ignore_unlisted is the sole toggle for list-gated admission: when
	// unset, tracked alliance/corp lists don't filter anything (they may
	// still be configured for other uses), so every event reaches the
	// security-type check below. A ruleset with ignore_unlisted set but no
	// lists actually configured has nothing to gate on either, so it falls
	// through the same way rather than dropping every event.
	if r.IgnoreUnlisted && r.HasTrackedLists() && !intersectsTrackedLists(event, r) {
		return drop
	}

	if len(r.TrackedSecurityTypes) > 0 {
		security := ruleset.SecurityType(classifier.ClassifySystem(event.SystemID))
		if !securityTypeTracked(security, r.TrackedSecurityTypes) {
			return drop
		}
	}

	return admit
}

func intersectsTrackedLists(event killmail.Event, r ruleset.Ruleset) bool {
	allianceSet := toSet(r.TrackedAllianceIDs)
	corpSet := toSet(r.TrackedCorpIDs)

	if event.VictimAllianceID != nil && allianceSet[int64(*event.VictimAllianceID)] {
		return true
	}
	if event.VictimCorpID != nil && corpSet[int64(*event.VictimCorpID)] {
		return true
	}
	for _, id := range event.AttackerAllianceIDs {
		if allianceSet[int64(id)] {
			return true
		}
	}
	for _, id := range event.AttackerCorpIDs {
		if corpSet[int64(id)] {
			return true
		}
	}
	return false
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func securityTypeTracked(security ruleset.SecurityType, tracked []ruleset.SecurityType) bool {
	for _, t := range tracked {
		if t == security {
			return true
		}
	}
	return false
}
