package ruleset

import "errors"

var (
	errMinPilots        = errors.New("ruleset: min_pilots must be at least 1")
	errTooManyAlliances = errors.New("ruleset: tracked_alliance_ids exceeds 250 entries")
	errTooManyCorps     = errors.New("ruleset: tracked_corp_ids exceeds 250 entries")
	errTooManySystems   = errors.New("ruleset: tracked_system_ids exceeds 1000 entries")
)
