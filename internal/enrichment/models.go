// Package enrichment implements C5: a worker pool that consumes the
// enrichment queue, resolves identifiers via the identity client (C3), and
// writes EnrichmentRecord state transitions.
package enrichment

import (
	"encoding/json"
	"time"
)

// Status is EnrichmentRecord's state machine: pending -> processing ->
// {succeeded, failed}. A retryable error returns a processing record to
// pending (Store.RequeuePending); failed is terminal, and nothing moves a
// failed record back to pending.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Record is the per-killmail enrichment state row C5 owns exclusively.
type Record struct {
	KillmailID uint64
	Status     Status
	Payload    json.RawMessage
	ErrorTag   string
	Attempts   int
	FetchedAt  *time.Time
	UpdatedAt  time.Time
}

// Payload is the resolved identity bundle written on success: one record
// per role the killmail references.
type Payload struct {
	Victim    *ResolvedParty  `json:"victim,omitempty"`
	Attackers []ResolvedParty `json:"attackers,omitempty"`
	System    *ResolvedName   `json:"system,omitempty"`
}

type ResolvedParty struct {
	CharacterName   string `json:"character_name,omitempty"`
	CorporationName string `json:"corporation_name,omitempty"`
	AllianceName    string `json:"alliance_name,omitempty"`
}

type ResolvedName struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
