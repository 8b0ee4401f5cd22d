// Package enricher implements C8: it turns a mixed list of identifiers
// (characters, corporations, alliances, systems, ship types) into a map of
// id to display name, coalescing same-category lookups into one upstream
// batch each rather than resolving identifier-by-identifier.
package enricher

import (
	"context"
	"strconv"
	"sync"

	"battlescope/internal/identity"
	"battlescope/pkg/dto"
)

// Resolver is the subset of identity.Client the enricher depends on,
// narrowed for testability.
type Resolver interface {
	ResolveBatch(ctx context.Context, class identity.ResourceClass, ids []int64) map[int64]identity.Record
}

// Name is one resolved identifier: what C7's response hydration attaches
// next to a raw ID.
type Name struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Ticker   string `json:"ticker,omitempty"`
}

// Request groups the identifiers a caller wants resolved, partitioned by
// category up front so the enricher never has to guess an ID's class.
type Request struct {
	CharacterIDs   []dto.U64
	CorporationIDs []dto.U64
	AllianceIDs    []dto.U64
	SystemIDs      []dto.U64
	ShipTypeIDs    []dto.U64
}

// Enricher wraps C3 with the in-request coalescing spec.md §4.8 requires:
// one upstream batch call per category, regardless of how many individual
// IDs of that category were requested.
type Enricher struct {
	resolver Resolver
}

func New(resolver Resolver) *Enricher {
	return &Enricher{resolver: resolver}
}

// Resolve returns a map keyed by the string form of each input ID (matching
// the wire format every domain ID already uses) to its resolved Name.
// Identifiers the upstream API could not resolve are simply absent from the
// map; callers render the raw ID instead.
func (e *Enricher) Resolve(ctx context.Context, req Request) map[string]Name {
	out := make(map[string]Name)
	var mu sync.Mutex
	var wg sync.WaitGroup

	resolveCategory := func(class identity.ResourceClass, ids []dto.U64) {
		if len(ids) == 0 {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			intIDs := toInt64s(ids)
			records := e.resolver.ResolveBatch(ctx, class, intIDs)

			mu.Lock()
			defer mu.Unlock()
			for id, record := range records {
				out[strconv.FormatInt(id, 10)] = Name{
					Name:     record.Name,
					Category: string(record.Category),
					Ticker:   record.Ticker,
				}
			}
		}()
	}

	resolveCategory(identity.ClassCharacter, req.CharacterIDs)
	resolveCategory(identity.ClassCorporation, req.CorporationIDs)
	resolveCategory(identity.ClassAlliance, req.AllianceIDs)
	resolveCategory(identity.ClassSystem, req.SystemIDs)
	resolveCategory(identity.ClassShipType, req.ShipTypeIDs)

	wg.Wait()
	return out
}

func toInt64s(ids []dto.U64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		v := int64(uint64(id))
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
