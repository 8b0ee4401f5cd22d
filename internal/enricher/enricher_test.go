package enricher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"battlescope/internal/identity"
	"battlescope/pkg/dto"
)

type fakeResolver struct {
	calls   []identity.ResourceClass
	records map[identity.ResourceClass]map[int64]identity.Record
}

func (f *fakeResolver) ResolveBatch(ctx context.Context, class identity.ResourceClass, ids []int64) map[int64]identity.Record {
	f.calls = append(f.calls, class)
	return f.records[class]
}

func TestResolveCoalescesOneCallPerCategory(t *testing.T) {
	resolver := &fakeResolver{
		records: map[identity.ResourceClass]map[int64]identity.Record{
			identity.ClassCharacter: {
				100: {ID: 100, Name: "Alice", Category: identity.ClassCharacter},
				101: {ID: 101, Name: "Bob", Category: identity.ClassCharacter},
			},
			identity.ClassAlliance: {
				200: {ID: 200, Name: "Goonswarm", Category: identity.ClassAlliance, Ticker: "CONDI"},
			},
		},
	}
	e := New(resolver)

	result := e.Resolve(context.Background(), Request{
		CharacterIDs: []dto.U64{100, 101, 100}, // duplicate collapses to one lookup
		AllianceIDs:  []dto.U64{200},
	})

	require.Len(t, resolver.calls, 2)
	require.Equal(t, "Alice", result["100"].Name)
	require.Equal(t, "Bob", result["101"].Name)
	require.Equal(t, "Goonswarm", result["200"].Name)
	require.Equal(t, "CONDI", result["200"].Ticker)
}

func TestResolveOmitsUnresolvedIdentifiers(t *testing.T) {
	resolver := &fakeResolver{
		records: map[identity.ResourceClass]map[int64]identity.Record{
			identity.ClassCharacter: {100: {ID: 100, Name: "Alice", Category: identity.ClassCharacter}},
		},
	}
	e := New(resolver)

	result := e.Resolve(context.Background(), Request{CharacterIDs: []dto.U64{100, 999}})

	require.Len(t, result, 1)
	_, ok := result["999"]
	require.False(t, ok)
}

func TestResolveSkipsEmptyCategories(t *testing.T) {
	resolver := &fakeResolver{records: map[identity.ResourceClass]map[int64]identity.Record{}}
	e := New(resolver)

	result := e.Resolve(context.Background(), Request{})

	require.Empty(t, result)
	require.Empty(t, resolver.calls)
}
