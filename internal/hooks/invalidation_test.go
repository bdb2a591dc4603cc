package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radieske/bet-client-sync/internal/store"
)

func families(keys []store.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

func TestInvalidationSets(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{ResourceBets, ResourceBalance, ResourceAuthSession},
		families(InvalidationSet(MutationPlaceBet)))

	assert.ElementsMatch(t,
		[]string{ResourceBalance, ResourceAuthSession},
		families(InvalidationSet(MutationUpdateBalance)))

	assert.Empty(t, InvalidationSet("unknown"))
}

func TestInvalidationSetsNeverTouchTransactions(t *testing.T) {
	for _, kind := range MutationKinds() {
		for _, k := range InvalidationSet(kind) {
			assert.False(t, k.Matches(store.NewKey(ResourceTransactions)), "%s invalidates %s", kind, k)
			assert.False(t, k.Matches(store.NewKey(ResourceSportsEvents)), "%s invalidates %s", kind, k)
		}
	}
}

func TestInvalidationSetReturnsCopy(t *testing.T) {
	set := InvalidationSet(MutationUpdateBalance)
	set[0] = store.NewKey(ResourceTransactions)

	assert.Equal(t, []string{ResourceBalance, ResourceAuthSession}, families(InvalidationSet(MutationUpdateBalance)))
}
