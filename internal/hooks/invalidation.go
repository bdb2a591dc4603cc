package hooks

import "github.com/radieske/bet-client-sync/internal/store"

// Famílias de recurso (primeiro segmento das CacheKeys)
const (
	ResourceBets         = "bets"
	ResourceBalance      = "balance"
	ResourceAuthSession  = "auth-session"
	ResourceTransactions = "transactions"
	ResourceSportsEvents = "sports-events"
)

// MutationKind identifica uma mutação com conjunto de invalidação declarado
type MutationKind string

const (
	MutationPlaceBet      MutationKind = "place-bet"
	MutationUpdateBalance MutationKind = "update-balance"
)

// invalidationSets: tabela fixa mutação -> prefixos invalidados após sucesso.
// Não é inferida da resposta; o raio de cada mutação se lê aqui.
//
// auth-session aparece nas duas por compatibilidade com a UI (tier/saldo da
// sessão). Provavelmente é sobre-invalidação, não dependência real.
var invalidationSets = map[MutationKind][]store.Key{
	MutationPlaceBet: {
		store.NewKey(ResourceBets),
		store.NewKey(ResourceBalance),
		store.NewKey(ResourceAuthSession),
	},
	MutationUpdateBalance: {
		store.NewKey(ResourceBalance),
		store.NewKey(ResourceAuthSession),
	},
}

// InvalidationSet devolve uma cópia dos prefixos invalidados por kind.
func InvalidationSet(kind MutationKind) []store.Key {
	return append([]store.Key(nil), invalidationSets[kind]...)
}

// MutationKinds lista as mutações declaradas.
func MutationKinds() []MutationKind {
	return []MutationKind{MutationPlaceBet, MutationUpdateBalance}
}
