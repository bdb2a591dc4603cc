package hooks

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/radieske/bet-client-sync/internal/gateway"
	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/internal/store"
)

// Requester é o contrato do gateway usado por views e mutações.
type Requester interface {
	Request(ctx context.Context, method, path string, body, out any) error
}

// State é o Snapshot do store já tipado para a view.
type State[T any] struct {
	Data       T
	HasData    bool
	Status     store.Status
	Generation uint64
	Err        error
	UpdatedAt  time.Time
}

func stateOf[T any](sn store.Snapshot) State[T] {
	st := State[T]{
		HasData:    sn.HasValue,
		Status:     sn.Status,
		Generation: sn.Generation,
		Err:        sn.Err,
		UpdatedAt:  sn.UpdatedAt,
	}
	if v, ok := sn.Value.(T); ok {
		st.Data = v
	} else if sn.Value != nil {
		var zero T
		st.HasData = false
		if st.Err == nil {
			st.Err = &TypeMismatchError{Key: sn.Key, Got: sn.Value, Want: zero}
		}
	}
	return st
}

// TypeMismatchError: a entrada da chave guarda um valor de outro tipo
// (outra view ou fetcher registrado para a mesma chave).
type TypeMismatchError struct {
	Key  store.Key
	Got  any
	Want any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("hooks: %s: cached value is %T, want %T", e.Key, e.Got, e.Want)
}

// View declara a chave que lê e como buscá-la pelo gateway.
type View[T any] struct {
	key   store.Key
	store *store.Store
	fetch store.Fetcher
}

func (v View[T]) Key() store.Key { return v.key }

// Read devolve o valor em cache ou busca na primeira leitura / após invalidação.
func (v View[T]) Read(ctx context.Context) (T, error) {
	raw, err := v.store.Read(ctx, v.key, v.fetch)
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := raw.(T)
	if !ok && raw != nil {
		var zero T
		return zero, &TypeMismatchError{Key: v.key, Got: raw, Want: zero}
	}
	return t, nil
}

// Subscribe entrega o estado atual e cada mudança da view a fn.
func (v View[T]) Subscribe(fn func(State[T])) (unsubscribe func(), err error) {
	return v.store.Subscribe(v.key, v.fetch, func(sn store.Snapshot) {
		fn(stateOf[T](sn))
	})
}

// Current devolve o estado em cache sem buscar.
func (v View[T]) Current() (State[T], bool) {
	sn, ok := v.store.Peek(v.key)
	if !ok {
		return State[T]{}, false
	}
	return stateOf[T](sn), true
}

// Views constrói as view hooks sobre um store e um gateway.
type Views struct {
	store *store.Store
	gw    Requester
}

func NewViews(s *store.Store, gw Requester) *Views {
	return &Views{store: s, gw: gw}
}

// Bets: GET /user/bets?status=. status vazio = todas as apostas.
func (v *Views) Bets(status string) View[[]dto.Bet] {
	key := store.NewKey(ResourceBets)
	path := "/user/bets"
	if status != "" {
		key = store.NewKey(ResourceBets, status)
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	return View[[]dto.Bet]{
		key:   key,
		store: v.store,
		fetch: getJSON(v.gw, path, func(r dto.BetsResponse) []dto.Bet { return r.Bets }),
	}
}

// Balance: GET /user/balance
func (v *Views) Balance() View[dto.BalanceSnapshot] {
	return View[dto.BalanceSnapshot]{
		key:   store.NewKey(ResourceBalance),
		store: v.store,
		fetch: getJSON(v.gw, "/user/balance", func(r dto.BalanceSnapshot) dto.BalanceSnapshot { return r }),
	}
}

// Transactions: GET /user/transactions?limit=. limit <= 0 = default do servidor.
func (v *Views) Transactions(limit int) View[[]dto.Transaction] {
	key := store.NewKey(ResourceTransactions)
	path := "/user/transactions"
	if limit > 0 {
		l := strconv.Itoa(limit)
		key = store.NewKey(ResourceTransactions, l)
		path += "?" + url.Values{"limit": {l}}.Encode()
	}
	return View[[]dto.Transaction]{
		key:   key,
		store: v.store,
		fetch: getJSON(v.gw, path, func(r dto.TransactionsResponse) []dto.Transaction { return r.Transactions }),
	}
}

// AuthSession: GET /auth/session
func (v *Views) AuthSession() View[dto.Session] {
	return View[dto.Session]{
		key:   store.NewKey(ResourceAuthSession),
		store: v.store,
		fetch: getJSON(v.gw, "/auth/session", func(r dto.Session) dto.Session { return r }),
	}
}

// Events: GET /sports/events?sport=, fonte primária de dados esportivos.
func (v *Views) Events(sport string) View[[]dto.SportEvent] {
	key := store.NewKey(ResourceSportsEvents)
	path := "/sports/events"
	if sport != "" {
		key = store.NewKey(ResourceSportsEvents, sport)
		path += "?" + url.Values{"sport": {sport}}.Encode()
	}
	return View[[]dto.SportEvent]{
		key:   key,
		store: v.store,
		fetch: getJSON(v.gw, path, func(r dto.EventsResponse) []dto.SportEvent { return r.Events }),
	}
}

// getJSON monta o Fetcher: GET em path, decodifica em R e extrai T
func getJSON[R, T any](gw Requester, path string, pick func(R) T) store.Fetcher {
	return func(ctx context.Context) (any, error) {
		var resp R
		if err := gw.Request(ctx, gateway.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return pick(resp), nil
	}
}
