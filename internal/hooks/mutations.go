package hooks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/gateway"
	"github.com/radieske/bet-client-sync/internal/hooks/dto"
	"github.com/radieske/bet-client-sync/internal/store"
)

// MutationError: escrita falhou; nenhuma entrada do cache foi tocada.
// Unwrap devolve o erro do gateway intacto.
type MutationError struct {
	Kind MutationKind
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation %s: %v", e.Kind, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Publisher propaga a invalidação para outras instâncias (ex: Redis).
type Publisher interface {
	PublishInvalidation(ctx context.Context, mutation string, prefixes []store.Key) error
}

// Mutations envolve as escritas no gateway com seu conjunto fixo de invalidação.
type Mutations struct {
	store *store.Store
	gw    Requester
	log   *zap.Logger
	pub   Publisher

	onResult func(kind MutationKind, err error) // métricas
}

type MutationOption func(*Mutations)

func WithPublisher(p Publisher) MutationOption { return func(m *Mutations) { m.pub = p } }

// WithResultCallback é chamada após cada mutação (err nil = sucesso)
func WithResultCallback(fn func(MutationKind, error)) MutationOption {
	return func(m *Mutations) { m.onResult = fn }
}

func NewMutations(s *store.Store, gw Requester, log *zap.Logger, opts ...MutationOption) *Mutations {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Mutations{store: s, gw: gw, log: log}
	for _, o := range opts {
		o(m)
	}
	return m
}

// PlaceBet: POST /bets/place; no sucesso invalida bets, balance e auth-session.
func (m *Mutations) PlaceBet(ctx context.Context, data dto.BetData) (dto.Bet, error) {
	var bet dto.Bet
	if err := m.run(ctx, MutationPlaceBet, "/bets/place", data, &bet); err != nil {
		return dto.Bet{}, err
	}
	return bet, nil
}

// UpdateBalance: POST /balance/update; no sucesso invalida balance e auth-session.
// Description é opcional e não altera o conjunto invalidado.
func (m *Mutations) UpdateBalance(ctx context.Context, upd dto.BalanceUpdate) (dto.BalanceSnapshot, error) {
	var snap dto.BalanceSnapshot
	if err := m.run(ctx, MutationUpdateBalance, "/balance/update", upd, &snap); err != nil {
		return dto.BalanceSnapshot{}, err
	}
	return snap, nil
}

func (m *Mutations) run(ctx context.Context, kind MutationKind, path string, body, out any) error {
	err := m.gw.Request(ctx, gateway.MethodPost, path, body, out)
	if err != nil && !writeApplied(err) {
		m.log.Warn("mutation failed", zap.String("mutation", string(kind)), zap.Error(err))
		m.result(kind, err)
		return &MutationError{Kind: kind, Err: err}
	}

	prefixes := invalidationSets[kind]
	n := m.store.Invalidate(prefixes...)
	m.log.Debug("mutation applied",
		zap.String("mutation", string(kind)),
		zap.Stringers("invalidated", prefixes),
		zap.Int("entries", n),
	)

	if m.pub != nil {
		if perr := m.pub.PublishInvalidation(ctx, string(kind), prefixes); perr != nil {
			m.log.Warn("publish invalidation failed", zap.String("mutation", string(kind)), zap.Error(perr))
		}
	}

	if err != nil {
		// servidor aplicou a escrita mas a resposta não pôde ser lida
		m.result(kind, err)
		return &MutationError{Kind: kind, Err: err}
	}
	m.result(kind, nil)
	return nil
}

// writeApplied: resposta 2xx cujo corpo falhou na decodificação
func writeApplied(err error) bool {
	var gerr *gateway.Error
	return errors.As(err, &gerr) && gerr.Status >= 200 && gerr.Status < 300
}

func (m *Mutations) result(kind MutationKind, err error) {
	if m.onResult != nil {
		m.onResult(kind, err)
	}
}
