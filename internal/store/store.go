// Package store mantém as views lidas da API remota em cache, com invalidação
// por prefixo de chave, deduplicação de fetch por geração e notificação de
// assinantes.
//
// Regras:
//   - no máximo um fetch em voo por (chave, geração); leituras concorrentes se juntam a ele
//   - cada Invalidate incrementa a geração das entradas casadas; um fetch só grava
//     de volta se a geração da entrada não mudou desde o início dele
//   - falha de fetch deixa a entrada stale e é devolvida ao chamador, sem retry
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Status de uma entrada do cache
type Status int

const (
	StatusStale Status = iota // ausente ou invalidada
	StatusFresh
	StatusFetching
)

func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusFetching:
		return "fetching"
	default:
		return "stale"
	}
}

// Fetcher busca o valor de uma view na API remota.
type Fetcher func(ctx context.Context) (any, error)

// Snapshot é o estado imutável de uma entrada entregue aos assinantes.
type Snapshot struct {
	Key        Key
	Value      any
	HasValue   bool
	Status     Status
	Generation uint64
	Err        error
	UpdatedAt  time.Time
}

// Listener recebe cada mudança de estado da chave assinada.
type Listener func(Snapshot)

var (
	ErrClosed    = errors.New("store: closed")
	errNoFetcher = errors.New("no fetcher registered")
)

// TransientFetchError: falha de leitura (rede/servidor). A entrada continua stale.
type TransientFetchError struct {
	Key Key
	Err error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("store: fetch %s: %v", e.Key, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// Callbacks de métricas, todas opcionais; recebem a família da chave
type Callbacks struct {
	OnHit        func(family string)
	OnFetch      func(family string)
	OnFetchError func(family string)
	OnDiscard    func(family string) // resultado descartado por geração nova
	OnInvalidate func(family string)
	OnEvict      func(family string)
}

type entry struct {
	key        Key
	value      any
	hasValue   bool
	status     Status
	generation uint64
	err        error
	updatedAt  time.Time
	lastAccess time.Time

	fetch       Fetcher
	subscribers int
	listeners   map[uint64]Listener
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:        e.key,
		Value:      e.value,
		HasValue:   e.hasValue,
		Status:     e.status,
		Generation: e.generation,
		Err:        e.err,
		UpdatedAt:  e.updatedAt,
	}
}

// Store é o cache de views do processo. Criado uma vez no start e encerrado com Close.
type Store struct {
	log          *zap.Logger
	cb           Callbacks
	fetchTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	nextSub uint64
	closed  bool

	flights singleflight.Group
	ctx     context.Context
	cancel  context.CancelFunc
	d       *dispatcher
}

type Option func(*Store)

// WithFetchTimeout limita cada fetch compartilhado; d <= 0 = sem limite (só o Close cancela)
func WithFetchTimeout(d time.Duration) Option { return func(s *Store) { s.fetchTimeout = d } }

func WithCallbacks(cb Callbacks) Option { return func(s *Store) { s.cb = cb } }

// WithClock substitui time.Now (testes de Prune)
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New cria o store e inicia o dispatcher de notificações.
func New(log *zap.Logger, opts ...Option) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		log:          log,
		fetchTimeout: 10 * time.Second,
		now:          time.Now,
		entries:      make(map[string]*entry),
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, o := range opts {
		o(s)
	}
	s.d = newDispatcher(log)
	return s
}

// Read devolve o valor fresh em cache sem ida à rede; se ausente ou stale,
// inicia um fetch (ou se junta ao que está em voo) e espera o resultado.
// Cancelar ctx só libera o chamador; o fetch compartilhado continua.
func (s *Store) Read(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	e := s.entryLocked(key, fetch)
	e.lastAccess = s.now()
	if e.status == StatusFresh {
		v := e.value
		s.mu.Unlock()
		s.log.Debug("cache hit", zap.Stringer("key", key))
		call(s.cb.OnHit, key.Family())
		return v, nil
	}
	ch := s.fetchLocked(e)
	s.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registra l para a chave. O assinante recebe o estado atual e
// cada mudança seguinte; se a entrada estiver ausente ou stale, um fetch é iniciado.
func (s *Store) Subscribe(key Key, fetch Fetcher, l Listener) (unsubscribe func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}, ErrClosed
	}

	e := s.entryLocked(key, fetch)
	e.lastAccess = s.now()
	s.nextSub++
	id := s.nextSub
	e.listeners[id] = l
	e.subscribers++

	s.d.push(notification{snap: e.snapshot(), listeners: []Listener{l}})
	if e.status == StatusStale {
		s.fetchLocked(e)
	}

	var once sync.Once
	return func() { once.Do(func() { s.unsubscribe(e, id) }) }, nil
}

func (s *Store) unsubscribe(e *entry, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := e.listeners[id]; !ok {
		return
	}
	delete(e.listeners, id)
	e.subscribers--
	e.lastAccess = s.now()
}

// Invalidate marca como stale toda entrada cuja chave casa com algum dos
// prefixos e incrementa sua geração, tudo sob o mesmo lock: nenhum leitor vê
// parte do conjunto invalidada e parte não. Entradas com assinantes são
// rebuscadas na hora; as demais ficam stale até a próxima leitura.
// Retorna quantas entradas casaram.
func (s *Store) Invalidate(prefixes ...Key) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}

	n := 0
	for _, e := range s.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		n++
		e.generation++
		e.status = StatusStale
		s.notifyLocked(e)
		call(s.cb.OnInvalidate, e.key.Family())

		if e.subscribers > 0 {
			s.fetchLocked(e)
		}
	}
	s.log.Debug("invalidated", zap.Stringers("prefixes", prefixes), zap.Int("entries", n))
	return n
}

func matchesAny(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.Matches(p) {
			return true
		}
	}
	return false
}

// Peek devolve o estado atual da chave sem buscar nada.
func (s *Store) Peek(key Key) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key.id()]
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Prune remove entradas sem assinantes, fora de fetch e ociosas há maxIdle ou mais.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, e := range s.entries {
		if e.subscribers > 0 || e.status == StatusFetching || now.Sub(e.lastAccess) < maxIdle {
			continue
		}
		delete(s.entries, id)
		call(s.cb.OnEvict, e.key.Family())
		n++
	}
	if n > 0 {
		s.log.Debug("pruned idle entries", zap.Int("entries", n))
	}
	return n
}

// StartJanitor executa Prune a cada interval até o Close. interval <= 0 desliga o janitor.
func (s *Store) StartJanitor(interval, maxIdle time.Duration) {
	if interval <= 0 {
		s.log.Info("cache janitor disabled", zap.Duration("interval", interval))
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.Prune(maxIdle)
			}
		}
	}()
}

// Close cancela fetches em voo, entrega notificações pendentes e encerra o dispatcher.
// Não deve ser chamado de dentro de um Listener.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.d.close()
	s.log.Info("cache store closed")
}

// entryLocked retorna (ou cria stale) a entrada da chave; fetch não nil substitui o registrado
func (s *Store) entryLocked(key Key, fetch Fetcher) *entry {
	id := key.id()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{
			key:        key,
			status:     StatusStale,
			generation: 1,
			listeners:  make(map[uint64]Listener),
		}
		s.entries[id] = e
	}
	if fetch != nil {
		e.fetch = fetch
	}
	return e
}

// fetchLocked inicia o fetch da geração atual ou se junta ao que já está em voo.
func (s *Store) fetchLocked(e *entry) <-chan singleflight.Result {
	if e.fetch == nil {
		ch := make(chan singleflight.Result, 1)
		ch <- singleflight.Result{Err: &TransientFetchError{Key: e.key, Err: errNoFetcher}}
		return ch
	}

	gen := e.generation
	if e.status != StatusFetching {
		e.status = StatusFetching
		e.err = nil
		s.notifyLocked(e)
		call(s.cb.OnFetch, e.key.Family())
		s.log.Debug("fetch started", zap.Stringer("key", e.key), zap.Uint64("generation", gen))
	} else {
		s.log.Debug("joining in-flight fetch", zap.Stringer("key", e.key), zap.Uint64("generation", gen))
	}

	fetch := e.fetch
	return s.flights.DoChan(flightKey(e.key, gen), func() (any, error) {
		return s.runFetch(e, gen, fetch)
	})
}

func (s *Store) runFetch(e *entry, gen uint64, fetch Fetcher) (any, error) {
	ctx, cancel := s.fetchContext()
	defer cancel()
	v, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	// a próxima leitura desta geração (após falha) deve abrir um fetch novo
	s.flights.Forget(flightKey(e.key, gen))

	if err != nil {
		err = &TransientFetchError{Key: e.key, Err: err}
	}

	if s.closed || e.generation != gen || s.entries[e.key.id()] != e {
		s.log.Debug("discarding superseded fetch",
			zap.Stringer("key", e.key),
			zap.Uint64("fetch_generation", gen),
			zap.Uint64("current_generation", e.generation),
		)
		call(s.cb.OnDiscard, e.key.Family())
		return v, err
	}

	if err != nil {
		e.status = StatusStale
		e.err = err
		s.notifyLocked(e)
		call(s.cb.OnFetchError, e.key.Family())
		s.log.Warn("fetch failed", zap.Stringer("key", e.key), zap.Error(err))
		return nil, err
	}

	e.value = v
	e.hasValue = true
	e.status = StatusFresh
	e.err = nil
	e.updatedAt = s.now()
	s.notifyLocked(e)
	return v, nil
}

func (s *Store) fetchContext() (context.Context, context.CancelFunc) {
	if s.fetchTimeout <= 0 {
		return context.WithCancel(s.ctx)
	}
	return context.WithTimeout(s.ctx, s.fetchTimeout)
}

func (s *Store) notifyLocked(e *entry) {
	if len(e.listeners) == 0 {
		return
	}
	ls := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		ls = append(ls, l)
	}
	s.d.push(notification{snap: e.snapshot(), listeners: ls})
}

func flightKey(k Key, gen uint64) string {
	return k.id() + "#" + strconv.FormatUint(gen, 10)
}

func call(fn func(string), family string) {
	if fn != nil {
		fn(family)
	}
}
