// Package fallback decide para onde encaminhar o usuário quando a fonte
// primária de dados esportivos esgota a cota.
//
// Dois estados: Normal e Degraded. Normal -> Degraded ao receber
// *gateway.QuotaExhaustedError; Degraded -> Normal só com uma resposta
// primária bem-sucedida. Não há timer nem retry automático: o texto de reset
// é apenas informativo.
package fallback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/gateway"
)

type State int

const (
	StateNormal State = iota
	StateDegraded
)

func (s State) String() string {
	if s == StateDegraded {
		return "degraded"
	}
	return "normal"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = StateNormal
	case "degraded":
		*s = StateDegraded
	default:
		return fmt.Errorf("fallback: unknown state %q", b)
	}
	return nil
}

// Rotas alternativas oferecidas enquanto Degraded
const (
	RouteVirtualSports = "virtual-sports"
	RouteSecondaryGame = "secondary-game"
)

// ResetNotice é a expectativa de retorno exibida ao usuário
const ResetNotice = "Live sports data will be back when the provider quota resets at the start of the next monthly cycle."

var (
	ErrNotDegraded  = errors.New("fallback: primary source is available")
	ErrUnknownRoute = errors.New("fallback: unknown route")
)

type Route struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

var routes = []Route{
	{Name: RouteVirtualSports, Title: "Virtual Sports", Path: "/virtual-sports"},
	{Name: RouteSecondaryGame, Title: "Crash Game", Path: "/games/crash"},
}

// Notice é o estado exibido pela UI. Routes e ResetNotice só vêm preenchidos em Degraded.
type Notice struct {
	State       State     `json:"state"`
	Since       time.Time `json:"since"`
	Reason      string    `json:"reason,omitempty"`
	ResetNotice string    `json:"resetNotice,omitempty"`
	Routes      []Route   `json:"routes,omitempty"`
	Chosen      string    `json:"chosen,omitempty"`
}

// Callbacks de métricas, chamados sob o lock do controller (não devem chamá-lo de volta)
type Callbacks struct {
	OnTransition  func(to State)
	OnRouteChosen func(name string)
}

type Controller struct {
	log *zap.Logger
	cb  Callbacks
	now func() time.Time

	notify *notifier

	mu        sync.RWMutex
	state     State
	since     time.Time
	reason    string
	chosen    string
	nextID    uint64
	listeners map[uint64]func(Notice)
}

type Option func(*Controller)

func WithCallbacks(cb Callbacks) Option { return func(c *Controller) { c.cb = cb } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// New cria o controller em Normal
func New(log *zap.Logger, opts ...Option) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		log:       log,
		now:       time.Now,
		listeners: make(map[uint64]func(Notice)),
	}
	for _, o := range opts {
		o(c)
	}
	c.since = c.now()
	c.notify = newNotifier(c.log)
	return c
}

// Close entrega os Notices pendentes e encerra a goroutine de entrega.
// Não deve ser chamado de dentro de um listener.
func (c *Controller) Close() {
	c.notify.close()
}

// ObserveOutcome implementa gateway.Observer. Só cota esgotada e sucesso em
// path primário mudam o estado; qualquer outra falha é ignorada.
func (c *Controller) ObserveOutcome(o gateway.Outcome) {
	var qerr *gateway.QuotaExhaustedError
	switch {
	case errors.As(o.Err, &qerr):
		c.QuotaExhausted(qerr.Error())
	case o.Err == nil && o.Primary:
		c.PrimaryRecovered()
	}
}

// QuotaExhausted leva o controller a Degraded (idempotente)
func (c *Controller) QuotaExhausted(reason string) {
	c.transition(StateDegraded, reason)
}

// PrimaryRecovered volta a Normal após resposta primária bem-sucedida
func (c *Controller) PrimaryRecovered() {
	c.transition(StateNormal, "")
}

func (c *Controller) transition(to State, reason string) {
	c.mu.Lock()
	if c.state == to {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.since = c.now()
	c.reason = reason
	c.chosen = ""
	// enfileirado sob mu: a fila segue a ordem das transições
	c.notify.push(delivery{notice: c.noticeLocked(), listeners: c.listenersLocked()})
	// métricas também sob mu, senão o gauge pode terminar fora de ordem
	if c.cb.OnTransition != nil {
		c.cb.OnTransition(to)
	}
	c.mu.Unlock()

	if to == StateDegraded {
		c.log.Warn("primary source quota exhausted, offering fallback routes", zap.String("reason", reason))
	} else {
		c.log.Info("primary source recovered")
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Notice() Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.noticeLocked()
}

// Routes devolve as rotas alternativas (não depende do estado)
func Routes() []Route {
	return append([]Route(nil), routes...)
}

// Choose registra a rota escolhida pelo usuário. Só vale em Degraded.
func (c *Controller) Choose(name string) (Route, error) {
	c.mu.Lock()
	if c.state != StateDegraded {
		c.mu.Unlock()
		return Route{}, ErrNotDegraded
	}
	r, ok := findRoute(name)
	if !ok {
		c.mu.Unlock()
		return Route{}, ErrUnknownRoute
	}
	c.chosen = r.Name
	c.notify.push(delivery{notice: c.noticeLocked(), listeners: c.listenersLocked()})
	c.mu.Unlock()

	c.log.Info("fallback route chosen", zap.String("route", r.Name))
	if c.cb.OnRouteChosen != nil {
		c.cb.OnRouteChosen(r.Name)
	}
	return r, nil
}

// Subscribe recebe cada mudança de Notice, entregue de forma assíncrona e em
// ordem numa goroutine do controller. Um fn lento atrasa só os Notices
// seguintes, nunca quem provocou a transição.
func (c *Controller) Subscribe(fn func(Notice)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) noticeLocked() Notice {
	n := Notice{State: c.state, Since: c.since}
	if c.state == StateDegraded {
		n.Reason = c.reason
		n.ResetNotice = ResetNotice
		n.Routes = Routes()
		n.Chosen = c.chosen
	}
	return n
}

func (c *Controller) listenersLocked() []func(Notice) {
	ls := make([]func(Notice), 0, len(c.listeners))
	for _, l := range c.listeners {
		ls = append(ls, l)
	}
	return ls
}

func findRoute(name string) (Route, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}
