package liveview

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/fallback"
	"github.com/radieske/bet-client-sync/internal/hooks"
)

const writeWait = 5 * time.Second

// Hub gerencia conexões WebSocket dos renderizadores de UI. Cada assinatura
// de view de uma conexão é uma assinatura no cache store; desconectar cancela todas.
// Mudanças do fallback são enviadas a todas as conexões.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader
	views    *hooks.Views
	fb       *fallback.Controller

	mu      sync.RWMutex
	clients map[*client]struct{}

	unsubFallback func()

	OnConnect    func() // métricas
	OnDisconnect func()
}

type client struct {
	conn *websocket.Conn
	log  *zap.Logger

	writeMu sync.Mutex // gorilla aceita um único writer por vez

	mu   sync.Mutex
	subs map[string]func() // view?param -> unsubscribe
}

// NewHub cria o hub com política customizada de origem (CORS)
func NewHub(log *zap.Logger, views *hooks.Views, fb *fallback.Controller, allowOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		views:    views,
		fb:       fb,
		clients:  make(map[*client]struct{}),
	}
	h.unsubFallback = fb.Subscribe(h.broadcastNotice)
	return h
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, log: h.log, subs: make(map[string]func())}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}

	n := h.fb.Notice()
	c.send(ServerMsg{Type: "fallback", Notice: &n})

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.subscribe(c, msg)
		case "unsubscribe":
			c.drop(subID(msg))
		case "ping":
			c.send(ServerMsg{Type: "pong"})
		default:
			c.send(ServerMsg{Type: "error", Error: "unknown message type"})
		}
	}

	// Cancela as assinaturas e remove a conexão ao desconectar
	c.dropAll()
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	_ = conn.Close()
	if h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

func (h *Hub) subscribe(c *client, msg ClientMsg) {
	id := subID(msg)
	c.mu.Lock()
	_, dup := c.subs[id]
	c.mu.Unlock()
	if dup {
		return
	}

	b, err := resolve(h.views, msg.View, msg.Param)
	if err != nil {
		c.send(ServerMsg{Type: "error", View: msg.View, Param: msg.Param, Error: err.Error()})
		return
	}
	unsub, err := b.subscribe(c.send)
	if err != nil {
		c.send(ServerMsg{Type: "error", View: msg.View, Param: msg.Param, Error: err.Error()})
		return
	}

	c.mu.Lock()
	if _, dup := c.subs[id]; dup {
		c.mu.Unlock()
		unsub()
		return
	}
	c.subs[id] = unsub
	c.mu.Unlock()
}

// broadcastNotice envia o novo estado do fallback para todos os clientes conectados
func (h *Hub) broadcastNotice(n fallback.Notice) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.send(ServerMsg{Type: "fallback", Notice: &n})
	}
}

// Connections devolve quantos clientes estão conectados
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close deixa de ouvir o fallback e derruba as conexões abertas
func (h *Hub) Close() {
	h.unsubFallback()
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

func (c *client) send(m ServerMsg) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(m); err != nil {
		c.log.Debug("ws write failed", zap.String("type", m.Type), zap.Error(err))
	}
}

func (c *client) drop(id string) {
	c.mu.Lock()
	unsub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		unsub()
	}
}

func (c *client) dropAll() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]func())
	c.mu.Unlock()
	for _, unsub := range subs {
		unsub()
	}
}

func subID(m ClientMsg) string { return m.View + "?" + m.Param }
