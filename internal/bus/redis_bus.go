// Package bus propaga invalidações de cache entre instâncias do cliente via
// Redis Pub/Sub. Cada instância publica o conjunto invalidado após uma
// mutação e aplica localmente os conjuntos publicados pelas outras.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/store"
	"github.com/radieske/bet-client-sync/pkg/contracts/events"
)

// Invalidator é a parte do cache store usada pelo bus
type Invalidator interface {
	Invalidate(prefixes ...store.Key) int
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type RedisBus struct {
	r       *redis.Client
	pub     publisher
	channel string
	origin  string
	inv     Invalidator
	log     *zap.Logger
	now     func() time.Time

	OnReceived func(mutation string) // métricas
}

// NewRedisBus cria o bus com um Origin novo para esta instância
func NewRedisBus(r *redis.Client, channel string, inv Invalidator, log *zap.Logger) *RedisBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBus{
		r:       r,
		pub:     r,
		channel: channel,
		origin:  uuid.NewString(),
		inv:     inv,
		log:     log,
		now:     time.Now,
	}
}

func (b *RedisBus) Origin() string { return b.origin }

// PublishInvalidation implementa hooks.Publisher
func (b *RedisBus) PublishInvalidation(ctx context.Context, mutation string, prefixes []store.Key) error {
	msg := events.CacheInvalidation{
		Origin:   b.origin,
		Mutation: mutation,
		Prefixes: make([][]string, 0, len(prefixes)),
		Ts:       b.now().UTC(),
	}
	for _, p := range prefixes {
		msg.Prefixes = append(msg.Prefixes, p.Segments())
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bus: marshal: %w", err)
	}
	if err := b.pub.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	return nil
}

// Start escuta o canal até ctx ser cancelado
func (b *RedisBus) Start(ctx context.Context) {
	sub := b.r.Subscribe(ctx, b.channel)
	ch := sub.Channel()
	b.log.Info("invalidation bus subscribed", zap.String("channel", b.channel), zap.String("origin", b.origin))
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg == nil {
					continue
				}
				if err := b.handle([]byte(msg.Payload)); err != nil {
					b.log.Error("invalidation bus message", zap.Error(err))
				}
			}
		}
	}()
}

// handle aplica uma mensagem recebida; mensagens da própria instância são ignoradas
func (b *RedisBus) handle(payload []byte) error {
	var msg events.CacheInvalidation
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("bus: unmarshal: %w", err)
	}
	if msg.Origin == b.origin {
		return nil
	}

	keys := make([]store.Key, 0, len(msg.Prefixes))
	for _, segs := range msg.Prefixes {
		if len(segs) == 0 {
			continue
		}
		keys = append(keys, store.KeyOf(segs))
	}
	if len(keys) == 0 {
		return nil
	}

	n := b.inv.Invalidate(keys...)
	b.log.Debug("remote invalidation applied",
		zap.String("mutation", msg.Mutation),
		zap.String("origin", msg.Origin),
		zap.Int("entries", n),
	)
	if b.OnReceived != nil {
		b.OnReceived(msg.Mutation)
	}
	return nil
}
