// Package settlement consome os eventos bet_confirmed emitidos pelo backend e
// invalida as views que a confirmação (ou o estorno de uma rejeição) altera.
package settlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/bet-client-sync/internal/hooks"
	"github.com/radieske/bet-client-sync/internal/store"
	"github.com/radieske/bet-client-sync/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo consumer
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type Invalidator interface {
	Invalidate(prefixes ...store.Key) int
}

// Consumer invalida [bets] e [balance] para cada bet_confirmed do usuário.
// UserID vazio = aceita eventos de qualquer usuário.
type Consumer struct {
	Log    *zap.Logger
	Reader MessageReader
	Store  Invalidator
	UserID string

	Backoff time.Duration // espera após falha de leitura (default 500ms)

	OnConsumed func(status string) // métricas
	OnError    func(string)        // métricas por fase
}

var settledPrefixes = []store.Key{
	store.NewKey(hooks.ResourceBets),
	store.NewKey(hooks.ResourceBalance),
}

// Run consome até ctx ser cancelado
func (c *Consumer) Run(ctx context.Context) error {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	for {
		m, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Log.Warn("kafka read failed", zap.Error(err))
			c.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		c.handle(m.Value)
	}
}

func (c *Consumer) handle(value []byte) {
	var ev events.BetConfirmed
	if err := json.Unmarshal(value, &ev); err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		c.fail("decode")
		return
	}
	if c.UserID != "" && ev.UserID != c.UserID {
		return
	}

	n := c.Store.Invalidate(settledPrefixes...)
	c.Log.Debug("bet settlement applied",
		zap.String("bet_id", ev.BetID),
		zap.String("status", ev.Status),
		zap.Int("entries", n),
	)
	if c.OnConsumed != nil {
		c.OnConsumed(ev.Status)
	}
}

func (c *Consumer) fail(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}
