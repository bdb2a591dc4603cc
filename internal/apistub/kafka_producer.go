package apistub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/bet-client-sync/internal/shared/kafka"
	"github.com/radieske/bet-client-sync/pkg/contracts/events"
)

// Confirmer publica a confirmação de uma aposta recém-criada
type Confirmer interface {
	PublishBetConfirmed(ctx context.Context, e events.BetConfirmed) error
}

type KafkaConfirmer struct {
	Writer *kafka.Writer
}

func NewKafkaConfirmer(w *kafka.Writer) *KafkaConfirmer {
	return &KafkaConfirmer{Writer: w}
}

func (p *KafkaConfirmer) PublishBetConfirmed(ctx context.Context, e events.BetConfirmed) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return skafka.WriteJSON(ctx, p.Writer, e.UserID, b)
}
