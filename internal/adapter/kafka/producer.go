package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/internal/core/port"
	"github.com/niksmo/inventory/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.ChangePublisher = (*ChangeProducer)(nil)

// A ChangeProducer publishes catalog changes as [schema.ProductChangeV1]
// records keyed by product id.
type ChangeProducer struct {
	cl      ProducerClient
	encoder Encoder
	now     func() time.Time
}

func NewChangeProducer(opts ...ProducerOpt) (ChangeProducer, error) {
	const op = "NewChangeProducer"

	if len(opts) != 2 {
		panic(fmt.Errorf("%s: %w", op, ErrTooFewOpts)) // develop mistake
	}

	var options producerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return ChangeProducer{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return ChangeProducer{options.cl, options.encoder, time.Now}, nil
}

func (p ChangeProducer) Close() {
	const op = "ChangeProducer.Close"
	log := slog.With("op", op)
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p ChangeProducer) PublishChange(
	ctx context.Context, c domain.ProductChange,
) error {
	const op = "ChangeProducer.PublishChange"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	r, err := p.createRecord(c)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	res := p.cl.ProduceSync(ctx, r)
	if err := res.FirstErr(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	slog.Debug("change published",
		"op", op, "action", c.Action, "productID", c.ProductID)
	return nil
}

func (p ChangeProducer) createRecord(c domain.ProductChange) (*kgo.Record, error) {
	const op = "ChangeProducer.createRecord"

	v, err := p.encoder.Encode(p.toSchema(c))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	key := strconv.FormatInt(c.ProductID, 10)
	return &kgo.Record{Key: []byte(key), Value: v}, nil
}

func (p ChangeProducer) toSchema(c domain.ProductChange) (s schema.ProductChangeV1) {
	s.Action = string(c.Action)
	s.ProductID = c.ProductID
	s.Title = c.Product.Title
	s.Price = c.Product.Price
	s.Category = c.Product.Category
	at := c.OccurredAt
	if at.IsZero() {
		at = p.now()
	}
	s.OccurredAt = at.UTC().Truncate(time.Millisecond)
	return s
}
