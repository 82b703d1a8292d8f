package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niksmo/inventory/internal/core/domain"
	"github.com/niksmo/inventory/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

const slowDownDelay = time.Second

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	Close()
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type ConsumerOpt func(*consumerOpts) error

type consumerOpts struct {
	cl      ConsumerClient
	decoder Decoder
}

// ConsumerClientOpt tails topic from its end without a consumer group.
func ConsumerClientOpt(
	seedBrokers []string, topic string, tlsCfg *tls.Config,
) ConsumerOpt {
	return func(opts *consumerOpts) error {
		if len(seedBrokers) == 0 {
			return errors.New("no seed brokers")
		}
		kopts := []kgo.Opt{
			kgo.SeedBrokers(seedBrokers...),
			kgo.ConsumeTopics(topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		}
		if tlsCfg != nil {
			kopts = append(kopts, kgo.DialTLSConfig(tlsCfg))
		}

		cl, err := kgo.NewClient(kopts...)
		if err != nil {
			return err
		}
		opts.cl = cl
		return nil
	}
}

func ConsumerClientInstanceOpt(cl ConsumerClient) ConsumerOpt {
	return func(opts *consumerOpts) error {
		if cl == nil {
			return errors.New("consumer client is nil")
		}
		opts.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(opts *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		opts.decoder = decoder
		return nil
	}
}

// A ChangeConsumer reads the catalog changes published by [ChangeProducer].
type ChangeConsumer struct {
	cl            ConsumerClient
	decoder       Decoder
	slowDownTimer *time.Timer
}

func NewChangeConsumer(opts ...ConsumerOpt) (ChangeConsumer, error) {
	const op = "NewChangeConsumer"

	if len(opts) != 2 {
		panic(fmt.Errorf("%s: %w", op, ErrTooFewOpts)) // develop mistake
	}

	var options consumerOpts
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return ChangeConsumer{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	timer := time.NewTimer(0)
	<-timer.C
	return ChangeConsumer{options.cl, options.decoder, timer}, nil
}

// Run passes every decoded change to fn until ctx is done. Undecodable
// records are logged and skipped.
func (c ChangeConsumer) Run(ctx context.Context, fn func(domain.ProductChange)) {
	const op = "ChangeConsumer.Run"
	log := slog.With("op", op)

	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			err := c.consume(ctx, fn)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				log.Error("failed to consume", "err", err)
				c.slowDown(ctx)
			}
		}
	}
}

func (c ChangeConsumer) consume(
	ctx context.Context, fn func(domain.ProductChange),
) error {
	const op = "ChangeConsumer.consume"
	log := slog.With("op", op)

	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fetchesErr(fetches); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fetches.EachRecord(func(r *kgo.Record) {
		var v schema.ProductChangeV1
		if err := c.decoder.Decode(r.Value, &v); err != nil {
			log.Warn("skip undecodable record",
				"partition", r.Partition, "offset", r.Offset, "err", err)
			return
		}
		fn(fromChangeV1(v))
	})
	return nil
}

func fetchesErr(fetches kgo.Fetches) error {
	var errsMessages []string
	fetches.EachError(func(t string, p int32, err error) {
		errsMessages = append(errsMessages,
			fmt.Sprintf("topic %q partition %d: %q", t, p, err))
	})

	if len(errsMessages) != 0 {
		return errors.New(strings.Join(errsMessages, "; "))
	}
	return nil
}

func (c ChangeConsumer) slowDown(ctx context.Context) {
	c.slowDownTimer.Reset(slowDownDelay)
	select {
	case <-ctx.Done():
		c.slowDownTimer.Stop()
	case <-c.slowDownTimer.C:
	}
}

func (c ChangeConsumer) Close() {
	const op = "ChangeConsumer.Close"
	log := slog.With("op", op)
	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}

func fromChangeV1(v schema.ProductChangeV1) domain.ProductChange {
	return domain.ProductChange{
		Action:    domain.ChangeAction(v.Action),
		ProductID: v.ProductID,
		Product: domain.Product{
			ID:       v.ProductID,
			Title:    v.Title,
			Price:    v.Price,
			Category: v.Category,
		},
		OccurredAt: v.OccurredAt,
	}
}
