package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"flakeload/internal/records"
	"flakeload/pkg/errors"
)

// SyncProducer is the part of *kgo.Client the producer uses.
type SyncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Delivery summarizes one Produce call.
type Delivery struct {
	Produced    int
	PerProducer []int
	Duration    time.Duration
}

// Producer publishes generated orders over several clients.
type Producer struct {
	clients   []SyncProducer
	gen       *records.Generator
	batchSize int
	logger    *slog.Logger
}

// NewProducer returns a Producer sending batchSize records per request.
func NewProducer(clients []SyncProducer, gen *records.Generator, batchSize int, logger *slog.Logger) *Producer {
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{clients: clients, gen: gen, batchSize: batchSize, logger: logger}
}

// Produce generates n orders, deals them round-robin over the clients and
// sends each client's share concurrently. The first failure cancels the
// remaining sends.
func (p *Producer) Produce(ctx context.Context, n int) (Delivery, error) {
	start := time.Now()
	if len(p.clients) == 0 {
		return Delivery{}, errors.New(errors.ErrCodeProduceFailed, "no producer clients")
	}

	orders, err := p.gen.Orders(n)
	if err != nil {
		return Delivery{}, err
	}

	shares := make([][]*kgo.Record, len(p.clients))
	for i, o := range orders {
		value, err := records.MarshalOrder(o)
		if err != nil {
			return Delivery{}, err
		}
		idx := i % len(p.clients)
		shares[idx] = append(shares[idx], &kgo.Record{Key: []byte(o.OrderID), Value: value})
	}

	delivery := Delivery{PerProducer: make([]int, len(p.clients))}
	g, gctx := errgroup.WithContext(ctx)
	for i, client := range p.clients {
		g.Go(func() error {
			share := shares[i]
			for lo := 0; lo < len(share); lo += p.batchSize {
				hi := min(lo+p.batchSize, len(share))
				if err := client.ProduceSync(gctx, share[lo:hi]...).FirstErr(); err != nil {
					return errors.Wrap(err, errors.ErrCodeProduceFailed, "failed to produce orders").
						WithContext("producer", i).
						WithContext("sent", lo)
				}
				delivery.PerProducer[i] = hi
				p.logger.DebugContext(gctx, "Produced batch", slog.Int("producer", i), slog.Int("records", hi-lo))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return delivery, err
	}

	delivery.Produced = len(orders)
	delivery.Duration = time.Since(start)
	p.logger.InfoContext(ctx, "Produced orders",
		slog.Int("orders", delivery.Produced),
		slog.Int("producers", len(p.clients)),
		slog.Duration("duration", delivery.Duration),
	)
	return delivery, nil
}
