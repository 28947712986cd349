package stream

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"flakeload/internal/config"
	"flakeload/internal/records"
	"flakeload/internal/snowflake"
	"flakeload/pkg/errors"
)

const ordersFile = "orders_data.json"

// RecordSource is the part of *kgo.Client the consumer uses.
type RecordSource interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

// BatchLoader loads one staged file; *snowflake.Loader implements it.
type BatchLoader interface {
	Load(ctx context.Context, req snowflake.LoadRequest) (snowflake.LoadResult, error)
}

// ConsumeSummary counts what Consume processed.
type ConsumeSummary struct {
	Consumed int
	Loaded   int64
	Invalid  int
	Batches  int
}

// OrdersTable is the target table of consumed orders.
func OrdersTable(name string) snowflake.TableSpec {
	return snowflake.TableSpec{
		Name:       name,
		PrimaryKey: "orderId",
		Columns: []snowflake.Column{
			{Name: "orderId", Type: "STRING"},
			{Name: "customerId", Type: "STRING", NotNull: true},
			{Name: "orderDate", Type: "TIMESTAMP_TZ"},
			{Name: "totalAmount", Type: "NUMBER(12,2)"},
			{Name: "items", Type: "ARRAY"},
		},
	}
}

// Consumer drains the orders topic into Snowflake in batches.
type Consumer struct {
	source    RecordSource
	loader    BatchLoader
	table     snowflake.TableSpec
	format    snowflake.FileFormat
	context   snowflake.SessionContext
	batchSize int
	logger    *slog.Logger
}

// NewConsumer loads with the streaming binding when one is configured.
func NewConsumer(source RecordSource, loader BatchLoader, s *config.Settings, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	binding := s.OrdersBinding()
	return &Consumer{
		source: source,
		loader: loader,
		table:  OrdersTable(s.Orders.Table),
		format: snowflake.FileFormat{Name: s.Orders.FileFormat, Type: snowflake.FormatJSON},
		context: snowflake.SessionContext{
			Warehouse: binding.Warehouse,
			Database:  s.Database,
			Schema:    s.Schema,
		},
		batchSize: max(s.Orders.BatchSize, 1),
		logger:    logger,
	}
}

// Consume polls until total records were consumed or ctx ends. Each batch
// is committed only after its load succeeded; invalid records are skipped
// and committed with their batch.
func (c *Consumer) Consume(ctx context.Context, total int) (ConsumeSummary, error) {
	var sum ConsumeSummary
	for sum.Consumed < total {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		fetches := c.source.PollRecords(ctx, min(c.batchSize, total-sum.Consumed))
		if fetches.IsClientClosed() {
			return sum, errors.New(errors.ErrCodeConsumeFailed, "Kafka client closed while consuming")
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			e := errs[0]
			return sum, errors.Wrap(e.Err, errors.ErrCodeConsumeFailed, "failed to fetch orders").
				WithContext("topic", e.Topic).
				WithContext("partition", e.Partition)
		}

		recs := fetches.Records()
		if len(recs) == 0 {
			continue
		}

		n, invalid, err := c.loadBatch(ctx, recs, sum.Batches)
		if err != nil {
			return sum, err
		}
		if err := c.source.CommitRecords(ctx, recs...); err != nil {
			return sum, errors.Wrap(err, errors.ErrCodeConsumeFailed, "failed to commit offsets").
				WithContext("records", len(recs))
		}

		sum.Consumed += len(recs)
		sum.Invalid += invalid
		sum.Loaded += n
		sum.Batches++
	}

	c.logger.InfoContext(ctx, "Consumed orders",
		slog.Int("consumed", sum.Consumed),
		slog.Int64("loaded", sum.Loaded),
		slog.Int("invalid", sum.Invalid),
		slog.Int("batches", sum.Batches),
	)
	return sum, nil
}

func (c *Consumer) loadBatch(ctx context.Context, recs []*kgo.Record, batch int) (int64, int, error) {
	var (
		orders  []records.Order
		invalid int
	)
	for _, r := range recs {
		o, err := records.UnmarshalOrder(r.Value)
		if err == nil {
			err = records.ValidateOrder(o)
		}
		if err != nil {
			invalid++
			c.logger.WarnContext(ctx, "Skipping invalid order",
				slog.Int("partition", int(r.Partition)),
				slog.Int64("offset", r.Offset),
				slog.Any("error", err),
			)
			continue
		}
		orders = append(orders, o)
	}
	if len(orders) == 0 {
		return 0, invalid, nil
	}

	data, err := records.EncodeNDJSON(orders)
	if err != nil {
		return 0, invalid, err
	}
	res, err := c.loader.Load(ctx, snowflake.LoadRequest{
		Table:    c.table,
		Format:   c.format,
		FileName: ordersFile,
		Data:     data,
		Rows:     len(orders),
		Context:  c.context,
	})
	if err != nil {
		return 0, invalid, errors.Wrap(err, errors.ErrCodeConsumeFailed, fmt.Sprintf("failed to load batch %d; offsets not committed", batch)).
			WithContext("records", len(recs))
	}
	return res.RowsLoaded, invalid, nil
}
