package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	"flakeload/internal/config"
	"flakeload/internal/records"
	"flakeload/internal/snowflake"
	"flakeload/internal/stream"
	"flakeload/internal/ui"
)

func newOrdersCmd(a *app) *cobra.Command {
	orders := &cobra.Command{
		Use:   "orders",
		Short: "Publish synthetic orders to Kafka and load them into Snowflake",
	}

	orders.AddCommand(&cobra.Command{
		Use:   "produce",
		Short: "Publish ORDERS_TO_PRODUCE generated orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSettings(cmd, a.produceOrders)
		},
	})

	orders.AddCommand(&cobra.Command{
		Use:   "consume",
		Short: "Consume ORDERS_TO_CONSUME orders and bulk-load them in batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSettings(cmd, a.consumeOrders)
		},
	})

	return orders
}

func (a *app) produceOrders(ctx context.Context, s *config.Settings, logger *slog.Logger) error {
	if err := s.RequireOrders(); err != nil {
		return err
	}

	gen, err := records.NewGenerator(0, s.Locales...)
	if err != nil {
		return err
	}

	clients := make([]stream.SyncProducer, 0, s.Orders.Producers)
	for i := 0; i < s.Orders.Producers; i++ {
		client, err := stream.NewClient(s.Orders, append(stream.ProducerOptions(s.Orders), kgo.ClientID(fmt.Sprintf("flakeload-producer-%d", i)))...)
		if err != nil {
			return err
		}
		defer client.Close()
		clients = append(clients, client)
	}

	d, err := stream.NewProducer(clients, gen, s.Orders.BatchSize, logger).Produce(ctx, s.Orders.ToProduce)
	if err != nil {
		return err
	}
	ui.NewPrinter(a.stdout, a.noColor).ShowSuccess(fmt.Sprintf("produced %d orders to %s in %s", d.Produced, s.Orders.Topic, d.Duration.Round(time.Millisecond)))
	return nil
}

func (a *app) consumeOrders(ctx context.Context, s *config.Settings, logger *slog.Logger) error {
	if err := s.RequireOrders(); err != nil {
		return err
	}

	client, err := stream.NewClient(s.Orders, stream.ConsumerOptions(s.Orders)...)
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := a.opener(logger)(ctx, snowflake.Credentials{
		Account:    s.Credentials.Account,
		User:       s.Credentials.User,
		PrivateKey: s.Credentials.PrivateKey,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("Failed to close Snowflake session", slog.Any("error", cerr))
		}
	}()

	consumer := stream.NewConsumer(client, snowflake.NewLoader(session, logger), s, logger)
	sum, err := consumer.Consume(ctx, s.Orders.ToConsume)
	if err != nil {
		return err
	}
	ui.NewPrinter(a.stdout, a.noColor).ShowSuccess(fmt.Sprintf("consumed %d orders in %d batches: %d loaded into %s, %d invalid",
		sum.Consumed, sum.Batches, sum.Loaded, s.Orders.Table, sum.Invalid))
	return nil
}
