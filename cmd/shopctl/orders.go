package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/beautivra/internal/app"
	"github.com/xenking/beautivra/internal/domain/order"
	"github.com/xenking/beautivra/internal/domain/pricing"
	"github.com/xenking/beautivra/internal/storage/postgres"
)

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect the order ledger",
	}
	cmd.AddCommand(pendingOrdersCmd())
	return cmd
}

func pendingOrdersCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List unpaid orders older than a cutoff",
		Long: `List orders whose payment never completed. Orders that were paid but missed
both the webhook and the status poll show up here; run "shopctl reconcile"
with their session id to recover them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := app.LoadEnvConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
			}

			pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
			if err != nil {
				return errors.Wrap(err, "create db pool")
			}
			defer pool.Close()

			ledger := order.NewLedger(postgres.NewOrderRepository(pool), pricing.NewEngine(pricing.DefaultRates()))
			orders, err := ledger.ListPending(ctx, olderThan, limit)
			if err != nil {
				return err
			}
			return printOrders(cmd, orders)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Hour, "Only list orders created before now minus this duration")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of orders")
	return cmd
}

func printOrders(cmd *cobra.Command, orders []order.Order) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tCREATED\tTOTAL\tSTATUS\tPAYMENT\tSESSION")
	for _, o := range orders {
		session := o.PaymentSessionID
		if session == "" {
			session = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Number,
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.Total.StringFixed(2),
			o.Status,
			o.PaymentStatus,
			session,
		)
	}
	return w.Flush()
}
