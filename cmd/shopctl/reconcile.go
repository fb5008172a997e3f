package main

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/beautivra/internal/app"
)

func reconcileCmd() *cobra.Command {
	var status, paymentStatus string
	cmd := &cobra.Command{
		Use:   "reconcile <session_id>",
		Short: "Reconcile a payment session with the provider",
		Long: `Ask the payment provider for the state of a checkout session and merge it
into the ledger, confirming the order when it is paid. A session with no local
transaction is restored from the order named in its metadata. With --status
and --payment-status the given report is merged without calling the provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lg := zctx.From(ctx)
			sessionID := args[0]

			if (status == "") != (paymentStatus == "") {
				return errors.New("--status and --payment-status go together")
			}

			cfg, err := app.LoadEnvConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			c, err := app.Open(ctx, lg, cfg, noop.NewMeterProvider())
			if err != nil {
				return err
			}
			defer c.Close(ctx, lg)

			out := cmd.OutOrStdout()
			if status != "" {
				tx, err := c.Checkout.Reconcile(ctx, sessionID, status, paymentStatus)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s: %s/%s (order %s)\n", tx.SessionID, tx.Status, tx.PaymentStatus, tx.OrderID)
				return err
			}

			report, err := c.Checkout.Recover(ctx, sessionID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "%s: %s/%s, %d %s (order %s)\n",
				sessionID, report.Status, report.PaymentStatus,
				report.AmountTotal, report.Currency, report.Metadata["order_number"])
			return err
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Session status to merge (open, complete, expired)")
	cmd.Flags().StringVar(&paymentStatus, "payment-status", "", "Payment status to merge (unpaid, paid)")
	return cmd
}
