package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnTengye/rollingquote/app"
	"github.com/AnTengye/rollingquote/service"
)

func newResendCmd(root *rootOptions) *cobra.Command {
	var req service.ResendRequest
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send the confirmation for a paid order again",
		Long: `Resend delivers the order confirmation for a paid order. Orders that were
already confirmed are only sent again with --force.

Examples:
  quotectl resend --config config.yaml --order order-1
  quotectl resend --config config.yaml --session cs_live_123 --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			a, err := app.Build(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			order, err := a.Reconciler.Resend(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "confirmation sent for %s at %s\n",
				order.ID, order.NotificationSentAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.OrderID, "order", "", "Order id")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "Checkout session id")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Send even if a confirmation was already sent")
	cmd.MarkFlagsOneRequired("order", "session")
	return cmd
}
