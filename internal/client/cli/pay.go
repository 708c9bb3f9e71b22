package cli

import (
	"github.com/spf13/cobra"
)

func newPayCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <id>",
		Short: "Request a payment intent for content",
		Long: `Requests a payment intent for the content id and prints what to pay.
Repeating the command while the payment is pending returns the same intent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := app.api().RequestPayment(cmd.Context(), args[0], app.config.Payer)
			if err != nil {
				return err
			}

			app.printf("backend: %s\nstatus: %s\nreference: %s\n", in.Backend, in.Status, in.ExternalRef)
			if in.PaymentRequest != "" {
				app.printf("payment request: %s\n", in.PaymentRequest)
			}
			return nil
		},
	}
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Show the reconciled payment status of content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.api().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			app.printf("intent: %s\nstate: %s\n", st.IntentStatus, st.PaymentState)
			return nil
		},
	}
}
