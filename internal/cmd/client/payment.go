package client

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// NewPaymentCommand constructs the `payment` command group.
func NewPaymentCommand(baseURL BaseURLFunc) *cobra.Command {
	paymentCmd := &cobra.Command{
		Use:   "payment",
		Short: "Payment operations",
	}
	paymentCmd.AddCommand(newPaymentSubmitCommand(baseURL), newPaymentGetCommand(baseURL))
	return paymentCmd
}

func newPaymentSubmitCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a payment for settlement",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			amount, _ := cmd.Flags().GetString("amount")
			paymentType, _ := cmd.Flags().GetString("type")
			description, _ := cmd.Flags().GetString("description")
			idemKey, _ := cmd.Flags().GetString("idempotency-key")

			body := map[string]any{
				"from_account": from,
				"to_account":   to,
				"amount":       jsonNumber(amount),
				"payment_type": paymentType,
				"description":  description,
			}
			headers := map[string]string{}
			if idemKey != "" {
				headers["Idempotency-Key"] = idemKey
			}
			status, resp, err := postJSON(cmd.Context(), baseURL()+"/v1/payments", body, headers)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			if status != http.StatusCreated && status != http.StatusOK {
				return fmt.Errorf("submit failed: %s", http.StatusText(status))
			}
			return nil
		},
	}
	cmd.Flags().String("from", "", "Source account id")
	cmd.Flags().String("to", "", "Destination account id")
	cmd.Flags().String("amount", "", "Amount, e.g. 125.50")
	cmd.Flags().String("type", "ach_debit", "Payment type: ach_debit|ach_credit|book")
	cmd.Flags().String("description", "", "Free-form description")
	cmd.Flags().String("idempotency-key", "", "Idempotency key for safe retries")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newPaymentGetCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <payment-id>",
		Short: "Fetch a payment by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, resp, err := getJSON(cmd.Context(), baseURL()+"/v1/payments/"+args[0])
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			if status != http.StatusOK {
				return fmt.Errorf("get failed: %s", http.StatusText(status))
			}
			return nil
		},
	}
}
