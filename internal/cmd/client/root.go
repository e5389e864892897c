package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the client. It registers the
// payment and queue command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "fintech",
		Short: "Settlement client commands",
	}
	root.AddCommand(NewPaymentCommand(baseURL))
	root.AddCommand(NewQueueCommand(baseURL))
	return root
}
