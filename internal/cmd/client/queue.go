package client

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

// NewQueueCommand constructs the `queue` command group.
func NewQueueCommand(baseURL BaseURLFunc) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Settlement queue operations",
	}
	queueCmd.AddCommand(newQueueStatsCommand(baseURL))
	return queueCmd
}

func newQueueStatsCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pending, in-flight, and dead-letter depths",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, resp, err := getJSON(cmd.Context(), baseURL()+"/v1/queue/stats")
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp)
			if status != http.StatusOK {
				return fmt.Errorf("stats failed: %s", http.StatusText(status))
			}
			return nil
		},
	}
}
