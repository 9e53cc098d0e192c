package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running microstack server's internal counters",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://127.0.0.1:1337", "base URL of a running microstack server")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(statusAddr + "/microstack/status")
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status check returned status %d", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Uptime  string `json:"uptime"`
		Metrics struct {
			Invocations      int64 `json:"invocations"`
			InvocationErrors int64 `json:"invocation_errors"`
			StackTransitions int64 `json:"stack_transitions"`
			LedgerAppends    int64 `json:"ledger_appends"`
			ObjectOps        int64 `json:"object_ops"`
		} `json:"metrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("malformed status response: %w", err)
	}

	fmt.Printf("microstack at %s: %s (uptime %s)\n", statusAddr, body.Status, body.Uptime)
	fmt.Printf("  invocations:       %d (%d errors)\n", body.Metrics.Invocations, body.Metrics.InvocationErrors)
	fmt.Printf("  stack transitions: %d\n", body.Metrics.StackTransitions)
	fmt.Printf("  ledger appends:    %d\n", body.Metrics.LedgerAppends)
	fmt.Printf("  object ops:        %d\n", body.Metrics.ObjectOps)
	return nil
}
