package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pos.GO/agent"
	"pos.GO/edge"
)

var statusCmd = &cobra.Command{
	Use:   "edge:status",
	Short: "Poll both agents and print their edge health",
	Run: func(cmd *cobra.Command, args []string) {
		reg := newAgents()
		monitor := edge.NewMonitor(reg)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		monitor.PollAll(ctx)

		for _, k := range agent.Keys {
			st := monitor.Status(k)
			fmt.Printf("%-10s  %-7s", k, st.State)
			if st.State == edge.OK {
				fmt.Printf("  latency=%.0fms outbox=%d edge=%s", st.LatencyMs, st.PendingOutbox, st.EdgeURL)
			}
			if st.LastError != "" {
				fmt.Printf("  error=%s", st.LastError)
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
