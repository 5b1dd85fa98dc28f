package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pos.GO/agent"
)

func syncCommand(use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			reg := newAgents()
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			for _, k := range agent.Keys {
				if err := reg.PostJSON(ctx, k, path, nil, nil); err != nil {
					fmt.Printf("%-10s  failed: %v\n", k, err)
					continue
				}
				fmt.Printf("%-10s  ok\n", k)
			}
		},
	}
}

func init() {
	rootCmd.AddCommand(syncCommand("sync:pull", "Trigger an edge pull on both agents", "/api/sync/pull"))
	rootCmd.AddCommand(syncCommand("sync:push", "Flush both agents' outboxes to the edge", "/api/sync/push"))
}
