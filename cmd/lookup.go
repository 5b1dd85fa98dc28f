package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pos.GO/agent"
	"pos.GO/catalog"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <query>",
	Short: "Fetch both catalogs and resolve a barcode/SKU/text query",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg := newAgents()
		ix := catalog.NewIndex()
		loader := catalog.NewLoader(reg, ix, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for k, err := range loader.Reload(ctx, agent.Keys[:]...) {
			if err != nil {
				fmt.Printf("%s catalog unavailable: %v\n", k, err)
			}
		}

		engine := catalog.NewEngine(ix)
		matches := engine.Lookup(args[0], [2]agent.Key{agent.Unofficial, agent.Official})
		if len(matches) == 0 {
			fmt.Println("no matches")
			return
		}
		for _, m := range matches {
			fmt.Printf("%-10s  %-8s  score=%-4d  %-16s  %s  $%.2f\n",
				m.Company, m.Reason, m.Score, m.Item.SKU, m.Item.Name, m.Item.PriceUSD)
		}
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}
