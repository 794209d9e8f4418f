package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"explorer/internal/models"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models every submission fans out to",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		catalog, err := models.Resolve(cfg.Models.CatalogPath)
		if err != nil {
			return err
		}
		list := catalog.ListAll()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"models":       list,
				"total_models": len(list),
				"status":       "Available models for rotation",
			})
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tNAME\tID\tMAX TOKENS")
		for i, m := range list {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, m.DisplayName, m.ID, m.MaxTokens)
		}
		return tw.Flush()
	},
}

func init() {
	modelsCmd.Flags().Bool("json", false, "print as JSON")
	rootCmd.AddCommand(modelsCmd)
}
