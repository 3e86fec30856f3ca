package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"mspro-labs/coffee-prices/internal/client"
)

var asJSON bool

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Show current prices the way a dashboard consumer would read them",
	Long: `Reads the static artifact (STATIC_URL), falls back to the live endpoint
(LIVE_URL) and finally to a built-in snapshot. Never fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		report := client.New(appCfg.StaticURL, appCfg.LiveURL, logger).FetchPrices(cmd.Context())

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		renderReport(cmd.OutOrStdout(), report)
		return nil
	},
}

func init() {
	pricesCmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(pricesCmd)
}
