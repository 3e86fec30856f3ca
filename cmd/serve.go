package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mspro-labs/coffee-prices/internal/browser"
	"mspro-labs/coffee-prices/internal/config"
	"mspro-labs/coffee-prices/internal/pipeline"
	"mspro-labs/coffee-prices/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live prices on /api/prices and the static artifact on /prices.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		siteCfg, err := config.LoadSiteConfig(appCfg.ConfigPath)
		if err != nil {
			return err
		}
		open, err := browser.NewOpener(appCfg.Engine, siteCfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &server.Server{
			Addr:         appCfg.ListenAddr,
			Runner:       pipeline.New(siteCfg, open, logger),
			ArtifactPath: appCfg.OutputPath,
			Logger:       logger.With("component", "server"),
		}
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
