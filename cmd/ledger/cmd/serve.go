package cmd

import (
	"os/signal"
	"syscall"

	"statement-ledger/internal/api"
	"statement-ledger/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the parse API over HTTP",
	Long: `Serve starts an HTTP server with the statement API:

  GET  /api/v1/health
  POST /api/v1/statements/parse              {"text": "...", "year": 2024, "persist": true}
  GET  /api/v1/statements
  POST /api/v1/statements/:id/corrections    {"rowId": "...", "category": "Dining"}

Examples:
  ledger serve --addr :8080 --store ledger.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, settings.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	app := api.NewApp(api.NewHandler(store, settings.ExtractorConfig(), settings.ReconcileConfig(), settings.Aliases))

	log := logger.WithComponent("server")
	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		app.Shutdown()
	}()

	log.WithFields(logger.Fields{
		"addr":  settings.Server.Addr,
		"store": redact(settings.Store),
	}).Info("Serving statement API")
	return app.Listen(settings.Server.Addr)
}
