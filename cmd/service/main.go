package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/location-contacts/internal/auth"
	"gitlab.com/dirk.krummacker/location-contacts/internal/config"
	"gitlab.com/dirk.krummacker/location-contacts/internal/geocode"
	"gitlab.com/dirk.krummacker/location-contacts/internal/logger"
	"gitlab.com/dirk.krummacker/location-contacts/internal/metrics"
	"gitlab.com/dirk.krummacker/location-contacts/internal/service"
	"gitlab.com/dirk.krummacker/location-contacts/internal/store"
	"gitlab.com/dirk.krummacker/location-contacts/internal/web"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "service",
	Short: "Serve the location contacts API and pages",
	Long: `Serves the JSON API below /contacts, the browser pages, /seed, /healthz and /metrics.

Usage example on the command line:
  > CONTACTS_AUTH_HMACSECRET=dev-secret DBHOST=localhost:3306 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release go run main.go --config contacts.yaml`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log, err := logger.NewLogger(cfg.Log.Development, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := service.CreateDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	contacts := store.New(db)

	verifier, err := auth.NewVerifier(ctx, cfg.Auth.Config)
	if err != nil {
		return err
	}
	m := metrics.New()
	geocoder := geocode.New(cfg.Geocoder, m)

	router := service.SetupHttpRouter(log, cfg.Server.RequestLogging, m)
	service.New(contacts, verifier, log).RegisterRoutes(router)
	pages := web.New(contacts, geocoder, log, web.Options{
		SignInURL:        cfg.Auth.SignInURL,
		DefaultLatitude:  cfg.Map.DefaultLatitude,
		DefaultLongitude: cfg.Map.DefaultLongitude,
	})
	if err := pages.RegisterRoutes(router, verifier); err != nil {
		return err
	}
	router.GET("/metrics", m.Handler())

	server := &http.Server{Addr: cfg.Server.Address, Handler: router}
	serveErr := make(chan error, 1)
	go func() {
		log.Infow("listening", "address", cfg.Server.Address, "driver", cfg.Database.DriverName())
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Errorw("server stopped", "error", err)
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
