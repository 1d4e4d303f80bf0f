package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trainingreg/internal/adapters/web"
	"trainingreg/internal/infrastructure/notify"
	"trainingreg/internal/tracing"
	"trainingreg/pkg/tz"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr string
		seed bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.HTTPAddr = addr
			}
			return c.serve(cmd.Context(), seed)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&seed, "seed", false, "create the demo trainings when none exist")
	return cmd
}

func (c *cli) serve(ctx context.Context, seed bool) error {
	cfg := c.cfg
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(tracing.Config{Exporter: cfg.TracingExporter, ServiceName: "trainingreg"})
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	loc, err := tz.Load(cfg.Timezone)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	chain, err := newDeliveryChain(cfg)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(chain, cfg.NotifyWorkers, cfg.NotifyQueue)
	defer dispatcher.Close()

	svc := newServices(cfg, store, dispatcher, cfg.CatalogCacheTTL)
	if seed {
		n, err := svc.trainings.SeedDefaults(ctx)
		if err != nil {
			return err
		}
		log.Printf("✅ Seeded %d trainings", n)
	}

	handler := web.NewHandler(web.Deps{
		Registrations: svc.registrations,
		Trainings:     svc.trainings,
		Catalog:       svc.catalog,
		Translator:    svc.translator,
		Locale:        cfg.DefaultLocale,
		Location:      loc,
	})
	if !cfg.AdminEnabled() {
		log.Println("⚠️ ADMIN_USER not set, admin routes are disabled.")
	}
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      web.NewRouter(handler, web.RouterConfig{AdminUser: cfg.AdminUser, AdminPassword: cfg.AdminPassword}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("✅ Listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("server stopped")
	return nil
}
