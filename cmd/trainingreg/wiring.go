package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"trainingreg/internal/adapters/discord"
	"trainingreg/internal/application"
	"trainingreg/internal/config"
	"trainingreg/internal/infrastructure/database"
	"trainingreg/internal/infrastructure/database/migrations"
	"trainingreg/internal/infrastructure/i18n"
	"trainingreg/internal/infrastructure/memory"
	"trainingreg/internal/infrastructure/notify"
	"trainingreg/internal/infrastructure/sqlite"
	"trainingreg/internal/ports/output"
)

// openStore opens the configured store, migrating it first when
// MIGRATIONS_AUTO is on. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (output.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.MigrationsAuto {
			if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
		}
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return database.NewStore(pool), pool.Close, nil
	case config.DriverSQLite:
		if cfg.MigrationsAuto {
			if err := sqlite.Migrate(cfg.SQLitePath); err != nil {
				return nil, nil, err
			}
		}
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("✅ SQLite opened (%s)", cfg.SQLitePath)
		return s, func() { _ = s.Close() }, nil
	case config.DriverMemory:
		log.Println("⚠️ Using the in-memory store, data is lost on exit.")
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// migrate applies the schema of the configured SQL store.
func migrate(cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return database.RunMigrations(migrations.FS, cfg.DatabaseURL)
	case config.DriverSQLite:
		return sqlite.Migrate(cfg.SQLitePath)
	default:
		log.Printf("⚠️ Nothing to migrate for the %s store.", cfg.StoreDriver)
		return nil
	}
}

// newDeliveryChain builds the synchronous notifier: SMTP when configured,
// a log line otherwise, mirrored to Discord when a webhook is set.
func newDeliveryChain(cfg *config.Config) (output.Notifier, error) {
	var base output.Notifier = notify.LogNotifier{}
	if cfg.SMTP.Enabled() {
		base = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Println("⚠️ SMTP_HOST not set, notifications are only logged.")
	}
	if cfg.DiscordWebhookURL == "" {
		return base, nil
	}
	webhook, err := discord.NewWebhookNotifier(cfg.DiscordWebhookURL)
	if err != nil {
		return nil, err
	}
	return notify.Fanout{base, webhook}, nil
}

type services struct {
	registrations *application.RegistrationService
	trainings     *application.TrainingService
	catalog       *application.CatalogService
	translator    *i18n.Translator
}

func newServices(cfg *config.Config, store output.Store, notifier output.Notifier, cacheTTL time.Duration) *services {
	translator := i18n.NewTranslator(cfg.DefaultLocale)
	catalog := application.NewCatalogService(store, cacheTTL)
	registrations := application.NewRegistrationService(store, notifier, translator,
		application.WithLocale(cfg.DefaultLocale),
		application.WithCancelBaseURL(cfg.PublicBaseURL),
		application.WithChangeHook(catalog.Invalidate),
	)
	return &services{
		registrations: registrations,
		trainings:     application.NewTrainingService(store, registrations),
		catalog:       catalog,
		translator:    translator,
	}
}
