package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/shohag/hookrelay/internal/api"
	"github.com/shohag/hookrelay/internal/config"
	"github.com/shohag/hookrelay/internal/dispatch"
	"github.com/shohag/hookrelay/internal/models"
	"github.com/shohag/hookrelay/internal/queue"
	"github.com/shohag/hookrelay/internal/receiver"
	"github.com/shohag/hookrelay/internal/signing"
	"github.com/shohag/hookrelay/internal/storage"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "hookrelay",
		Short: "hookrelay — webhook dispatch and receipt service",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(endpointCmd(&configPath))
	rootCmd.AddCommand(failuresCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the hookrelay server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("database migrations completed")

			signer, err := signing.NewSigner(signing.Algorithm(cfg.Dispatch.Algorithm))
			if err != nil {
				return fmt.Errorf("failed to setup signer: %w", err)
			}

			q := queue.NewMemory(cfg.Dispatch.QueueWorkers, cfg.Dispatch.QueueBuffer, log)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			q.Start(ctx)

			dispatcher := dispatch.New(store, signer, q, log)
			dispatcher.SetDefaults(cfg.Dispatch.Retry, cfg.Dispatch.Timeout)
			rc := receiver.New(signer, cfg.Receiver.Tolerance, log)

			server := api.NewServer(cfg.Server, cfg.Receiver, store, dispatcher, rc, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Str("algorithm", cfg.Dispatch.Algorithm).
				Int("queue_workers", cfg.Dispatch.QueueWorkers).
				Msg("hookrelay is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			q.Stop()

			log.Info().Msg("hookrelay stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func endpointCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Manage registered endpoints",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, _ := cmd.Flags().GetString("url")
			if url == "" {
				return fmt.Errorf("--url is required")
			}
			events, _ := cmd.Flags().GetString("events")
			retry, _ := cmd.Flags().GetInt("retry")

			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			var eventTypes []string
			if events != "" {
				eventTypes = strings.Split(events, ",")
			}

			now := time.Now().UTC()
			ep := &models.Endpoint{
				ID:         models.NewID("ep"),
				URL:        url,
				Secret:     models.NewSecret(),
				EventTypes: eventTypes,
				Active:     true,
				Retry:      retry,
				CreatedAt:  now,
				UpdatedAt:  now,
			}

			if err := store.CreateEndpoint(context.Background(), ep); err != nil {
				return fmt.Errorf("failed to create endpoint: %w", err)
			}

			out, _ := json.MarshalIndent(ep, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
	createCmd.Flags().String("url", "", "endpoint URL")
	createCmd.Flags().String("events", "", "comma-separated event patterns, empty subscribes to all")
	createCmd.Flags().Int("retry", 0, "additional attempts after the first (0 = default)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			eps, err := store.ListEndpoints(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list endpoints: %w", err)
			}

			if len(eps) == 0 {
				fmt.Println("No endpoints registered.")
				return nil
			}

			for _, ep := range eps {
				state := "active"
				if !ep.Active {
					state = "inactive"
				}
				fmt.Printf("  %s  %s  %s  %v\n", ep.ID, ep.URL, state, ep.EventTypes)
			}
			return nil
		},
	}

	cmd.AddCommand(createCmd, listCmd)
	return cmd
}

func failuresCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and replay dead-lettered dispatches",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List pending dead letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cleanup, err := storeFromConfig(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			fs, err := store.ListFailures(context.Background(), storage.FailureFilter{Status: storage.FailureStatusPending})
			if err != nil {
				return fmt.Errorf("failed to list failures: %w", err)
			}

			if len(fs) == 0 {
				fmt.Println("No pending failures.")
				return nil
			}

			for _, f := range fs {
				fmt.Printf("  %s  %s  %s  attempts=%d  last_error=%q\n",
					f.ID, f.Event, f.EndpointURL, f.TotalAttempts, f.LastError)
			}
			return nil
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <failure_id>",
		Short: "Replay one dead-lettered dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: hookrelay failures retry <failure_id>")
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := setupLogger(cfg.Logging)

			store, err := setupStorage(cfg.Storage, log)
			if err != nil {
				return fmt.Errorf("failed to setup storage: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			signer, err := signing.NewSigner(signing.Algorithm(cfg.Dispatch.Algorithm))
			if err != nil {
				return fmt.Errorf("failed to setup signer: %w", err)
			}

			dispatcher := dispatch.New(store, signer, nil, log)
			dispatcher.SetDefaults(cfg.Dispatch.Retry, cfg.Dispatch.Timeout)
			ok, err := dispatcher.Replay(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("replay failed: %w", err)
			}

			if ok {
				fmt.Println("delivered")
			} else {
				fmt.Println("still failing, see dead-letter store")
			}
			return nil
		},
	}

	cmd.AddCommand(listCmd, retryCmd)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hookrelay v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupStorage(cfg config.StorageConfig, log zerolog.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "sqlite":
		log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
		return storage.NewSQLite(cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

func storeFromConfig(configPath string) (storage.Storage, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg.Logging)
	store, err := setupStorage(cfg.Storage, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, func() { store.Close() }, nil
}
