// Command excelctl is the operator CLI for the analytics platform: schema
// migrations, admin seeding, data resets, retention runs and offline workbook
// parsing.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/excel-analytics/internal/auth"
	"github.com/JonMunkholm/excel-analytics/internal/config"
	"github.com/JonMunkholm/excel-analytics/internal/core"
	"github.com/JonMunkholm/excel-analytics/internal/ingest"
	"github.com/JonMunkholm/excel-analytics/internal/logging"
	"github.com/JonMunkholm/excel-analytics/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "excelctl",
		Short:        "Operate the Excel analytics platform",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newSeedAdminCmd(),
		newResetCmd(),
		newRetentionCmd(),
		newParseCmd(),
	)
	return root
}

// loadConfig reads .env when present, loads the configuration and sets up
// logging.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

// withStore runs fn against a connected store and closes the pool after.
func withStore(ctx context.Context, fn func(cfg *config.Config, pool *pgxpool.Pool, db *store.Postgres) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(cfg, pool, store.New(pool))
}

// newService builds a Service the way the server does, without a cache.
func newService(cfg *config.Config, db *store.Postgres) (*core.Service, error) {
	classifier := ingest.Classifier{
		SampleSize:      cfg.Classifier.SampleSize,
		NumberThreshold: cfg.Classifier.NumberThreshold,
		DateThreshold:   cfg.Classifier.DateThreshold,
	}
	gateway, err := ingest.NewGateway(cfg.Upload.Dir, cfg.Upload.MaxFileSize, ingest.NewParser(classifier))
	if err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	return core.NewService(db, core.Options{
		Gateway:    gateway,
		Issuer:     auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.RefreshKey(), cfg.Auth.RefreshExpiry),
		Limiter:    core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		BcryptCost: cfg.Auth.BcryptCost,
	}), nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(store.MigrateUp), string(store.MigrateDown), string(store.MigrateStatus)},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := store.MigrateUp
			if len(args) == 1 {
				dir = store.MigrateDirection(args[0])
			}
			return withStore(cmd.Context(), func(_ *config.Config, pool *pgxpool.Pool, _ *store.Postgres) error {
				return store.Migrate(cmd.Context(), pool, dir)
			})
		},
	}
}

func newSeedAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account or promote an existing one",
		Long: `seed-admin creates an active admin account. When the email already
belongs to an account, that account is promoted, reactivated and given the
new password. The password may also be passed in EXCELCTL_ADMIN_PASSWORD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("EXCELCTL_ADMIN_PASSWORD")
			}
			return withStore(cmd.Context(), func(cfg *config.Config, _ *pgxpool.Pool, db *store.Postgres) error {
				svc, err := newService(cfg, db)
				if err != nil {
					return err
				}
				u, created, err := svc.SeedAdmin(cmd.Context(), name, email, password)
				if err != nil {
					return err
				}
				verb := "promoted"
				if created {
					verb = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s admin %s (%s)\n", verb, u.Email, u.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (default: $EXCELCTL_ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all users, uploads, charts and activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("reset deletes every row; pass --yes to confirm")
			}
			return withStore(cmd.Context(), func(_ *config.Config, _ *pgxpool.Pool, db *store.Postgres) error {
				if err := db.Reset(cmd.Context()); err != nil {
					return err
				}
				slog.Warn("database reset")
				fmt.Fprintln(cmd.OutOrStdout(), "all application tables truncated")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func newRetentionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retention",
		Short: "Run the retention job once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd.Context(), func(cfg *config.Config, _ *pgxpool.Pool, db *store.Postgres) error {
				svc, err := newService(cfg, db)
				if err != nil {
					return err
				}
				res := svc.RunRetention(cmd.Context(), core.RetentionConfig{
					ActivityDays:  cfg.Retention.ActivityDays,
					CheckInterval: cfg.Retention.CheckInterval,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d activity entries, removed %d files\n",
					res.ActivitiesPurged, res.FilesRemoved)
				return nil
			})
		},
	}
}
