package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	redisq "github.com/KoDakness/404syndicate-sub000/internal/adapters/queue/redis"
	"github.com/KoDakness/404syndicate-sub000/internal/adapters/repository/pg"
	"github.com/KoDakness/404syndicate-sub000/internal/catalog"
	"github.com/KoDakness/404syndicate-sub000/internal/config"
	"github.com/KoDakness/404syndicate-sub000/internal/core/domain"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
)

const Version = "0.1.0"

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "syndicate",
		Short:         "404 Syndicate game server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(buildServeCommand())
	rootCmd.AddCommand(buildMigrateCommand())
	rootCmd.AddCommand(buildCatalogCommand())
	rootCmd.AddCommand(buildSessionCommand())
	rootCmd.AddCommand(buildFailuresCommand())
	rootCmd.AddCommand(buildAdminCommand())

	return rootCmd
}

// loadConfig reads the environment and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func openRepository(cfg *config.Config) (*pg.Repository, error) {
	dsn := cfg.DatabaseURL
	if cfg.DBDialect == config.DialectSQLite {
		dsn = cfg.SQLitePath
	}
	repo, err := pg.Open(cfg.DBDialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.DBDialect, err)
	}
	return repo, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(path)
}

func buildMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Migrate(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s).\n", cfg.DBDialect)
			return nil
		},
	}
}

func buildCatalogCommand() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the game catalog",
	}

	var path string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a catalog file (the embedded catalog when --path is empty)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog OK: %d jobs, %d equipment items, %d events\n",
				len(cat.Jobs()), len(cat.Equipment()), len(cat.Events()))
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "path", "p", "", "catalog YAML file")

	catalogCmd.AddCommand(validateCmd)
	return catalogCmd
}

func buildSessionCommand() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage auth session tokens",
	}

	var userID, username string
	var ttl time.Duration
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.SessionTokenTTL
			}
			adapter, client, err := redisq.NewRedisAdapter(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to init redis: %w", err)
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			token, err := adapter.IssueSession(ctx, domain.AuthSession{UserID: userID, Username: username}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().StringVar(&userID, "user", "", "player id")
	issueCmd.Flags().StringVar(&username, "username", "", "display name")
	issueCmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to SESSION_TOKEN_TTL)")
	issueCmd.MarkFlagRequired("user")
	issueCmd.MarkFlagRequired("username")

	sessionCmd.AddCommand(issueCmd)
	return sessionCmd
}

func buildFailuresCommand() *cobra.Command {
	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect persistence writes that were dropped",
	}

	var limit int64
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the newest dropped writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, client, err := redisq.NewRedisAdapter(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to init redis: %w", err)
			}
			defer client.Close()

			entries, err := redisq.NewWriteFailureLog(client, 0).List(cmd.Context(), 0, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No dropped writes.")
				return nil
			}
			fmt.Fprintln(out, "TIME\t\t\tUSER\tKIND\tREASON")
			for _, e := range entries {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", e.FailureTime.Format(time.RFC3339), e.UserID, e.Kind, e.Reason)
			}
			return nil
		},
	}
	listCmd.Flags().Int64VarP(&limit, "limit", "n", 20, "number of entries")

	failuresCmd.AddCommand(listCmd)
	return failuresCmd
}

func buildAdminCommand() *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin role",
	}

	var userID string
	grantCmd := &cobra.Command{
		Use:   "grant",
		Short: "Grant the admin role to a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openRepository(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if cfg.AutoMigrate {
				if err := repo.Migrate(); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
			}
			if err := repo.GrantAdmin(cmd.Context(), userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Granted admin to %s\n", userID)
			return nil
		},
	}
	grantCmd.Flags().StringVar(&userID, "user", "", "player id")
	grantCmd.MarkFlagRequired("user")

	adminCmd.AddCommand(grantCmd)
	return adminCmd
}
