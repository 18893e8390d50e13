package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/booking-voucher/internal/config"
	"github.com/garyjia/booking-voucher/internal/container"
	"github.com/garyjia/booking-voucher/internal/domain/entity"
	httpServer "github.com/garyjia/booking-voucher/internal/interfaces/http"
	"github.com/garyjia/booking-voucher/pkg/database"
	"github.com/garyjia/booking-voucher/pkg/utils"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "voucherctl",
		Short:         "Operator tooling for the booking voucher service",
		Version:       httpServer.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to CONFIG_PATH or configs/config.yaml)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(identityTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and builds a logger writing to stderr so stdout carries results
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	output := cfg.Logger.OutputPath
	if output == "" || output == "stdout" {
		output = "stderr"
	}
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: output,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.New(database.Config{
				Path:            cfg.Database.Path,
				MaxOpenConns:    cfg.Database.MaxOpenConns,
				MaxIdleConns:    cfg.Database.MaxIdleConns,
				ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			}, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied to %s\n", cfg.Database.Path)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiration sweep and print the result",
		Long: `Run one expiration sweep against the configured database.

Every active voucher whose validity window has closed is moved to expired.
Per-voucher failures are reported in the result and do not stop the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cc := cfg.ToContainerConfig()
			cc.Sweeper.RunOnStart = false
			cc.Dispatcher.Async = false

			c, err := container.NewContainer(cc, logger)
			if err != nil {
				return err
			}
			if err := c.Start(cmd.Context()); err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cc.Sweeper.Timeout)
			defer cancel()

			result, err := c.ExpirationWorker().RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}

func identityTokenCmd() *cobra.Command {
	var (
		subject   string
		role      string
		email     string
		partnerID string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "identity-token",
		Short: "Mint a bearer token for local testing",
		Long: `Mint a bearer token signed with auth.jwt_secret.

Production identities come from the auth service; this is for local
testing against a development server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			id := &entity.Identity{
				UserID:    subject,
				Role:      entity.Role(role),
				Email:     email,
				PartnerID: partnerID,
			}
			if !id.Role.IsValid() {
				return fmt.Errorf("unknown role %q", role)
			}

			auth, err := httpServer.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
			if err != nil {
				return err
			}
			signed, err := auth.Sign(id, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "user id placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", string(entity.RoleEmployee), "master, employee, partner or customer")
	cmd.Flags().StringVar(&email, "email", "", "email claim, used for customer ownership")
	cmd.Flags().StringVar(&partnerID, "partner", "", "partner id, required for the partner role")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
