package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farellandr/duesledger/config"
	"github.com/farellandr/duesledger/internal/helpers"
	"github.com/farellandr/duesledger/internal/reconcile"
	"github.com/farellandr/duesledger/internal/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load(".env")

	rootCmd := &cobra.Command{
		Use:          "duesledger",
		Short:        "Duesledger - payment event reconciliation for member dues",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %v", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx, cfg, config.NewLogger(cfg))
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %v", err)
			}
			db, err := config.InitDatabase(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %v", err)
			}
			if err := config.Migrate(db); err != nil {
				return err
			}
			fmt.Println("Migration complete.")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [paymentId]",
		Short: "Re-derive a payment's status from the processor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paymentID, err := helpers.ParseUUID(args[0])
			if err != nil {
				return fmt.Errorf("invalid payment id: %v", err)
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %v", err)
			}
			logger := config.NewLogger(cfg)
			ctx := cmd.Context()

			db, err := config.InitDatabase(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %v", err)
			}
			objects, err := config.InitObjectStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize receipt storage: %v", err)
			}
			reporter, closeReporter, err := config.InitReporter(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to connect report publisher: %v", err)
			}
			defer closeReporter()

			engine := reconcile.New(db.WithContext(ctx), reconcile.Deps{
				API:            config.InitProcessor(cfg),
				Objects:        objects,
				Reporter:       reporter,
				Logger:         logger,
				SigningSecret:  cfg.SigningSecret,
				LockStaleAfter: cfg.LockStaleAfter,
			})

			result, err := engine.Sync(ctx, paymentID)
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			fmt.Printf("status: %s\n", result.PaymentStatus)
			if result.ReferenceNumber != "" {
				fmt.Printf("reference: %s\n", result.ReferenceNumber)
			}
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [userId]",
		Short: "Issue an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := helpers.ParseUUID(args[0])
			if err != nil {
				return fmt.Errorf("invalid user id: %v", err)
			}
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %v", err)
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			token, err := helpers.GenerateToken(cfg.JWTSecret, userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringP("role", "r", "admin", "Role claim")
	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
