package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clearclaim/clearclaim/internal/config"
	"github.com/clearclaim/clearclaim/internal/domain/claims"
	"github.com/clearclaim/clearclaim/internal/platform/auth"
	"github.com/clearclaim/clearclaim/internal/platform/db"
	"github.com/clearclaim/clearclaim/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "claims-server",
		Short: "X12 837 claims generation service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(renderCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the claims API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore from a backup or write a compensating forward migration instead.")
			return nil
		},
	})

	return cmd
}

// renderCmd renders a claim from a JSON file to X12 without touching the
// database. Control numbers are random, so the output is for inspection and
// clearinghouse certification tests, not for live submission.
func renderCmd() *cobra.Command {
	var (
		claimType    string
		senderID     string
		senderName   string
		receiverID   string
		receiverName string
		usage        string
		pretty       bool
		skipValidate bool
	)

	cmd := &cobra.Command{
		Use:   "render FILE",
		Short: "Render a claim JSON file to an X12 837 interchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			interchange := claims.NewInterchangeInfo(senderID, receiverID)
			interchange.SenderName = senderName
			interchange.ReceiverName = receiverName
			interchange.Usage = claims.UsageIndicator(usage)
			env := claims.Envelope{
				Interchange: interchange,
				Group:       claims.NewFunctionalGroupInfo(senderID, receiverID),
				Transaction: claims.NewTransactionSetInfo(),
			}

			validator := claims.NewValidator()
			opts := claims.DefaultFormatOptions()
			opts.LineBreaks = pretty
			formatter := claims.NewFormatter(opts)

			var out string
			switch claimType {
			case "professional":
				var claim claims.ProfessionalClaim
				if err := json.Unmarshal(data, &claim); err != nil {
					return fmt.Errorf("parse claim: %w", err)
				}
				if !skipValidate {
					if err := reportFindings(cmd, validator.ValidateProfessional(&claim)); err != nil {
						return err
					}
				}
				out, err = formatter.Format837P(&claim, env)
			case "institutional":
				var claim claims.InstitutionalClaim
				if err := json.Unmarshal(data, &claim); err != nil {
					return fmt.Errorf("parse claim: %w", err)
				}
				if !skipValidate {
					if err := reportFindings(cmd, validator.ValidateInstitutional(&claim)); err != nil {
						return err
					}
				}
				out, err = formatter.Format837I(&claim, env)
			default:
				return fmt.Errorf("--type must be \"professional\" or \"institutional\", got %q", claimType)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&claimType, "type", "professional", "Claim type: professional or institutional")
	cmd.Flags().StringVar(&senderID, "sender-id", "SUBMITTER", "ISA06 sender ID")
	cmd.Flags().StringVar(&senderName, "sender-name", "", "Submitter name (1000A)")
	cmd.Flags().StringVar(&receiverID, "receiver-id", "RECEIVER", "ISA08 receiver ID")
	cmd.Flags().StringVar(&receiverName, "receiver-name", "", "Receiver name (1000B)")
	cmd.Flags().StringVar(&usage, "usage", "T", "ISA15 usage indicator: P, T, or I")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Emit one segment per line")
	cmd.Flags().BoolVar(&skipValidate, "skip-validation", false, "Render even when validation fails")

	return cmd
}

// reportFindings prints validation issues to stderr. Warnings never block
// rendering; errors do.
func reportFindings(cmd *cobra.Command, res claims.ValidationResult) error {
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s [%s] %s\n", w.Field, w.Code, w.Message)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %s [%s] %s\n", e.Field, e.Code, e.Message)
	}
	if !res.Valid {
		return fmt.Errorf("claim failed validation with %d error(s)", len(res.Errors))
	}
	return nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.AuthSecret != "" {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{SigningKey: []byte(cfg.AuthSecret)}))
	} else {
		// config.Validate rejects this combination in production
		logger.Warn().Msg("AUTH_SECRET not set; running without bearer authentication")
		e.Use(auth.DevAuthMiddleware())
	}

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Claims domain
	controlRepo := claims.NewControlNumberRepoPG(pool)
	submissionRepo := claims.NewSubmissionRepoPG(pool)
	claimsSvc := claims.NewService(controlRepo, submissionRepo, claims.EnvelopeIdentity{
		SenderID:     cfg.SenderID,
		SenderName:   cfg.SenderName,
		ReceiverID:   cfg.ReceiverID,
		ReceiverName: cfg.ReceiverName,
		Usage:        claims.UsageIndicator(cfg.UsageIndicator),
	})
	claimsHandler := claims.NewHandler(claimsSvc)
	claimsHandler.RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
