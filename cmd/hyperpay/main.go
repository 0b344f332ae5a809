package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nelc/ecommerce-hyperpay/internal/api"
	"github.com/nelc/ecommerce-hyperpay/internal/config"
	"github.com/nelc/ecommerce-hyperpay/internal/events"
	"github.com/nelc/ecommerce-hyperpay/internal/report"
	"github.com/nelc/ecommerce-hyperpay/internal/repository"
	"github.com/nelc/ecommerce-hyperpay/internal/service"
	"github.com/nelc/ecommerce-hyperpay/internal/session"
	"github.com/nelc/ecommerce-hyperpay/internal/telemetry"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "hyperpay",
		Short: "HyperPay payment backend for the e-commerce platform",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the config file (default ./hyperpay.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout and callback HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := telemetry.InitTelemetry("ecommerce-hyperpay"); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting HyperPay payment backend",
		zap.Strings("processors", cfg.ProcessorNames()))

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	audits := repository.NewAuditRepository(db)
	if err := audits.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize audit tables", zap.Error(err))
	}
	baskets := repository.NewBasketRepository(db)
	if err := baskets.InitDB(); err != nil {
		telemetry.Logger.Fatal("Failed to initialize basket tables", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	sessions := session.NewStore(redisClient, time.Duration(cfg.SessionFlagTTLSeconds)*time.Second)

	// Connect to Kafka
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()

	flow, err := service.NewOrchestrator(cfg, audits, baskets, sessions, publisher)
	if err != nil {
		telemetry.Logger.Fatal("Failed to build payment orchestrator", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: api.NewRouter(flow, cfg),
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("HyperPay backend listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
	return nil
}

func reportCmd() *cobra.Command {
	var (
		emails     []string
		duration   int
		processors []string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Email a report of payments awaiting manual review",
		Long: `Scan recent gateway responses for payments HyperPay parked for manual
review and mail the list to the finance team. Meant to run from cron.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(emails, duration, processors)
		},
	}
	cmd.Flags().StringSliceVarP(&emails, "emails", "e", nil, "recipient addresses")
	cmd.Flags().IntVarP(&duration, "duration", "d", 5, "how many hours back to scan")
	cmd.Flags().StringSliceVar(&processors, "processors", nil, "processor names to scan (default all configured)")
	cmd.MarkFlagRequired("emails")
	return cmd
}

func runReport(emails []string, duration int, processors []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := telemetry.InitTelemetry("ecommerce-hyperpay-report"); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if len(processors) == 0 {
		processors = cfg.ProcessorNames()
	}

	audits := repository.NewAuditRepository(db)
	reporter := report.NewReporter(report.NewScanner(audits, processors), report.NewMailer(cfg.SMTP))

	since := time.Now().Add(-time.Duration(duration) * time.Hour)
	count, err := reporter.Run(context.Background(), since, emails)
	if err != nil {
		// A failed send shows up in the logs, not the cron exit code.
		telemetry.Logger.Error("Manual review report failed", zap.Error(err))
		return nil
	}

	telemetry.Logger.Info("Manual review report finished",
		zap.Int("payments", count),
		zap.Strings("processors", processors),
	)
	return nil
}
