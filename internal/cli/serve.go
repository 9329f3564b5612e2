package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"scalpExecutor/config"
	"scalpExecutor/internal/adapters/binanceclient"
	"scalpExecutor/internal/adapters/feedback"
	"scalpExecutor/internal/adapters/httpapi"
	"scalpExecutor/internal/adapters/logger"
	"scalpExecutor/internal/adapters/sqlite"
	"scalpExecutor/internal/app"
	"scalpExecutor/internal/ports"
	"scalpExecutor/internal/risk"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the execution HTTP API and the trade monitors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.ValidateExchange(); err != nil {
		return err
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})
	if cfg.LogLevel > logger.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		return fmt.Errorf("initialize database repository: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger,
		RequestsPerSecond: cfg.ExchangeRequestsPerSecond,
		Burst:             cfg.ExchangeBurst,
	})
	if err != nil {
		return fmt.Errorf("initialize Binance client: %w", err)
	}

	// 5. Admission gate and feedback
	riskManager := risk.NewRiskManager(risk.RiskConfig{
		MaxOpenTrades:       cfg.MaxOpenTrades,
		MaxPositionNotional: cfg.MaxPositionNotional,
		MaxDailyLoss:        cfg.MaxDailyLoss,
	}, appLogger)

	var reporter ports.FeedbackReporter = feedback.NopReporter{}
	if cfg.FeedbackURL != "" {
		httpReporter, err := feedback.NewHTTPReporter(cfg.FeedbackURL, cfg.FeedbackTimeout, appLogger)
		if err != nil {
			return fmt.Errorf("initialize feedback reporter: %w", err)
		}
		reporter = httpReporter
	} else {
		appLogger.Warn(ctx, "FEEDBACK_URL is empty, trade feedback is disabled")
	}

	// 6. Initialize Application Service
	tradingService, err := app.NewTradingService(cfg, appLogger, binanceClient, repo, repo, riskManager, reporter)
	if err != nil {
		return fmt.Errorf("initialize trading service: %w", err)
	}
	if err := tradingService.Start(ctx); err != nil {
		return err
	}

	// 7. Serve until a signal arrives
	server := httpapi.NewServer(httpapi.Config{
		Addr:              cfg.HTTPAddr,
		RequestsPerSecond: cfg.HTTPRequestsPerSec,
		Burst:             cfg.HTTPRequestBurst,
		RequestTimeout:    cfg.HTTPRequestTimeout,
	}, tradingService, appLogger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		appLogger.Info(context.Background(), "Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			appLogger.Error(context.Background(), err, "HTTP server failed")
		}
	}

	// 8. Graceful shutdown: stop intake first, then the monitors.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "HTTP server shutdown failed")
	}
	if err := tradingService.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, err, "Trading service shutdown incomplete")
	}
	stats := riskManager.GetStats()
	appLogger.Info(shutdownCtx, "Risk statistics at shutdown", map[string]interface{}{
		"openTrades": stats.OpenTrades,
		"dailyPnl":   stats.DailyPnL,
		"rejections": stats.Rejections,
	})
	appLogger.Info(shutdownCtx, "Application finished gracefully.")
	return nil
}
