// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finman/finman/internal/account"
	accountpg "github.com/finman/finman/internal/account/postgres"
	"github.com/finman/finman/internal/config"
	"github.com/finman/finman/internal/httpapi"
	"github.com/finman/finman/internal/logging"
	"github.com/finman/finman/internal/notify"
	"github.com/finman/finman/internal/observability"
	"github.com/finman/finman/internal/store"
	"github.com/finman/finman/internal/token"
)

const shutdownTimeout = 5 * time.Second

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP API server that handles account registration,
email confirmation, login and password resets, plus the metrics listener.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, autoMigrate)
		},
	}

	// Flag names double as koanf config keys.
	cmd.Flags().String("http.addr", config.DefaultHTTPAddr, "API listen address")
	cmd.Flags().String("metrics.addr", config.DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log.format", config.DefaultLogFormat, "log format (json or text)")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "run pending migrations before serving")

	return cmd
}

// runServe starts the API and observability servers and blocks until a
// shutdown signal arrives.
func runServe(ctx context.Context, cfg *config.Config, autoMigrate bool) error {
	logging.SetDefault("finman", version, cfg.Log.Format)
	logger := slog.Default()

	if autoMigrate {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
	}

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokens, err := token.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AuthTTL)
	if err != nil {
		return err
	}

	// Observability server, if configured. Readiness tracks the database.
	var obsServer *observability.Server
	var metrics *observability.AuthMetrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		if _, err := obsServer.Start(); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		metrics = obsServer.Metrics()
	}

	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier, err = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			stopServer(obsServer)
			return err
		}
	} else {
		logger.Warn("smtp host not configured, notifications go to the log")
		notifier = notify.NewLogNotifier(logger)
	}
	if metrics != nil {
		notifier = countingNotifier{inner: notifier, metrics: metrics}
	}

	accounts, err := account.NewService(
		accountpg.NewAccountRepository(pool),
		account.NewArgon2idHasher(),
		account.NewEmailValidator(account.MXChecker{}),
		tokens,
		notifier,
		account.ServiceConfig{
			FrontendBaseURL: cfg.Frontend.BaseURL,
			ConfirmTokenTTL: cfg.Tokens.ConfirmTTL,
			ResetTokenTTL:   cfg.Tokens.ResetTTL,
			NotifyTimeout:   cfg.Notify.Timeout,
			Logger:          logger,
		},
	)
	if err != nil {
		stopServer(obsServer)
		return err
	}

	handler := httpapi.NewHandler(accounts, metrics, logger)
	apiServer := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(handler, tokens, logger))

	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopServer(obsServer)
		return fmt.Errorf("failed to start api server: %w", err)
	}

	slog.Info("finman ready",
		"http_addr", apiServer.Addr(),
		"metrics_addr", cfg.Metrics.Addr,
	)

	// Wait for a signal, caller cancellation, or a server failure.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case serveErr := <-apiErrCh:
		if serveErr != nil {
			slog.Error("api server failed", "error", serveErr)
		}
	}

	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping api server", "error", err)
	}
	stopServer(obsServer)

	slog.Info("shutdown complete")
	return nil
}

// countingNotifier records delivery outcomes in the notifications counter.
type countingNotifier struct {
	inner   notify.Notifier
	metrics *observability.AuthMetrics
}

func (n countingNotifier) Send(ctx context.Context, msg notify.Message) error {
	err := n.inner.Send(ctx, msg)
	if err != nil {
		n.metrics.NotificationsTotal.WithLabelValues("error").Inc()
		return err
	}
	n.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	return nil
}

func stopServer(obsServer *observability.Server) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}
