package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/pensezy/edutrack/cmd/campusapi/cmd/cmdutil"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/auth"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/middleware"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/server"
	"github.com/pensezy/edutrack/cmd/campusapi/internal/telemetry"
)

var pruneInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the campus API server",
	Long:  `Starts the HTTP server with the login, session and user endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireSigningSecret(); err != nil {
			return err
		}
		if pruneInterval <= 0 {
			return fmt.Errorf("--prune-interval must be positive")
		}

		bundle, err := cmdutil.NewIdentityBundle(cfg, log)
		if err != nil {
			return err
		}
		defer bundle.Close()
		svc := bundle.Service
		log.Info().Str("driver", bundle.DB.Dialect().Name().String()).Msg("connected to database")

		enforcer, err := auth.InitEnforcer()
		if err != nil {
			return fmt.Errorf("configure casbin enforcer: %w", err)
		}
		metrics := telemetry.NewServerMetrics()
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			PerMinute: cfg.Auth.LoginRatePerMinute,
			Burst:     cfg.Auth.LoginBurst,
		})

		proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return err
		}

		r := server.NewRouter(server.RouterOptions{
			Identity:       svc,
			Enforcer:       enforcer,
			Metrics:        metrics,
			LoginLimiter:   limiter,
			Logger:         log,
			TrustedProxies: proxies,
		})

		pruneCtx, cancelPrune := context.WithCancel(cmd.Context())
		defer cancelPrune()
		go func() {
			ticker := time.NewTicker(pruneInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					n, err := svc.PruneSessions(pruneCtx)
					if err != nil {
						log.Error().Err(err).Msg("session pruning failed")
						continue
					}
					if n > 0 {
						log.Info().Int64("removed", n).Msg("pruned expired sessions")
					}
				case <-pruneCtx.Done():
					return
				}
			}
		}()

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2c.NewHandler(r, &http2.Server{}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.ServerAddr).Str("url", cfg.ServerURL).Msg("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Info().Msg("server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().DurationVar(&pruneInterval, "prune-interval", 15*time.Minute, "How often expired sessions are deleted")
	rootCmd.AddCommand(serveCmd)
}
