package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/simd-personal/Inno-Supps/api"
	"github.com/simd-personal/Inno-Supps/auth"
	"github.com/simd-personal/Inno-Supps/ratelimit"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(f *rootFlags) *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}

			issuer, err := auth.NewIssuer(cfg.Auth, auth.WithSessions(a.cache))
			if err != nil {
				_ = a.close(context.Background())
				return err
			}
			srvAPI, err := api.New(api.Deps{
				Engine:     a.eng,
				Jobs:       a.jobs,
				Issuer:     issuer,
				Authorizer: auth.NewAuthorizer(a.store),
				Tools:      a.tools,
				Limiter:    ratelimit.NewAPILimiter(ratelimit.New(a.cache), cfg.RateLimit.APILimit, cfg.RateLimit.APIWindow),
				Hub:        a.hub,
				Gatherer:   a.metrics,
				Logger:     logger,
			})
			if err != nil {
				_ = a.close(context.Background())
				return err
			}

			srv := &http.Server{
				Addr:        cfg.HTTP.Addr,
				Handler:     srvAPI.Handler(),
				ReadTimeout: cfg.HTTP.ReadTimeout,
				// Websocket streams set their own write deadlines.
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			if withWorker {
				if err := a.eng.Start(gctx); err != nil {
					_ = a.close(context.Background())
					return err
				}
			}
			if a.relay != nil {
				g.Go(func() error { return a.relay.Run(gctx, a.hub, nil) })
			}
			g.Go(func() error {
				logger.Info("http server listening", slog.String("addr", srv.Addr), slog.Bool("worker", withWorker))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
			defer cancel()
			if cerr := a.close(shutdownCtx); cerr != nil {
				logger.Warn("shutdown error", slog.String("error", cerr.Error()))
			}
			logger.Info("server stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also run workers and sweeps in this process")
	return cmd
}

func newWorkerCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run workers and maintenance sweeps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := f.load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if err := a.eng.Start(ctx); err != nil {
				_ = a.close(context.Background())
				return err
			}
			logger.Info("worker started",
				slog.Int("concurrency", cfg.Worker.Concurrency),
				slog.Any("queues", cfg.QueueNames()),
				slog.Bool("mock_mode", cfg.MockMode),
			)

			<-ctx.Done()
			logger.Info("worker shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
			defer cancel()
			return a.close(shutdownCtx)
		},
	}
}
