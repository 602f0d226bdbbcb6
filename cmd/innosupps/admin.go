package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/auth"
	"github.com/simd-personal/Inno-Supps/job"
)

// withApp builds the app, runs fn and tears the app down.
func withApp(f *rootFlags, fn func(ctx context.Context, a *app) error) error {
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
	runErr := fn(ctx, a)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.close(closeCtx); err != nil {
		logger.Warn("close error", slog.String("error", err.Error()))
	}
	return runErr
}

func newMigrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply store migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(f, func(ctx context.Context, a *app) error {
				if err := a.store.Migrate(ctx); err != nil {
					return err
				}
				a.logger.Info("migrations applied", slog.String("driver", a.cfg.Database.Driver))
				return nil
			})
		},
	}
}

func newEnqueueCmd(f *rootFlags) *cobra.Command {
	var (
		workspace string
		kwargs    string
		queue     string
		delay     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "enqueue FUNCTION",
		Short: "Queue one job with JSON keyword arguments",
		Example: `  innosupps enqueue ingest_email --workspace ws_1 \
    --kwargs '{"email_data":{"subject":"Pricing","body":"Can we talk pricing?"}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(kwargs)) {
				return innosupps.Invalid("--kwargs is not valid JSON")
			}
			return withApp(f, func(ctx context.Context, a *app) error {
				opts := []job.Option{job.WithWorkspace(workspace)}
				if queue != "" {
					opts = append(opts, job.WithQueue(queue))
				}
				if delay > 0 {
					opts = append(opts, job.WithDelay(delay))
				}
				jobID, err := a.eng.Enqueue(ctx, args[0], nil, json.RawMessage(kwargs), opts...)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), jobID.String())
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id (default system)")
	cmd.Flags().StringVar(&kwargs, "kwargs", "{}", "keyword arguments as a JSON object")
	cmd.Flags().StringVarP(&queue, "queue", "q", "", "override the function's queue")
	cmd.Flags().DurationVar(&delay, "delay", 0, "run no earlier than this from now")
	return cmd
}

func newStatsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print per-queue job counts as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(f, func(ctx context.Context, a *app) error {
				stats, err := a.eng.QueueStats(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"queue_stats": stats})
			})
		},
	}
}

func newTokenCmd(f *rootFlags) *cobra.Command {
	var (
		user, workspace string
		session         bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with auth.jwt_secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := f.load()
			if err != nil {
				return err
			}
			if session {
				// The session must land in the cache the server reads.
				if cfg.Redis.URL == "" {
					return innosupps.Invalid("--session needs redis.url")
				}
				return withApp(f, func(ctx context.Context, a *app) error {
					issuer, err := auth.NewIssuer(cfg.Auth, auth.WithSessions(a.cache))
					if err != nil {
						return err
					}
					tok, err := issuer.Open(ctx, user, workspace)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
					return err
				})
			}
			issuer, err := auth.NewIssuer(cfg.Auth)
			if err != nil {
				return err
			}
			tok, err := issuer.Issue(user, workspace)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "user id (token subject)")
	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace_id claim")
	cmd.Flags().BoolVar(&session, "session", false, "back the token with a revocable session in redis")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
