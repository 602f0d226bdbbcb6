package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	innosupps "github.com/simd-personal/Inno-Supps"
)

type rootFlags struct {
	configPath string
	logLevel   string
	mock       bool
}

func newRootCmd() *cobra.Command {
	var f rootFlags

	root := &cobra.Command{
		Use:           "innosupps",
		Short:         "Background job service for marketing operations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&f.mock, "mock", false, "force mock mode on")

	root.AddCommand(
		newServeCmd(&f),
		newWorkerCmd(&f),
		newMigrateCmd(&f),
		newEnqueueCmd(&f),
		newStatsCmd(&f),
		newTokenCmd(&f),
	)
	return root
}

// load reads the config and builds the process logger.
func (f *rootFlags) load() (innosupps.Config, *slog.Logger, error) {
	cfg, err := innosupps.LoadConfig(f.configPath)
	if err != nil {
		return innosupps.Config{}, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.mock {
		cfg.MockMode = true
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return innosupps.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(cfg innosupps.LogConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, innosupps.Invalid("log.level %q", cfg.Level)
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: log.format %q", innosupps.ErrValidation, cfg.Format)
	}
}
