package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dkrasnelis/voxprep/internal/config"
)

// defaultConfigPath is probed when the user does not pass -config. A missing
// file at the default path is fine; a missing file at an explicit path is
// not.
const defaultConfigPath = "voxprep.yaml"

// loadConfig resolves the effective configuration for one subcommand and
// installs the logger.
func loadConfig(path string) (*config.Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg = config.Default()
		} else {
			return nil, err
		}
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	return cfg, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// checkOutput guards against clobbering a previous run's output.
func checkOutput(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("output %q already exists; pass -overwrite to replace it", path)
	}
	return nil
}

func fatalf(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, "voxprep: "+format+"\n", args...)
	return 1
}
