// SleepEMA runs one sleep-deviation EMA check: it ingests each configured
// patient's recent nightly sleep, applies the deviation trigger, and
// dispatches survey invitations for the patients whose trigger fired.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/BTreeMap/SleepEMA/internal/config"
	"github.com/BTreeMap/SleepEMA/internal/models"
	"github.com/BTreeMap/SleepEMA/internal/pipeline"
	"github.com/BTreeMap/SleepEMA/internal/util"
	"github.com/joho/godotenv"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	envCfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(envCfg)

	cfg, err := config.Load(*flags.configPath)
	if err != nil && !errors.Is(err, models.ErrConfigMissing) {
		slog.Error("Failed to load configuration", "error", err, "path", *flags.configPath)
		os.Exit(1)
	}

	runner := pipeline.NewRunner(cfg,
		pipeline.WithDryRun(*flags.dryRun),
		pipeline.WithThresholds(*flags.deviationPct, *flags.minHours),
	)

	results := runner.RunOnce(context.Background())
	printSummary(results)
	slog.Info("SleepEMA exited successfully")
}

// EnvConfig holds environment configuration
type EnvConfig struct {
	ConfigPath   string
	DryRun       bool
	DeviationPct float64
	MinHours     float64
}

// Flags holds command line flag values
type Flags struct {
	configPath   *string
	dryRun       *bool
	deviationPct *float64
	minHours     *float64
}

// initializeLogger sets up structured logging
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() EnvConfig {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	envCfg := EnvConfig{
		ConfigPath:   os.Getenv("SLEEPEMA_CONFIG"),
		DryRun:       util.ParseBoolEnv("SLEEPEMA_DRY_RUN", false),
		DeviationPct: util.ParseFloatEnv("SLEEPEMA_DEVIATION_PCT", models.DefaultDeviationPercent),
		MinHours:     util.ParseFloatEnv("SLEEPEMA_MIN_HOURS", models.DefaultMinHours),
	}
	if envCfg.ConfigPath == "" {
		envCfg.ConfigPath = config.DefaultPath
	}

	slog.Debug("environment variables loaded",
		"SLEEPEMA_CONFIG", envCfg.ConfigPath,
		"SLEEPEMA_DRY_RUN", envCfg.DryRun,
		"SLEEPEMA_DEVIATION_PCT", envCfg.DeviationPct,
		"SLEEPEMA_MIN_HOURS", envCfg.MinHours)

	return envCfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(envCfg EnvConfig) Flags {
	flags := Flags{
		configPath:   flag.String("config", envCfg.ConfigPath, "path to config.json (overrides $SLEEPEMA_CONFIG)"),
		dryRun:       flag.Bool("dry", envCfg.DryRun, "report instead of hitting external APIs (overrides $SLEEPEMA_DRY_RUN)"),
		deviationPct: flag.Float64("deviation", envCfg.DeviationPct, "percent deviation threshold (overrides $SLEEPEMA_DEVIATION_PCT)"),
		minHours:     flag.Float64("min-hours", envCfg.MinHours, "minimum total sleep in hours (overrides $SLEEPEMA_MIN_HOURS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"config", *flags.configPath,
		"dry", *flags.dryRun,
		"deviation", *flags.deviationPct,
		"minHours", *flags.minHours)

	return flags
}

// printSummary writes the human-readable per-patient report.
func printSummary(results []models.PatientResult) {
	fmt.Println()
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("%s: error: %v\n", res.PatientID, res.Err)
			continue
		}
		out := res.Outcome
		mode := "live"
		if out.DryRun {
			mode = "dry-run"
		}
		if !out.Decision.Triggered {
			fmt.Printf("%s: no trigger (last night %.2f h, baseline %.2f h, change %.2f%%)\n",
				res.PatientID, out.Decision.LastNightHours, out.Decision.BaselineMeanHours, out.Decision.PercentChange)
			continue
		}
		fmt.Printf("%s: TRIGGERED (%s): last night %.2f h, baseline %.2f h, change %.2f%%, channels %v\n",
			res.PatientID, mode, out.Decision.LastNightHours, out.Decision.BaselineMeanHours,
			out.Decision.PercentChange, out.Channels)
	}
}
