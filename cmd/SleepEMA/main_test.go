package main

import (
	"os"
	"testing"

	"github.com/BTreeMap/SleepEMA/internal/config"
	"github.com/BTreeMap/SleepEMA/internal/models"
)

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	// Clear environment variables
	os.Unsetenv("SLEEPEMA_CONFIG")
	os.Unsetenv("SLEEPEMA_DRY_RUN")
	os.Unsetenv("SLEEPEMA_DEVIATION_PCT")
	os.Unsetenv("SLEEPEMA_MIN_HOURS")

	envCfg := loadEnvironmentConfig()

	if envCfg.ConfigPath != config.DefaultPath {
		t.Errorf("Expected default config path %q, got %q", config.DefaultPath, envCfg.ConfigPath)
	}
	if envCfg.DryRun {
		t.Error("Expected dry-run to default to false")
	}
	if envCfg.DeviationPct != models.DefaultDeviationPercent {
		t.Errorf("Expected default deviation %v, got %v", models.DefaultDeviationPercent, envCfg.DeviationPct)
	}
	if envCfg.MinHours != models.DefaultMinHours {
		t.Errorf("Expected default min hours %v, got %v", models.DefaultMinHours, envCfg.MinHours)
	}
}

func TestLoadEnvironmentConfigOverrides(t *testing.T) {
	os.Setenv("SLEEPEMA_CONFIG", "/etc/sleepema/config.json")
	os.Setenv("SLEEPEMA_DRY_RUN", "true")
	os.Setenv("SLEEPEMA_DEVIATION_PCT", "30")
	os.Setenv("SLEEPEMA_MIN_HOURS", "5")
	defer func() {
		os.Unsetenv("SLEEPEMA_CONFIG")
		os.Unsetenv("SLEEPEMA_DRY_RUN")
		os.Unsetenv("SLEEPEMA_DEVIATION_PCT")
		os.Unsetenv("SLEEPEMA_MIN_HOURS")
	}()

	envCfg := loadEnvironmentConfig()

	if envCfg.ConfigPath != "/etc/sleepema/config.json" {
		t.Errorf("Expected env config path, got %q", envCfg.ConfigPath)
	}
	if !envCfg.DryRun {
		t.Error("Expected dry-run true from environment")
	}
	if envCfg.DeviationPct != 30 || envCfg.MinHours != 5 {
		t.Errorf("Expected thresholds 30/5, got %v/%v", envCfg.DeviationPct, envCfg.MinHours)
	}
}
