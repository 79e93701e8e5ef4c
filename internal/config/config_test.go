package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/straye-as/funnel-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func validAnalytics() config.AnalyticsConfig {
	return config.AnalyticsConfig{
		QueryTimeout: 10,
		DefaultRange: "30d",
		LedgerSource: "database",
		Bottleneck:   config.BottleneckConfig{HighHours: 72, MediumHours: 24, MinSampleSize: 3},
		Heatmap:      config.HeatmapConfig{Source: "stage_entries", Timezone: "UTC", Policy: "tertile"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 10*time.Second, cfg.Analytics.QueryTimeoutDuration())
	assert.Equal(t, "30d", cfg.Analytics.DefaultRange)
	assert.Equal(t, 72.0, cfg.Analytics.Bottleneck.HighHours)
	assert.Equal(t, 24.0, cfg.Analytics.Bottleneck.MediumHours)
	assert.Equal(t, 3, cfg.Analytics.Bottleneck.MinSampleSize)
	assert.Equal(t, "stage_entries", cfg.Analytics.Heatmap.Source)
	assert.Equal(t, "memory", cfg.Cache.Mode)
	assert.False(t, cfg.Warehouse.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ANALYTICS_BOTTLENECK_HIGHHOURS", "96")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 96.0, cfg.Analytics.Bottleneck.HighHours)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestAnalyticsConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.AnalyticsConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.AnalyticsConfig) {}},
		{name: "high below medium", mutate: func(a *config.AnalyticsConfig) { a.Bottleneck.HighHours = 10 }, wantErr: true},
		{name: "negative medium", mutate: func(a *config.AnalyticsConfig) { a.Bottleneck.MediumHours = -1 }, wantErr: true},
		{name: "zero timeout", mutate: func(a *config.AnalyticsConfig) { a.QueryTimeout = 0 }, wantErr: true},
		{name: "unknown ledger source", mutate: func(a *config.AnalyticsConfig) { a.LedgerSource = "s3" }, wantErr: true},
		{name: "unknown heatmap source", mutate: func(a *config.AnalyticsConfig) { a.Heatmap.Source = "clicks" }, wantErr: true},
		{name: "bad timezone", mutate: func(a *config.AnalyticsConfig) { a.Heatmap.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "fixed policy without bounds", mutate: func(a *config.AnalyticsConfig) { a.Heatmap.Policy = "fixed" }, wantErr: true},
		{name: "fixed policy with bounds", mutate: func(a *config.AnalyticsConfig) {
			a.Heatmap.Policy = "fixed"
			a.Heatmap.LowMax = 2
			a.Heatmap.MediumMax = 5
		}},
		{name: "warehouse ledger", mutate: func(a *config.AnalyticsConfig) { a.LedgerSource = "warehouse" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnalytics()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
