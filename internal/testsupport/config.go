package testsupport

import (
	"path/filepath"
	"testing"

	"slicer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.PrefsPath = filepath.Join(base, "prefs.json")
	// Keep handshake waits short in tests.
	cfg.Worker.SettleDelayMS = 5
	cfg.Worker.DialTimeoutMS = 100

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithScales overrides the defined export scale set on the test config.
func WithScales(scales ...float64) ConfigOption {
	return func(c *config.Config) {
		c.Export.Scales = scales
	}
}

// WithQuickConnect enables the debug quick-connect handshake path.
func WithQuickConnect() ConfigOption {
	return func(c *config.Config) {
		c.Worker.DebugQuickConnect = true
	}
}
