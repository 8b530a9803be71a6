package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownFormats = map[string]struct{}{
	"png": {},
	"jpg": {},
	"svg": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.PrefsPath) == "" {
		return errors.New("paths.prefs_path must be set")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if strings.TrimSpace(c.Worker.Host) == "" {
		return errors.New("worker.host must be set")
	}
	if c.Worker.SettleDelayMS < 0 {
		return errors.New("worker.settle_delay_ms must not be negative")
	}
	if c.Worker.DialTimeoutMS <= 0 {
		return errors.New("worker.dial_timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateExport() error {
	if len(c.Export.Scales) == 0 {
		return errors.New("export.scales must define at least one scale")
	}
	seen := make(map[float64]struct{}, len(c.Export.Scales))
	for _, scale := range c.Export.Scales {
		if scale <= 0 {
			return fmt.Errorf("export.scales: scale %v must be positive", scale)
		}
		if _, ok := seen[scale]; ok {
			return fmt.Errorf("export.scales: scale %v listed twice", scale)
		}
		seen[scale] = struct{}{}
	}
	for _, format := range c.Export.Formats {
		if _, ok := knownFormats[format]; !ok {
			return fmt.Errorf("export.formats: unsupported format %q", format)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
