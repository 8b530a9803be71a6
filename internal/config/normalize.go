package config

import "strings"

// normalize expands path fields and fills empty values with defaults.
func (c *Config) normalize() error {
	defaults := Default()

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaults.Paths.DataDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaults.Paths.LogDir
	}
	if strings.TrimSpace(c.Paths.PrefsPath) == "" {
		c.Paths.PrefsPath = defaults.Paths.PrefsPath
	}

	for _, field := range []*string{&c.Paths.DataDir, &c.Paths.LogDir, &c.Paths.PrefsPath} {
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if strings.TrimSpace(c.Worker.Host) == "" {
		c.Worker.Host = defaults.Worker.Host
	}
	if c.Worker.SettleDelayMS <= 0 {
		c.Worker.SettleDelayMS = defaults.Worker.SettleDelayMS
	}
	if c.Worker.DialTimeoutMS <= 0 {
		c.Worker.DialTimeoutMS = defaults.Worker.DialTimeoutMS
	}
	if c.Worker.RenderTimeoutSec <= 0 {
		c.Worker.RenderTimeoutSec = defaults.Worker.RenderTimeoutSec
	}

	if len(c.Export.Scales) == 0 {
		c.Export.Scales = defaults.Export.Scales
	}
	if len(c.Export.Formats) == 0 {
		c.Export.Formats = defaults.Export.Formats
	}
	normalized := make([]string, 0, len(c.Export.Formats))
	for _, format := range c.Export.Formats {
		format = strings.ToLower(strings.TrimSpace(format))
		if format != "" {
			normalized = append(normalized, format)
		}
	}
	c.Export.Formats = normalized

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaults.Logging.Format
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaults.Logging.Level
	}

	return nil
}
