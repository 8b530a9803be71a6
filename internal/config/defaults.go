package config

const (
	defaultDataDir          = "~/.local/share/slicer"
	defaultLogDir           = "~/.local/share/slicer/logs"
	defaultPrefsPath        = "~/.config/slicer/prefs.json"
	defaultWorkerHost       = "127.0.0.1"
	defaultSettleDelayMS    = 3000
	defaultDialTimeoutMS    = 2000
	defaultRenderTimeoutSec = 120
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

func defaultScales() []float64 {
	return []float64{0.5, 1, 1.5, 2, 3, 4}
}

func defaultFormats() []string {
	return []string{"png", "jpg", "svg"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			PrefsPath: defaultPrefsPath,
		},
		Worker: Worker{
			Host:             defaultWorkerHost,
			SettleDelayMS:    defaultSettleDelayMS,
			DialTimeoutMS:    defaultDialTimeoutMS,
			RenderTimeoutSec: defaultRenderTimeoutSec,
		},
		Export: Export{
			Scales:  defaultScales(),
			Formats: defaultFormats(),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
