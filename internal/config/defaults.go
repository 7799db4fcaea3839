package config

const (
	defaultConfigPath          = "~/.config/ffexec/config.toml"
	defaultBinary              = "ffmpeg"
	defaultStateDir            = "~/.local/share/ffexec"
	defaultLogDir              = "~/.local/share/ffexec/logs"
	defaultSocketName          = "ffexec.sock"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultReadyTimeoutSeconds = 30
	defaultPollIntervalMillis  = 100
	defaultOutputTailBytes     = 64 << 10
	defaultJournalRetention    = 30
	defaultLogRetention        = 14
	minimumTimeoutSeconds      = 10
)

// MinimumTimeoutSeconds is the smallest accepted command deadline.
const MinimumTimeoutSeconds = minimumTimeoutSeconds

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Binary: Binary{
			Path: defaultBinary,
		},
		Execution: Execution{
			ReadyTimeoutSeconds: defaultReadyTimeoutSeconds,
			PollIntervalMillis:  defaultPollIntervalMillis,
			OutputTailBytes:     defaultOutputTailBytes,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
		Journal: Journal{
			Enabled:       true,
			RetentionDays: defaultJournalRetention,
		},
	}
}
