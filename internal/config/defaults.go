package config

const (
	defaultConfigPath            = "~/.config/weft/config.toml"
	defaultLogDir                = "~/.local/share/weft/logs"
	defaultStateDir              = "~/.local/share/weft/state"
	defaultAccountTimeoutSeconds = 30
	defaultOperation             = "all"
	defaultEndpointKind          = "internal"
	defaultWorkerVersion         = "0.1.0"
	defaultPollInterval          = 5
	defaultHandshakeInterval     = 60
	defaultResolveTimeout        = -1
	defaultProgressIntervalMS    = 5000
	defaultPingInterval          = 30
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultNotifyRequestTimeout  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Account: Account{
			TimeoutSeconds: defaultAccountTimeoutSeconds,
		},
		Worker: Worker{
			Version:            defaultWorkerVersion,
			Operation:          defaultOperation,
			EndpointKind:       defaultEndpointKind,
			PollInterval:       defaultPollInterval,
			HandshakeInterval:  defaultHandshakeInterval,
			ResolveTimeout:     defaultResolveTimeout,
			ProgressIntervalMS: defaultProgressIntervalMS,
			PingInterval:       defaultPingInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Errors:         true,
		},
	}
}
