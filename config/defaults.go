package config

const (
	defaultDatasetDir = "~/datasets"
	defaultStorePath  = "~/.local/share/vodconv/runs.db"
	defaultLogLevel   = "info"
	defaultLogFormat  = "text"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatasetDir: defaultDatasetDir,
			StorePath:  defaultStorePath,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
