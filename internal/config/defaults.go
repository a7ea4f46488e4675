package config

import "github.com/haukigw/resumeup/internal/upload"

// Default values for configuration options, the "layer 0" of the
// file-then-default override chain.
const (
	defaultMethod      = "POST"
	defaultChunkSize   = "10MiB"
	defaultMaxRetries  = 5
	defaultTokenSource = "env"
	defaultTokenEnvVar = "RESUMEUP_TOKEN"
	defaultLogLevel    = "info"
	defaultLogFormat   = "auto"
)

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Upload: UploadConfig{
			Method:     defaultMethod,
			ChunkSize:  defaultChunkSize,
			MaxRetries: defaultMaxRetries,
		},
		Auth: AuthConfig{
			TokenSource: defaultTokenSource,
			TokenEnvVar: defaultTokenEnvVar,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

// ChunkSizeBytes parses the configured human-readable chunk size (e.g.
// "10MiB") into bytes, falling back to upload.DefaultChunkSize on an empty
// or unparseable value.
func (c *Config) ChunkSizeBytes() int64 {
	n, ok := parseSize(c.Upload.ChunkSize)
	if !ok {
		return upload.DefaultChunkSize
	}

	return n
}
