// Package config implements TOML configuration loading and defaults for the
// resumeup CLI: default chunk size, default HTTP method, base URI, bearer
// token source selection, and logging level/format (SPEC_FULL.md §3).
package config

// Config is the top-level configuration structure.
type Config struct {
	Upload  UploadConfig  `toml:"upload"`
	Auth    AuthConfig    `toml:"auth"`
	Logging LoggingConfig `toml:"logging"`
}

// UploadConfig controls the default shape of an upload session.
type UploadConfig struct {
	BaseURI    string `toml:"base_uri"`
	Method     string `toml:"method"`
	ChunkSize  string `toml:"chunk_size"`
	MaxRetries int    `toml:"max_retries"`
}

// AuthConfig selects where the bearer token for upload requests comes from.
type AuthConfig struct {
	TokenSource string `toml:"token_source"` // "env", "file", or "static"
	TokenEnvVar string `toml:"token_env_var"`
	TokenFile   string `toml:"token_file"`
	StaticToken string `toml:"static_token"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // "auto" (default), "text" or "json"
}
