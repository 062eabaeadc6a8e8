package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound     = goerr.New("configuration file not found")
	ErrInvalidConfig      = goerr.New("invalid configuration")
	ErrUnknownBackend     = goerr.New("unknown backend")
	ErrMissingFlag        = goerr.New("required flag is missing")
	ErrUnknownLLMProvider = goerr.New("unknown LLM provider")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	BackendKey    = "backend"
	FlagKey       = "flag"
	ProviderKey   = "provider"
)
