package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/cli/config"
)

func TestConfigErrors_SentinelIdentification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		sentinelError error
		wantMatch     bool
	}{
		{
			name:          "ErrConfigNotFound can be identified",
			err:           goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinelError: config.ErrConfigNotFound,
			wantMatch:     true,
		},
		{
			name:          "ErrInvalidConfig can be identified",
			err:           goerr.Wrap(config.ErrInvalidConfig, "validation failed"),
			sentinelError: config.ErrInvalidConfig,
			wantMatch:     true,
		},
		{
			name:          "ErrUnknownBackend can be identified",
			err:           goerr.Wrap(config.ErrUnknownBackend, "bad backend"),
			sentinelError: config.ErrUnknownBackend,
			wantMatch:     true,
		},
		{
			name:          "ErrMissingFlag can be identified",
			err:           goerr.Wrap(config.ErrMissingFlag, "flag is required"),
			sentinelError: config.ErrMissingFlag,
			wantMatch:     true,
		},
		{
			name:          "ErrUnknownLLMProvider can be identified",
			err:           goerr.Wrap(config.ErrUnknownLLMProvider, "bad provider"),
			sentinelError: config.ErrUnknownLLMProvider,
			wantMatch:     true,
		},
		{
			name:          "ErrConfigNotFound is not ErrInvalidConfig",
			err:           goerr.Wrap(config.ErrConfigNotFound, "failed to load config"),
			sentinelError: config.ErrInvalidConfig,
			wantMatch:     false,
		},
		{
			name:          "Double-wrapped error can be identified",
			err:           goerr.Wrap(goerr.Wrap(config.ErrMissingFlag, "inner"), "outer"),
			sentinelError: config.ErrMissingFlag,
			wantMatch:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, errors.Is(tt.err, tt.sentinelError)).Equal(tt.wantMatch)
		})
	}
}

func TestConfigErrors_ContextValues(t *testing.T) {
	err := goerr.Wrap(config.ErrUnknownBackend, "invalid store backend",
		goerr.V(config.BackendKey, "cassandra"))

	var ge *goerr.Error
	gt.Bool(t, errors.As(err, &ge)).True()
	gt.Value(t, ge.Values()[config.BackendKey]).Equal("cassandra")
}
