package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	domainConfig "github.com/secmon-lab/mnemosyne/pkg/domain/model/config"
	"github.com/urfave/cli/v3"
)

// ChatFile is the TOML representation of the chat tuning knobs.
// Absent values keep their defaults.
type ChatFile struct {
	SystemInstruction    string   `toml:"system_instruction"`
	ContextWindow        *int     `toml:"context_window"`
	ThresholdFraction    *float64 `toml:"threshold_fraction"`
	ReservedOutputTokens *int     `toml:"reserved_output_tokens"`
	MaxHistoryLength     *int     `toml:"max_history_length"`
	CompletionTimeout    string   `toml:"completion_timeout"`
	HistoricalKeywords   []string `toml:"historical_keywords"`

	PastQA     *TierFile `toml:"past_qa"`
	General    *TierFile `toml:"general"`
	Historical *TierFile `toml:"historical"`
	Cognitive  *TierFile `toml:"cognitive"`
}

// TierFile is the TOML representation of one retrieval tier
type TierFile struct {
	Collection string   `toml:"collection"`
	Limit      *int     `toml:"limit"`
	Threshold  *float64 `toml:"threshold"`
}

func (t *TierFile) apply(dst *domainConfig.TierConfig) {
	if t == nil {
		return
	}
	if t.Collection != "" {
		dst.Collection = t.Collection
	}
	if t.Limit != nil {
		dst.Limit = *t.Limit
	}
	if t.Threshold != nil {
		dst.Threshold = *t.Threshold
	}
}

// Apply overlays the file values onto cfg
func (f *ChatFile) Apply(cfg *domainConfig.ChatConfig) error {
	if f.SystemInstruction != "" {
		cfg.SystemInstruction = f.SystemInstruction
	}
	if f.ContextWindow != nil {
		cfg.ContextWindow = *f.ContextWindow
	}
	if f.ThresholdFraction != nil {
		cfg.ThresholdFraction = *f.ThresholdFraction
	}
	if f.ReservedOutputTokens != nil {
		cfg.ReservedOutputTokens = *f.ReservedOutputTokens
	}
	if f.MaxHistoryLength != nil {
		cfg.MaxHistoryLength = *f.MaxHistoryLength
	}
	if f.CompletionTimeout != "" {
		d, err := time.ParseDuration(f.CompletionTimeout)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid completion_timeout",
				goerr.V("completion_timeout", f.CompletionTimeout), goerr.V("cause", err.Error()))
		}
		cfg.CompletionTimeout = d
	}
	if len(f.HistoricalKeywords) > 0 {
		cfg.HistoricalKeywords = append([]string(nil), f.HistoricalKeywords...)
	}

	f.PastQA.apply(&cfg.PastQA)
	f.General.apply(&cfg.General)
	f.Historical.apply(&cfg.Historical)
	f.Cognitive.apply(&cfg.Cognitive)
	return nil
}

// LoadChatConfiguration reads a chat tuning file and overlays it onto the defaults
func LoadChatConfiguration(path string) (domainConfig.ChatConfig, error) {
	cfg := domainConfig.DefaultChatConfig()
	if err := loadChatFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, goerr.Wrap(ErrInvalidConfig, "config validation failed",
			goerr.V(ConfigPathKey, path), goerr.V("cause", err.Error()))
	}

	return cfg, nil
}

func loadChatFile(path string, cfg *domainConfig.ChatConfig) error {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return goerr.Wrap(ErrConfigNotFound, "chat config file not found", goerr.V(ConfigPathKey, path))
		}
		return goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var file ChatFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path), goerr.V("cause", err.Error()))
	}

	if err := file.Apply(cfg); err != nil {
		return goerr.Wrap(err, "failed to apply chat config", goerr.V(ConfigPathKey, path))
	}
	return nil
}

// Chat holds CLI flags for the context assembly pipeline
type Chat struct {
	configPath        string
	contextWindow     int
	thresholdFraction float64
	maxHistoryLength  int
	completionTimeout time.Duration
	asyncRecording    bool
	extractKnowledge  bool
}

// Flags returns CLI flags for chat configuration
func (x *Chat) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "chat-config",
			Usage:       "Path to a TOML file with chat tuning parameters",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_CHAT_CONFIG"),
			Destination: &x.configPath,
		},
		&cli.IntFlag{
			Name:        "context-window",
			Usage:       "Context window of the model in tokens (overrides config file)",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_CONTEXT_WINDOW"),
			Destination: &x.contextWindow,
		},
		&cli.FloatFlag{
			Name:        "threshold-fraction",
			Usage:       "Fraction of the context window usable for the prompt (overrides config file)",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_THRESHOLD_FRACTION"),
			Destination: &x.thresholdFraction,
		},
		&cli.IntFlag{
			Name:        "max-history-length",
			Usage:       "Maximum number of stored chat turns per user (overrides config file)",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_MAX_HISTORY_LENGTH"),
			Destination: &x.maxHistoryLength,
		},
		&cli.DurationFlag{
			Name:        "completion-timeout",
			Usage:       "Timeout of one model completion (overrides config file)",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_COMPLETION_TIMEOUT"),
			Destination: &x.completionTimeout,
		},
		&cli.BoolFlag{
			Name:        "async-recording",
			Usage:       "Record turns in the background after responding",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_ASYNC_RECORDING"),
			Destination: &x.asyncRecording,
		},
		&cli.BoolFlag{
			Name:        "extract-knowledge",
			Usage:       "Distill facts about the user from each turn into the historical collection (requires an LLM)",
			Category:    "Chat",
			Sources:     cli.EnvVars("MNEMOSYNE_EXTRACT_KNOWLEDGE"),
			Destination: &x.extractKnowledge,
		},
	}
}

// LogAttrs returns log attributes for the chat configuration
func (x *Chat) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("config_path", x.configPath),
		slog.Int("context_window", x.contextWindow),
		slog.Float64("threshold_fraction", x.thresholdFraction),
		slog.Int("max_history_length", x.maxHistoryLength),
		slog.Duration("completion_timeout", x.completionTimeout),
		slog.Bool("async_recording", x.asyncRecording),
		slog.Bool("extract_knowledge", x.extractKnowledge),
	}
}

// AsyncRecording reports whether turns are recorded in the background
func (x *Chat) AsyncRecording() bool {
	return x.asyncRecording
}

// ExtractKnowledge reports whether knowledge extraction is requested
func (x *Chat) ExtractKnowledge() bool {
	return x.extractKnowledge
}

// Configure builds the chat configuration: defaults, then the config file, then flags.
// Validation runs once on the merged result.
func (x *Chat) Configure() (domainConfig.ChatConfig, error) {
	cfg := domainConfig.DefaultChatConfig()
	if x.configPath != "" {
		if err := loadChatFile(x.configPath, &cfg); err != nil {
			return cfg, err
		}
	}

	if x.contextWindow > 0 {
		cfg.ContextWindow = x.contextWindow
	}
	if x.thresholdFraction > 0 {
		cfg.ThresholdFraction = x.thresholdFraction
	}
	if x.maxHistoryLength > 0 {
		cfg.MaxHistoryLength = x.maxHistoryLength
	}
	if x.completionTimeout > 0 {
		cfg.CompletionTimeout = x.completionTimeout
	}

	if err := cfg.Validate(); err != nil {
		return cfg, goerr.Wrap(ErrInvalidConfig, "invalid chat configuration", goerr.V("cause", err.Error()))
	}
	return cfg, nil
}

// ConfigPath returns the chat tuning file path, empty when not given
func (x *Chat) ConfigPath() string {
	return x.configPath
}
