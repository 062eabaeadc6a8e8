package config

import "time"

// NewChatForTest creates a Chat config for testing purposes
func NewChatForTest(configPath string, contextWindow, maxHistoryLength int, completionTimeout time.Duration) *Chat {
	return &Chat{
		configPath:        configPath,
		contextWindow:     contextWindow,
		maxHistoryLength:  maxHistoryLength,
		completionTimeout: completionTimeout,
	}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, geminiProjectID, openaiAPIKey string) *LLM {
	return &LLM{
		provider:        provider,
		geminiProjectID: geminiProjectID,
		openaiAPIKey:    openaiAPIKey,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(storeBackend, indexBackend string) *Repository {
	return &Repository{
		storeBackend: storeBackend,
		indexBackend: indexBackend,
		sqlitePath:   "mnemosyne.db",
	}
}

// SetSQLitePath overrides the SQLite database path
func (r *Repository) SetSQLitePath(path string) {
	r.sqlitePath = path
}
