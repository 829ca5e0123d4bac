package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Backend     BackendConfig   `toml:"backend"`
	Editor      EditorConfig    `toml:"editor"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
	Seed   SeedConfig   `toml:"seed"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SeedConfig points at the YAML fixture loaded into an empty store
type SeedConfig struct {
	Path string `toml:"path"` // Empty disables seeding
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
	Dir        string   `toml:"dir"`         // Directory for handoff.log; empty means logs/ beside the executable
}

// GeminiConfig contains Google Gemini API configuration.
// Gemini serves text generation and is the only speech provider.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`        // Text, chat and modify (default: "gemini-2.5-flash")
	SlidesModel string  `toml:"slides_model"` // Slide structuring (default: "gemini-2.5-pro")
	TTSModel    string  `toml:"tts_model"`    // Speech synthesis (default: "gemini-2.5-flash-preview-tts")
	Voice       string  `toml:"voice"`        // Prebuilt voice name (default: "Kore")
	Timeout     string  `toml:"timeout"`      // Per-call timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`   // Minimum interval between calls (default: "1s")
	Temperature float32 `toml:"temperature"`  // (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // (default: "claude-haiku-4-5")
	MaxTokens   int     `toml:"max_tokens"` // (default: 8192)
	Timeout     string  `toml:"timeout"`    // (default: "2m")
	RateLimit   string  `toml:"rate_limit"` // (default: "1s")
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the text provider. Audio always uses Gemini.
type LLMConfig struct {
	DefaultProvider     LLMProvider `toml:"default_provider"`
	LanguageInstruction string      `toml:"language_instruction"` // Appended verbatim to every prompt when set
}

// BackendMode selects where AI calls go
type BackendMode string

const (
	BackendModeDirect BackendMode = "direct" // Call providers in-process
	BackendModeRemote BackendMode = "remote" // Forward to a remote /api backend
)

// BackendConfig configures the AI backend used by the editor
type BackendConfig struct {
	Mode    BackendMode `toml:"mode"`
	URL     string      `toml:"url"`     // Base URL for remote mode, e.g. "http://localhost:5000"
	Timeout string      `toml:"timeout"` // HTTP client timeout (default: "2m")
}

// EditorConfig configures editing sessions
type EditorConfig struct {
	OperationTimeout   string `toml:"operation_timeout"`    // Bound on every AI call (default: "2m")
	SessionIdleTimeout string `toml:"session_idle_timeout"` // Idle sessions are evicted after this (default: "30m")
	JanitorSchedule    string `toml:"janitor_schedule"`     // Cron schedule for eviction (default: "@every 1m")
	Author             string `toml:"author"`               // createdBy of generated documents
	ChatGreeting       string `toml:"chat_greeting"`        // First AI message of every session chat
}

// WebSocketConfig contains configuration for session event streaming
type WebSocketConfig struct {
	StateThrottle string `toml:"state_throttle"` // Minimum interval between state messages (default: "100ms")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			SlidesModel: "gemini-2.5-pro",
			TTSModel:    "gemini-2.5-flash-preview-tts",
			Voice:       "Kore",
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   8192,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Backend: BackendConfig{
			Mode:    BackendModeDirect,
			Timeout: "2m",
		},
		Editor: EditorConfig{
			OperationTimeout:   "2m",
			SessionIdleTimeout: "30m",
			JanitorSchedule:    "@every 1m",
			Author:             "佐藤医師",
			ChatGreeting:       "私はあなたのGeminiアシスタントです。ドキュメントに関する質問や編集指示をお寄せください。",
		},
		WebSocket: WebSocketConfig{
			StateThrottle: "100ms",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied afterwards with ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies HANDOFF_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("HANDOFF_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("HANDOFF_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("HANDOFF_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("HANDOFF_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if reset := os.Getenv("HANDOFF_BADGER_RESET_ON_STARTUP"); reset != "" {
		if r, err := strconv.ParseBool(reset); err == nil {
			config.Storage.Badger.ResetOnStartup = r
		}
	}
	if seedPath := os.Getenv("HANDOFF_SEED_PATH"); seedPath != "" {
		config.Storage.Seed.Path = seedPath
	}

	// Logging configuration
	if level := os.Getenv("HANDOFF_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if dir := os.Getenv("HANDOFF_LOG_DIR"); dir != "" {
		config.Logging.Dir = dir
	}
	if output := os.Getenv("HANDOFF_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("HANDOFF_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("HANDOFF_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("HANDOFF_GEMINI_SLIDES_MODEL"); model != "" {
		config.Gemini.SlidesModel = model
	}
	if model := os.Getenv("HANDOFF_GEMINI_TTS_MODEL"); model != "" {
		config.Gemini.TTSModel = model
	}
	if voice := os.Getenv("HANDOFF_GEMINI_VOICE"); voice != "" {
		config.Gemini.Voice = voice
	}
	if timeout := os.Getenv("HANDOFF_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("HANDOFF_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("HANDOFF_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("HANDOFF_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("HANDOFF_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("HANDOFF_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("HANDOFF_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("HANDOFF_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}

	// LLM configuration
	if provider := os.Getenv("HANDOFF_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if lang := os.Getenv("HANDOFF_LLM_LANGUAGE_INSTRUCTION"); lang != "" {
		config.LLM.LanguageInstruction = lang
	}

	// Backend configuration
	if mode := os.Getenv("HANDOFF_BACKEND_MODE"); mode != "" {
		config.Backend.Mode = BackendMode(strings.ToLower(mode))
	}
	if url := os.Getenv("HANDOFF_BACKEND_URL"); url != "" {
		config.Backend.URL = url
	}
	if timeout := os.Getenv("HANDOFF_BACKEND_TIMEOUT"); timeout != "" {
		config.Backend.Timeout = timeout
	}

	// Editor configuration
	if timeout := os.Getenv("HANDOFF_EDITOR_OPERATION_TIMEOUT"); timeout != "" {
		config.Editor.OperationTimeout = timeout
	}
	if idle := os.Getenv("HANDOFF_EDITOR_SESSION_IDLE_TIMEOUT"); idle != "" {
		config.Editor.SessionIdleTimeout = idle
	}
	if schedule := os.Getenv("HANDOFF_EDITOR_JANITOR_SCHEDULE"); schedule != "" {
		config.Editor.JanitorSchedule = schedule
	}
	if author := os.Getenv("HANDOFF_EDITOR_AUTHOR"); author != "" {
		config.Editor.Author = author
	}

	// WebSocket configuration
	if throttle := os.Getenv("HANDOFF_WEBSOCKET_STATE_THROTTLE"); throttle != "" {
		config.WebSocket.StateThrottle = throttle
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks enumerated values, the janitor schedule and
// production safety settings
func (c *Config) Validate() error {
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("invalid llm.default_provider '%s': must be 'gemini' or 'claude'", c.LLM.DefaultProvider)
	}

	switch c.Backend.Mode {
	case BackendModeDirect:
	case BackendModeRemote:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required when backend.mode is 'remote'")
		}
	default:
		return fmt.Errorf("invalid backend.mode '%s': must be 'direct' or 'remote'", c.Backend.Mode)
	}

	if err := ValidateSchedule(c.Editor.JanitorSchedule); err != nil {
		return fmt.Errorf("invalid editor.janitor_schedule: %w", err)
	}

	if c.IsProduction() && c.Storage.Badger.ResetOnStartup {
		return fmt.Errorf("storage.badger.reset_on_startup is not allowed in production")
	}

	return nil
}

// ResolveAPIKey resolves an API key with environment variable priority.
// Resolution order: provider environment variables -> config value -> error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"},
		"anthropic_api_key": {"ANTHROPIC_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ParseDuration parses a duration string, returning fallback when s is empty or invalid
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// ValidateSchedule validates a cron expression or descriptor (e.g. "@every 1m")
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
