package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Chakra configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Ollama       OllamaConfig       `mapstructure:"ollama"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Memory       MemoryConfig       `mapstructure:"memory"`
	Analytics    AnalyticsConfig    `mapstructure:"analytics"`
	Retrieval    RetrievalConfig    `mapstructure:"retrieval"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig controls the HTTP API server
type ServerConfig struct {
	// Host is the listen address (default: "0.0.0.0")
	Host string `mapstructure:"host"`
	// Port is the listen port (default: 8000)
	Port int `mapstructure:"port"`
	// ReadTimeoutSeconds bounds request header/body reads (default: 30)
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
	// IdleTimeoutSeconds bounds keep-alive idle connections (default: 120).
	// There is deliberately no write timeout: SSE responses are long-lived.
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
	// AllowedOrigins lists origins accepted by the CORS middleware
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OllamaConfig controls the model backend connection
type OllamaConfig struct {
	// URL is the base URL of the Ollama server (default: "http://localhost:11434")
	URL string `mapstructure:"url"`
	// Model is the model tag passed on every chat call (default: "qwen2.5:1.5b")
	Model string `mapstructure:"model"`
	// FastMode selects the low-latency inference presets (default: true)
	FastMode bool `mapstructure:"fast_mode"`
	// TimeoutSeconds bounds a single chat call (default: 60)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// OrchestratorConfig controls the refinement loop
type OrchestratorConfig struct {
	// MaxIterations caps the number of rounds per session (default: 3)
	MaxIterations int `mapstructure:"max_iterations"`
	// MinImprovement is the plateau threshold: a round that improves on the
	// previous round's post-score by less than this stops the loop (default: 0.05)
	MinImprovement float64 `mapstructure:"min_improvement"`
	// PersistFloor is the score a session's best solution must exceed to be
	// written to memory (default: 0.6)
	PersistFloor float64 `mapstructure:"persist_floor"`
	// EventBuffer is the size of the progress event channel (default: 64)
	EventBuffer int `mapstructure:"event_buffer"`
	// SendTimeoutSeconds bounds how long the round loop waits on a stalled
	// event consumer before abandoning the session (default: 30)
	SendTimeoutSeconds int `mapstructure:"send_timeout_seconds"`
}

// MemoryConfig controls the durable solution store
type MemoryConfig struct {
	// Path is the SQLite database file (default: "data/memory.db")
	Path string `mapstructure:"path"`
	// MinScore filters similar-task lookups to decent solutions (default: 0.7)
	MinScore float64 `mapstructure:"min_score"`
}

// AnalyticsConfig controls the Redis-backed metrics tracker
type AnalyticsConfig struct {
	// Enabled toggles analytics recording entirely (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Addr is the Redis host:port (default: "localhost:6379")
	Addr string `mapstructure:"addr"`
	// Password is the Redis password, empty for none
	Password string `mapstructure:"password"`
	// DB is the Redis logical database (default: 0)
	DB int `mapstructure:"db"`
	// KeepTasks caps how many task records are retained (default: 100)
	KeepTasks int `mapstructure:"keep_tasks"`
}

// RetrievalConfig controls the document retriever
type RetrievalConfig struct {
	// DocumentsDir holds the corpus and its JSON index (default: "data/documents")
	DocumentsDir string `mapstructure:"documents_dir"`
	// ChunkSize is the target chunk length in words (default: 500)
	ChunkSize int `mapstructure:"chunk_size"`
	// ChunkOverlap is the word overlap between consecutive chunks (default: 50)
	ChunkOverlap int `mapstructure:"chunk_overlap"`
	// TopK is the number of chunks returned per query (default: 3)
	TopK int `mapstructure:"top_k"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// SetDefaults registers default values for all settings with viper.
// Call before reading the config file so defaults apply even without one.
func SetDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout_seconds", 30)
	viper.SetDefault("server.idle_timeout_seconds", 120)
	viper.SetDefault("server.allowed_origins", []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	})

	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "qwen2.5:1.5b")
	viper.SetDefault("ollama.fast_mode", true)
	viper.SetDefault("ollama.timeout_seconds", 60)

	viper.SetDefault("orchestrator.max_iterations", 3)
	viper.SetDefault("orchestrator.min_improvement", 0.05)
	viper.SetDefault("orchestrator.persist_floor", 0.6)
	viper.SetDefault("orchestrator.event_buffer", 64)
	viper.SetDefault("orchestrator.send_timeout_seconds", 30)

	viper.SetDefault("memory.path", "data/memory.db")
	viper.SetDefault("memory.min_score", 0.7)

	viper.SetDefault("analytics.enabled", true)
	viper.SetDefault("analytics.addr", "localhost:6379")
	viper.SetDefault("analytics.password", "")
	viper.SetDefault("analytics.db", 0)
	viper.SetDefault("analytics.keep_tasks", 100)

	viper.SetDefault("retrieval.documents_dir", "data/documents")
	viper.SetDefault("retrieval.chunk_size", 500)
	viper.SetDefault("retrieval.chunk_overlap", 50)
	viper.SetDefault("retrieval.top_k", 3)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.dir", "")
}

// Load unmarshals the current viper state into a Config.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OllamaTimeout returns the chat call timeout as a duration.
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.Ollama.TimeoutSeconds) * time.Second
}

// SendTimeout returns the bounded event-send window as a duration.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Orchestrator.SendTimeoutSeconds) * time.Second
}
