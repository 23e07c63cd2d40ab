// Package config provides configuration loading for finsight.
//
// Configuration is read from an optional YAML file, overridden by environment
// variables, then completed with defaults. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete finsight configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Qdrant        QdrantConfig        `koanf:"qdrant"`
	VectorStore   VectorStoreConfig   `koanf:"vectorstore"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	LLM           LLMConfig           `koanf:"llm"`
	Live          LiveConfig          `koanf:"live"`
	Pipeline      PipelineConfig      `koanf:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	BodyLimit       string        `koanf:"body_limit"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool    `koanf:"enable_telemetry"`
	ServiceName     string  `koanf:"service_name"`
	OTLPEndpoint    string  `koanf:"otlp_endpoint"`
	OTLPProtocol    string  `koanf:"otlp_protocol"`
	OTLPInsecure    bool    `koanf:"otlp_insecure"`
	SamplingRate    float64 `koanf:"sampling_rate"`
	LogLevel        string  `koanf:"log_level"`
	LogFormat       string  `koanf:"log_format"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	Host           string `koanf:"host"`
	Port           int    `koanf:"port"`
	CollectionName string `koanf:"collection_name"`
	UseTLS         bool   `koanf:"use_tls"`
	APIKey         Secret `koanf:"api_key"`
}

// VectorStoreConfig selects the vector store backend.
type VectorStoreConfig struct {
	// Provider is "qdrant" (default) or "chromem".
	Provider        string `koanf:"provider"`
	ChromemPath     string `koanf:"chromem_path"`
	ChromemCompress bool   `koanf:"chromem_compress"`
}

// EmbeddingsConfig holds embedding provider settings.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX, default) or "openai" (any
	// OpenAI-compatible embeddings endpoint).
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	Dimension int    `koanf:"dimension"`
	CacheDir  string `koanf:"cache_dir"`
	BaseURL   string `koanf:"base_url"`
	APIKey    Secret `koanf:"api_key"`
}

// LLMConfig configures the chat model used for intent extraction,
// relevance gating and answer rendering.
type LLMConfig struct {
	BaseURL           string        `koanf:"base_url"`
	Model             string        `koanf:"model"`
	APIKey            Secret        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
}

// LiveConfig configures the grounded live-answer backend.
type LiveConfig struct {
	// Provider is "gemini" (default, search-grounded) or "openai".
	Provider          string        `koanf:"provider"`
	BaseURL           string        `koanf:"base_url"`
	Model             string        `koanf:"model"`
	APIKey            Secret        `koanf:"api_key"`
	ThinkingBudget    int           `koanf:"thinking_budget"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
}

// PipelineConfig holds query pipeline tunables. Each timeout bounds a single
// external call.
type PipelineConfig struct {
	TopK             int           `koanf:"top_k"`
	InterpretTimeout time.Duration `koanf:"interpret_timeout"`
	SearchTimeout    time.Duration `koanf:"search_timeout"`
	GateTimeout      time.Duration `koanf:"gate_timeout"`
	FallbackTimeout  time.Duration `koanf:"fallback_timeout"`
	RenderTimeout    time.Duration `koanf:"render_timeout"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	switch c.VectorStore.Provider {
	case "qdrant":
		if c.Qdrant.Port < 1 || c.Qdrant.Port > 65535 {
			return fmt.Errorf("invalid qdrant port: %d", c.Qdrant.Port)
		}
	case "chromem":
	default:
		return fmt.Errorf("unsupported vectorstore provider: %q", c.VectorStore.Provider)
	}
	if c.Qdrant.CollectionName == "" {
		return errors.New("collection name is required")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("unsupported embeddings provider: %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embeddings.Dimension)
	}

	switch c.Live.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported live provider: %q", c.Live.Provider)
	}
	if c.Live.ThinkingBudget < 0 {
		return fmt.Errorf("thinking budget cannot be negative, got %d", c.Live.ThinkingBudget)
	}

	if c.Pipeline.TopK <= 0 {
		return fmt.Errorf("pipeline top_k must be positive, got %d", c.Pipeline.TopK)
	}
	timeouts := map[string]time.Duration{
		"interpret_timeout": c.Pipeline.InterpretTimeout,
		"search_timeout":    c.Pipeline.SearchTimeout,
		"gate_timeout":      c.Pipeline.GateTimeout,
		"fallback_timeout":  c.Pipeline.FallbackTimeout,
		"render_timeout":    c.Pipeline.RenderTimeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("pipeline %s must be positive", name)
		}
	}

	return nil
}

// RequireAPIKeys reports an error when the hosted model backends used to
// answer queries have no credentials. Ingestion does not need them.
func (c *Config) RequireAPIKeys() error {
	if !c.LLM.APIKey.IsSet() {
		return errors.New("llm api key is not set (LLM_API_KEY or GROQ_API_KEY)")
	}
	if !c.Live.APIKey.IsSet() {
		return errors.New("live api key is not set (LIVE_API_KEY or GEMINI_API_KEY)")
	}
	return nil
}
