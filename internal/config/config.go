package config

import (
	"context"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	arkembed "github.com/cloudwego/eino-ext/components/embedding/ark"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the gateway needs.
type Config struct {
	Server  ServerConfig
	CORS    CORSConfig
	AI      AIConfig
	Compass CompassConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	cors, err := loadCORSConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	compass, err := loadCompassConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, CORS: cors, AI: ai, Compass: compass}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr     string
	Debug    bool
	LogLevel string
}

func loadServerConfig() (ServerConfig, error) {
	host := getEnvOrDefault("HOST", "0.0.0.0")
	port := getEnvOrDefault("PORT", "5001")

	debug, err := parseBoolEnv("APP_DEBUG", true)
	if err != nil {
		return ServerConfig{}, err
	}

	level := strings.ToLower(getEnvOrDefault("LOG_LEVEL", ""))
	if level == "" {
		level = "info"
		if debug {
			level = "debug"
		}
	}

	if strings.Contains(port, ":") {
		// Accept ":5001" or "127.0.0.1:5001" as-is.
		return ServerConfig{Addr: port, Debug: debug, LogLevel: level}, nil
	}

	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: net.JoinHostPort(host, port), Debug: debug, LogLevel: level}, nil
}

// CORSConfig holds the cross-origin policy.
type CORSConfig struct {
	AllowedOrigins []string
	// TrustedOrigin matches origins that get credentialed access on top of the static list.
	TrustedOrigin *regexp.Regexp
}

const defaultTrustedOriginPattern = `^https://([a-z0-9-]+\.)*[a-z0-9-]*unycompass[a-z0-9-]*\.vercel\.app$`

func loadCORSConfig() (CORSConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,https://unycompass.vercel.app"))

	pattern := getEnvOrDefault("CORS_TRUSTED_ORIGIN_PATTERN", defaultTrustedOriginPattern)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return CORSConfig{}, fmt.Errorf("invalid CORS_TRUSTED_ORIGIN_PATTERN value %q: %w", pattern, err)
	}

	return CORSConfig{AllowedOrigins: origins, TrustedOrigin: re}, nil
}

// AIConfig describes the chat model backing the advisor bot.
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	// EmbeddingModel enables semantic search when set.
	EmbeddingModel string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && c.hasCredentials()
}

// EmbeddingEnabled reports whether an embedding model can be built.
func (c AIConfig) EmbeddingEnabled() bool {
	return c.EmbeddingModel != "" && c.hasCredentials()
}

func (c AIConfig) hasCredentials() bool {
	return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
}

// NewEmbedder builds an Ark embedder sharing the chat model credentials.
func (c AIConfig) NewEmbedder(ctx context.Context) (embedding.Embedder, error) {
	if !c.EmbeddingEnabled() {
		return nil, fmt.Errorf("ark credentials or ARK_EMBEDDING_MODEL missing")
	}

	return arkembed.NewEmbedder(ctx, &arkembed.EmbeddingConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.EmbeddingModel,
	})
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY and Model, or ARK_ACCESS_KEY and ARK_SECRET_KEY")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		val := 0.8
		temperature = &val
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("Model")),
		EmbeddingModel: strings.TrimSpace(os.Getenv("ARK_EMBEDDING_MODEL")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
	}, nil
}

// CompassConfig configures the knowledge database and conversation memory.
type CompassConfig struct {
	DocsDir      string
	DBPath       string
	TopK         int
	MinScore     float64
	HistoryLimit int
	Reindex      bool
	// MaxSessions caps remembered conversations; 0 disables the cap.
	MaxSessions int
	// SessionTTL forgets conversations idle this long; 0 keeps them.
	SessionTTL time.Duration
}

func loadCompassConfig() (CompassConfig, error) {
	topK := 8
	if override, err := parseOptionalIntEnv("COMPASS_TOP_K"); err != nil {
		return CompassConfig{}, err
	} else if override != nil {
		if *override < 1 {
			return CompassConfig{}, fmt.Errorf("invalid COMPASS_TOP_K value %d: must be positive", *override)
		}
		topK = *override
	}

	minScore := 0.3
	if override, err := parseOptionalFloatEnv("COMPASS_MIN_SCORE"); err != nil {
		return CompassConfig{}, err
	} else if override != nil {
		minScore = *override
	}

	historyLimit := 5
	if override, err := parseOptionalIntEnv("COMPASS_HISTORY_LIMIT"); err != nil {
		return CompassConfig{}, err
	} else if override != nil {
		if *override < 1 {
			historyLimit = 1
		} else {
			historyLimit = *override
		}
	}

	reindex, err := parseBoolEnv("COMPASS_REINDEX", false)
	if err != nil {
		return CompassConfig{}, err
	}

	maxSessions := 1000
	if override, err := parseOptionalIntEnv("COMPASS_MAX_SESSIONS"); err != nil {
		return CompassConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return CompassConfig{}, fmt.Errorf("invalid COMPASS_MAX_SESSIONS value %d: must not be negative", *override)
		}
		maxSessions = *override
	}

	ttlRaw := getEnvOrDefault("COMPASS_SESSION_TTL", "2h")
	sessionTTL, err := time.ParseDuration(ttlRaw)
	if err != nil {
		return CompassConfig{}, fmt.Errorf("invalid COMPASS_SESSION_TTL value %q: %w", ttlRaw, err)
	}
	if sessionTTL < 0 {
		return CompassConfig{}, fmt.Errorf("invalid COMPASS_SESSION_TTL value %q: must not be negative", ttlRaw)
	}

	return CompassConfig{
		DocsDir:      getEnvOrDefault("COMPASS_DOCS_DIR", "docs"),
		DBPath:       getEnvOrDefault("COMPASS_DB_PATH", "compass.db"),
		TopK:         topK,
		MinScore:     minScore,
		HistoryLimit: historyLimit,
		Reindex:      reindex,
		MaxSessions:  maxSessions,
		SessionTTL:   sessionTTL,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
