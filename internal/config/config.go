package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Session SessionConfig
	Widget  WidgetConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig(server.Addr)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Session: session, Widget: widget}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	LogLevel       string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	cfg := ServerConfig{
		AllowedOrigins: parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// Provider 对话服务使用的模型后端
type Provider string

const (
	ProviderNone   Provider = ""
	ProviderGemini Provider = "gemini"
	ProviderArk    Provider = "ark"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider     Provider
	ContextTurns int
	Gemini       GeminiConfig
	Ark          ArkConfig
}

// GeminiConfig 描述 Gemini Developer API 配置。
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// Enabled 表示是否提供了 API Key。
func (c GeminiConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// ArkConfig 描述火山方舟模型配置。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY plus ARK_MODEL")
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	gemini, err := loadGeminiConfig()
	if err != nil {
		return AIConfig{}, err
	}

	arkCfg, err := loadArkConfig()
	if err != nil {
		return AIConfig{}, err
	}

	turns, err := parseIntEnv("AI_CONTEXT_TURNS", 5)
	if err != nil {
		return AIConfig{}, err
	}
	if turns < 0 {
		turns = 0
	}

	var provider Provider
	switch raw := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER"))); raw {
	case "":
		switch {
		case gemini.Enabled():
			provider = ProviderGemini
		case arkCfg.Enabled():
			provider = ProviderArk
		}
	case string(ProviderGemini), string(ProviderArk):
		provider = Provider(raw)
	case "none":
		provider = ProviderNone
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", raw)
	}

	return AIConfig{
		Provider:     provider,
		ContextTurns: turns,
		Gemini:       gemini,
		Ark:          arkCfg,
	}, nil
}

func loadGeminiConfig() (GeminiConfig, error) {
	temperature, err := parseOptionalFloat32Env("GEMINI_TEMPERATURE")
	if err != nil {
		return GeminiConfig{}, err
	}
	temp := float32(0.8)
	if temperature != nil {
		temp = *temperature
	}

	maxTokens, err := parseIntEnv("GEMINI_MAX_TOKENS", 600)
	if err != nil {
		return GeminiConfig{}, err
	}

	return GeminiConfig{
		APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		Temperature: temp,
		MaxTokens:   int32(maxTokens),
	}, nil
}

func loadArkConfig() (ArkConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return ArkConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return ArkConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return ArkConfig{}, err
	}

	return ArkConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// StoreKind 选择会话存储后端。
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreRedis  StoreKind = "redis"
)

// SessionConfig 描述服务端会话存储配置。
type SessionConfig struct {
	Store        StoreKind
	RedisURL     string
	TTL          time.Duration
	HistoryLimit int
}

func loadSessionConfig() (SessionConfig, error) {
	kind := StoreKind(strings.ToLower(getEnvOrDefault("SESSION_STORE", string(StoreMemory))))
	if kind != StoreMemory && kind != StoreRedis {
		return SessionConfig{}, fmt.Errorf("invalid SESSION_STORE value %q", kind)
	}

	ttl, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return SessionConfig{}, err
	}

	limit, err := parseIntEnv("HISTORY_LIMIT", 20)
	if err != nil {
		return SessionConfig{}, err
	}
	if limit < 1 {
		return SessionConfig{}, fmt.Errorf("invalid HISTORY_LIMIT value %d: must be positive", limit)
	}

	return SessionConfig{
		Store:        kind,
		RedisURL:     getEnvOrDefault("REDIS_URL", "redis://127.0.0.1:6379/0"),
		TTL:          ttl,
		HistoryLimit: limit,
	}, nil
}

// WidgetConfig 描述聊天组件（终端客户端与 websocket 桥接）的配置。
type WidgetConfig struct {
	EndpointURL         string
	Timeout             time.Duration
	CrisisAlertDuration time.Duration
	NoticeDuration      time.Duration
	Greeting            string
}

func loadWidgetConfig(addr string) (WidgetConfig, error) {
	timeout, err := parseDurationEnv("CHAT_TIMEOUT", 30*time.Second)
	if err != nil {
		return WidgetConfig{}, err
	}

	crisis, err := parseDurationEnv("CRISIS_ALERT_DURATION", 10*time.Second)
	if err != nil {
		return WidgetConfig{}, err
	}

	notice, err := parseDurationEnv("NOTICE_DURATION", 5*time.Second)
	if err != nil {
		return WidgetConfig{}, err
	}

	return WidgetConfig{
		EndpointURL:         getEnvOrDefault("CHAT_ENDPOINT_URL", localURL(addr)),
		Timeout:             timeout,
		CrisisAlertDuration: crisis,
		NoticeDuration:      notice,
		Greeting:            strings.TrimSpace(os.Getenv("CHAT_GREETING")),
	}, nil
}

// localURL 将监听地址转换为本机可访问的 URL。
func localURL(addr string) string {
	host, port := "127.0.0.1", strings.TrimPrefix(addr, ":")
	if i := strings.LastIndex(addr, ":"); i > 0 {
		if h := addr[:i]; h != "0.0.0.0" && h != "" {
			host = h
		}
		port = addr[i+1:]
	}
	return "http://" + host + ":" + port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	return *val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("invalid %s value %q: must not be negative", key, raw)
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

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
