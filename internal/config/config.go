package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ErrMissingCredentials 表示启动所需的密钥缺失，进程不得继续接受输入。
var ErrMissingCredentials = errors.New("missing credentials")

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"

	SearchFailFast = "fail"
	SearchSkip     = "skip"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	LLM    LLMConfig
	Search SearchConfig
	Debug  bool `env:"DEBUG" envDefault:"false"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// LLMConfig 描述大模型相关配置。
type LLMConfig struct {
	Provider    string        `env:"LLM_PROVIDER" envDefault:"openai"`
	APIKey      string        `env:"LLM_API_KEY"`
	BaseURL     string        `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model       string        `env:"LLM_MODEL" envDefault:"openai/gpt-oss-120b"`
	Temperature float64       `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"LLM_MAX_TOKENS" envDefault:"0"`
	Timeout     time.Duration `env:"LLM_TIMEOUT" envDefault:"30s"`

	// Ark only.
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// SearchConfig 描述网页搜索服务配置。
type SearchConfig struct {
	APIKey        string        `env:"TAVILY_API_KEY"`
	BaseURL       string        `env:"TAVILY_BASE_URL" envDefault:"https://api.tavily.com"`
	Depth         string        `env:"SEARCH_DEPTH" envDefault:"basic"`
	Results       int           `env:"SEARCH_RESULTS" envDefault:"5"`
	Timeout       time.Duration `env:"SEARCH_TIMEOUT" envDefault:"15s"`
	FailurePolicy string        `env:"SEARCH_FAILURE_POLICY" envDefault:"fail"`
}

// Load 从环境变量加载配置并校验必需的凭证。
func Load() (*Config, error) {
	return load(nil)
}

// LoadFrom parses configuration from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	return load(vars)
}

func load(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	lookup := os.Getenv
	if vars != nil {
		lookup = func(key string) string { return vars[key] }
	}
	cfg.applyAliases(lookup)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyAliases fills credentials from the variable names older deployments use.
func (c *Config) applyAliases(lookup func(string) string) {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Search.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Search.FailurePolicy))

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		switch c.LLM.Provider {
		case ProviderArk:
			c.LLM.APIKey = strings.TrimSpace(lookup("ARK_API_KEY"))
		default:
			c.LLM.APIKey = strings.TrimSpace(lookup("GROQ_API_KEY"))
		}
	}
	if c.LLM.Provider == ProviderArk && strings.TrimSpace(lookup("LLM_BASE_URL")) == "" {
		c.LLM.BaseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
}

// Validate 校验启动所需的配置，凭证缺失时返回 ErrMissingCredentials。
func (c *Config) Validate() error {
	var missing []string
	if !c.LLM.HasCredentials() {
		missing = append(missing, "LLM_API_KEY")
	}
	if strings.TrimSpace(c.Search.APIKey) == "" {
		missing = append(missing, "TAVILY_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderArk:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER value %q", c.LLM.Provider)
	}

	switch c.Search.FailurePolicy {
	case SearchFailFast, SearchSkip:
	default:
		return fmt.Errorf("invalid SEARCH_FAILURE_POLICY value %q", c.Search.FailurePolicy)
	}

	if c.Search.Results < 1 {
		return fmt.Errorf("invalid SEARCH_RESULTS value %d", c.Search.Results)
	}
	if c.LLM.Timeout <= 0 || c.Search.Timeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.New("LLM_MODEL is required")
	}

	if strings.Contains(strings.TrimSpace(c.Server.Port), " ") {
		return fmt.Errorf("invalid PORT value: %q", c.Server.Port)
	}
	return nil
}

// Addr 返回监听地址，允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
func (c ServerConfig) Addr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// HasCredentials 表示是否提供了必需的密钥。
func (c LLMConfig) HasCredentials() bool {
	if c.APIKey != "" {
		return true
	}
	return c.Provider == ProviderArk && c.AccessKey != "" && c.SecretKey != ""
}

// NewArkChatModel 使用配置创建一个 Ark 模型实例。
func (c LLMConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("%w: ark requires ARK_API_KEY or AK/SK", ErrMissingCredentials)
	}

	temperature := float32(c.Temperature)

	var maxTokens *int
	if c.MaxTokens > 0 {
		val := c.MaxTokens
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
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}
