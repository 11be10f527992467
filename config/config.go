// Package config 提供网关的配置加载。
// 配置优先级: 默认值 → YAML 文件 → 环境变量（LLMGATE_ 前缀）。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是网关进程的完整配置。
type Config struct {
	// Provider 启动时生效的 Provider id
	Provider string `yaml:"provider"`

	// Model 启动时生效的模型 id，空值表示 Provider 默认模型
	Model string `yaml:"model"`

	// CredentialsFile 凭据文件路径，空值表示默认位置
	CredentialsFile string `yaml:"credentials_file"`

	// Generation 生成参数
	Generation GenerationConfig `yaml:"generation"`

	// RateLimitRPM 客户端每分钟请求数上限，0 表示不限
	RateLimitRPM int `yaml:"rate_limit_rpm"`

	// Log 日志配置
	Log LogConfig `yaml:"log"`
}

// GenerationConfig 生成参数配置。
type GenerationConfig struct {
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	ReasoningEffort string        `yaml:"reasoning_effort"`
	Timeout         time.Duration `yaml:"timeout"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default 返回默认配置。
func Default() *Config {
	return &Config{
		Generation: GenerationConfig{
			Temperature: 0.7,
			MaxTokens:   8192,
			Timeout:     60 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load 加载配置：默认值，再叠加 YAML 文件（path 为空时跳过），
// 最后叠加环境变量。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv 叠加 LLMGATE_ 前缀的环境变量覆盖。
func applyEnv(cfg *Config) {
	if v := os.Getenv("LLMGATE_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("LLMGATE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("LLMGATE_CREDENTIALS_FILE"); v != "" {
		cfg.CredentialsFile = v
	}
	if v := os.Getenv("LLMGATE_RATE_LIMIT_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitRPM = n
		}
	}
	if v := os.Getenv("LLMGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LLMGATE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Generation.Timeout = d
		}
	}
}
