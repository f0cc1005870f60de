// Package config 提供配置加载
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/config"
)

// Config 应用配置
type Config struct {
	Service  ServiceConfig      `yaml:"service" json:"service"`
	Log      config.LogConfig   `yaml:"log" json:"log"`
	Redis    config.RedisConfig `yaml:"redis" json:"redis"`
	EIP712   EIP712Config       `yaml:"eip712" json:"eip712"`
	Resolver ResolverConfig     `yaml:"resolver" json:"resolver"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name        string `yaml:"name" json:"name"`
	Env         string `yaml:"env" json:"env"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"` // 为空时不暴露指标
}

// EIP712Config EIP-712 签名配置
type EIP712Config struct {
	Domain         config.EIP712DomainConfig `yaml:"domain" json:"domain"`
	MockMode       bool                      `yaml:"mock_mode" json:"mock_mode"`
	LoginMaxAgeSec int64                     `yaml:"login_max_age_sec" json:"login_max_age_sec"` // 0 表示不检查时效
}

// ResolverConfig 名称解析配置
type ResolverConfig struct {
	AddressBook map[string]string `yaml:"address_book" json:"address_book"`
	CacheTTL    time.Duration     `yaml:"cache_ttl" json:"cache_ttl"`
	KeyPrefix   string            `yaml:"key_prefix" json:"key_prefix"`
}

// Load 加载配置, path 为空时仅使用默认值与环境变量
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	// 从文件加载
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// 展开环境变量: ${VAR:DEFAULT}
		expanded := config.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// 环境变量覆盖
	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := c.EIP712.Domain.Validate(); err != nil {
		return err
	}
	if c.EIP712.LoginMaxAgeSec < 0 {
		return fmt.Errorf("eip712 login_max_age_sec must not be negative")
	}
	if c.Redis.Enabled && c.Resolver.CacheTTL <= 0 {
		return fmt.Errorf("resolver cache_ttl must be positive when redis is enabled")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "eidos-typeddata",
			Env:  "dev",
		},
		Log: config.DefaultLogConfig(),
		Redis: config.RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		EIP712: EIP712Config{
			Domain: config.EIP712DomainConfig{
				Name:              "EidosExchange",
				Version:           "1",
				ChainID:           31337,
				VerifyingContract: "0x0000000000000000000000000000000000000000",
			},
			MockMode:       true,
			LoginMaxAgeSec: 3600,
		},
		Resolver: ResolverConfig{
			AddressBook: map[string]string{},
			CacheTTL:    10 * time.Minute,
			KeyPrefix:   "typeddata:name:",
		},
	}
}

// overrideFromEnv 从环境变量覆盖配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Service.Env = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Service.MetricsAddr = v
	}

	// Log
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	// Redis
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}

	// EIP-712
	if v := os.Getenv("EIP712_MOCK_MODE"); v != "" {
		cfg.EIP712.MockMode = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("EIP712_CHAIN_ID"); v != "" {
		if chainID, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.EIP712.Domain.ChainID = chainID
		}
	}
	if v := os.Getenv("EIP712_VERIFYING_CONTRACT"); v != "" {
		cfg.EIP712.Domain.VerifyingContract = v
	}
}
