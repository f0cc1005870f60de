// Package config 提供环境变量展开与通用配置结构
package config

import (
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

var envRegex = regexp.MustCompile(`\$\{([^:}]+)(?::([^}]*))?\}`)

// ExpandEnv 展开环境变量，支持 ${VAR:DEFAULT} 格式
func ExpandEnv(s string) string {
	return envRegex.ReplaceAllStringFunc(s, func(m string) string {
		matches := envRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		key := matches[1]
		var defaultVal string
		if len(matches) > 2 {
			defaultVal = matches[2]
		}
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return defaultVal
	})
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt 获取整数环境变量
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvInt64 获取 int64 环境变量
func GetEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvBool 获取布尔环境变量
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvSlice 获取逗号分隔的字符串切片
func GetEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// Addr 返回 Redis 地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EIP712DomainConfig EIP-712 域配置
//
// 空字段视为缺省, 不参与域类型与域哈希.
type EIP712DomainConfig struct {
	Name              string `yaml:"name" json:"name"`
	Version           string `yaml:"version" json:"version"`
	ChainID           int64  `yaml:"chain_id" json:"chain_id"`
	VerifyingContract string `yaml:"verifying_contract" json:"verifying_contract"`
	Salt              string `yaml:"salt" json:"salt"`
}

// Validate 校验域配置
func (c *EIP712DomainConfig) Validate() error {
	if c.ChainID < 0 {
		return fmt.Errorf("eip712 chain_id must not be negative: %d", c.ChainID)
	}
	if c.VerifyingContract != "" && !common.IsHexAddress(c.VerifyingContract) {
		return fmt.Errorf("eip712 verifying_contract is not an address: %q", c.VerifyingContract)
	}
	if c.Salt != "" {
		if _, err := c.salt(); err != nil {
			return err
		}
	}
	return nil
}

// TypedDomain 转换为 typeddata.Domain
func (c *EIP712DomainConfig) TypedDomain() (typeddata.Domain, error) {
	if err := c.Validate(); err != nil {
		return typeddata.Domain{}, err
	}

	var d typeddata.Domain
	if c.Name != "" {
		d = d.WithName(c.Name)
	}
	if c.Version != "" {
		d = d.WithVersion(c.Version)
	}
	if c.ChainID != 0 {
		d = d.WithChainID(big.NewInt(c.ChainID))
	}
	if c.VerifyingContract != "" {
		d = d.WithVerifyingContract(common.HexToAddress(c.VerifyingContract))
	}
	if c.Salt != "" {
		salt, _ := c.salt()
		d = d.WithSalt(salt)
	}
	return d, nil
}

func (c *EIP712DomainConfig) salt() (common.Hash, error) {
	raw, err := hexutil.Decode(c.Salt)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("eip712 salt must be 0x-prefixed 32 bytes: %q", c.Salt)
	}
	return common.BytesToHash(raw), nil
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, console
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "json",
	}
}
