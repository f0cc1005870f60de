// Package message 定义交易所使用的 EIP-712 消息: 下单, 撤单, 提现与登录
package message

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// ZeroAddress 零地址, 作为验证合约时表示 Mock 模式
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// EIP712Domain 交易所域配置
type EIP712Domain struct {
	Name              string `json:"name" yaml:"name"`
	Version           string `json:"version" yaml:"version"`
	ChainID           int64  `json:"chainId" yaml:"chain_id"`
	VerifyingContract string `json:"verifyingContract" yaml:"verifying_contract"`
}

// DefaultDomain 默认域配置 (开发环境)
var DefaultDomain = EIP712Domain{
	Name:              "EidosExchange",
	Version:           "1",
	ChainID:           31337,
	VerifyingContract: ZeroAddress,
}

// IsMockMode 是否为 Mock 模式 (零地址)
func IsMockMode(domain EIP712Domain) bool {
	return common.HexToAddress(domain.VerifyingContract) == (common.Address{})
}

// Validate 校验域配置
func (d EIP712Domain) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("domain name cannot be empty")
	}
	if d.Version == "" {
		return fmt.Errorf("domain version cannot be empty")
	}
	if d.ChainID <= 0 {
		return fmt.Errorf("chain ID must be positive")
	}
	if !crypto.IsValidAddress(d.VerifyingContract) {
		return fmt.Errorf("invalid verifying contract: %s", d.VerifyingContract)
	}
	return nil
}

// TypedDomain 转换为 typeddata.Domain, 四个字段始终参与域哈希
func (d EIP712Domain) TypedDomain() typeddata.Domain {
	return typeddata.Domain{}.
		WithName(d.Name).
		WithVersion(d.Version).
		WithChainID(big.NewInt(d.ChainID)).
		WithVerifyingContract(common.HexToAddress(d.VerifyingContract))
}

// Separator 计算域分隔符
func (d EIP712Domain) Separator() (common.Hash, error) {
	return typeddata.HashDomain(d.TypedDomain())
}
