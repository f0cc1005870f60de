package message

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// 订单方向
const (
	SideBuy  uint8 = 0
	SideSell uint8 = 1
)

// 订单类型
const (
	OrderTypeLimit  uint8 = 0
	OrderTypeMarket uint8 = 1
)

// OrderData 订单数据
type OrderData struct {
	Wallet    string
	Market    string
	Side      uint8
	OrderType uint8
	Price     *big.Int
	Amount    *big.Int
	Nonce     uint64
	Expiry    int64 // 秒, 0 表示永不过期
}

// Validate 校验订单数据
func (o OrderData) Validate() error {
	if !crypto.IsValidAddress(o.Wallet) {
		return fmt.Errorf("invalid wallet address: %s", o.Wallet)
	}
	if o.Market == "" {
		return fmt.Errorf("market cannot be empty")
	}
	if o.Side > SideSell {
		return fmt.Errorf("invalid order side: %d", o.Side)
	}
	if o.OrderType > OrderTypeMarket {
		return fmt.Errorf("invalid order type: %d", o.OrderType)
	}
	if o.Price == nil {
		return fmt.Errorf("price cannot be nil")
	}
	if o.Price.Sign() < 0 {
		return fmt.Errorf("price cannot be negative")
	}
	if o.Amount == nil {
		return fmt.Errorf("amount cannot be nil")
	}
	if o.Amount.Sign() <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if o.Expiry < 0 {
		return fmt.Errorf("expiry cannot be negative")
	}
	return nil
}

// Message 转换为 EIP-712 消息
func (o OrderData) Message() map[string]any {
	return map[string]any{
		"wallet":    o.Wallet,
		"market":    o.Market,
		"side":      o.Side,
		"orderType": o.OrderType,
		"price":     o.Price,
		"amount":    o.Amount,
		"nonce":     o.Nonce,
		"expiry":    o.Expiry,
	}
}

// Signer 返回签名钱包
func (o OrderData) Signer() string {
	return o.Wallet
}

// IsExpired 订单是否已过期
func (o OrderData) IsExpired(now time.Time) bool {
	return o.Expiry > 0 && now.Unix() > o.Expiry
}

// HashOrder 计算订单结构哈希
func HashOrder(order OrderData) (common.Hash, error) {
	return orderEncoder.Hash(order.Message())
}

// OrderDigest 计算订单签名摘要
func OrderDigest(domain EIP712Domain, order OrderData) (common.Hash, error) {
	return digest(orderEncoder, domain, order)
}

// SignOrder 签名订单
func SignOrder(key *ecdsa.PrivateKey, domain EIP712Domain, order OrderData) ([]byte, error) {
	return sign(key, orderEncoder, domain, order)
}

// VerifyOrderSignature 验证订单签名, 已过期的订单返回 ErrSignatureExpired
func VerifyOrderSignature(domain EIP712Domain, order OrderData, signature []byte) (bool, error) {
	if order.IsExpired(time.Now()) {
		return false, errors.ErrSignatureExpired.
			WithMessagef("order expired at %d", order.Expiry)
	}
	return verify(orderEncoder, domain, order, signature)
}

// CancelData 撤单数据
type CancelData struct {
	Wallet  string
	OrderID string
	Nonce   uint64
}

// Validate 校验撤单数据
func (c CancelData) Validate() error {
	if !crypto.IsValidAddress(c.Wallet) {
		return fmt.Errorf("invalid wallet address: %s", c.Wallet)
	}
	if c.OrderID == "" {
		return fmt.Errorf("order ID cannot be empty")
	}
	return nil
}

// Message 转换为 EIP-712 消息
func (c CancelData) Message() map[string]any {
	return map[string]any{
		"wallet":  c.Wallet,
		"orderId": c.OrderID,
		"nonce":   c.Nonce,
	}
}

// Signer 返回签名钱包
func (c CancelData) Signer() string {
	return c.Wallet
}

// HashCancel 计算撤单结构哈希
func HashCancel(cancel CancelData) (common.Hash, error) {
	return cancelEncoder.Hash(cancel.Message())
}

// SignCancel 签名撤单
func SignCancel(key *ecdsa.PrivateKey, domain EIP712Domain, cancel CancelData) ([]byte, error) {
	return sign(key, cancelEncoder, domain, cancel)
}

// VerifyCancelSignature 验证撤单签名
func VerifyCancelSignature(domain EIP712Domain, cancel CancelData, signature []byte) (bool, error) {
	return verify(cancelEncoder, domain, cancel, signature)
}
