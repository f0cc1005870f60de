package message

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// 消息种类, 用于日志与指标
const (
	KindOrder    = "order"
	KindCancel   = "cancel"
	KindWithdraw = "withdraw"
	KindLogin    = "login"
)

// Types 全部交易所消息的类型声明, 按主类型索引
var Types = map[string]typeddata.Types{
	"Order": {
		"Order": {
			{Name: "wallet", Type: "address"},
			{Name: "market", Type: "string"},
			{Name: "side", Type: "uint8"},
			{Name: "orderType", Type: "uint8"},
			{Name: "price", Type: "uint256"},
			{Name: "amount", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "expiry", Type: "uint256"},
		},
	},
	"Cancel": {
		"Cancel": {
			{Name: "wallet", Type: "address"},
			{Name: "orderId", Type: "string"},
			{Name: "nonce", Type: "uint256"},
		},
	},
	"Withdraw": {
		"Withdraw": {
			{Name: "wallet", Type: "address"},
			{Name: "token", Type: "string"},
			{Name: "amount", Type: "uint256"},
			{Name: "toAddress", Type: "string"},
			{Name: "nonce", Type: "uint256"},
		},
	},
	"Login": {
		"Login": {
			{Name: "wallet", Type: "address"},
			{Name: "message", Type: "string"},
			{Name: "timestamp", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
		},
	},
}

var (
	orderEncoder    = typeddata.MustNewEncoder(Types["Order"])
	cancelEncoder   = typeddata.MustNewEncoder(Types["Cancel"])
	withdrawEncoder = typeddata.MustNewEncoder(Types["Withdraw"])
	loginEncoder    = typeddata.MustNewEncoder(Types["Login"])
)

// 类型哈希
var (
	OrderTypeHash    = mustTypeHash(orderEncoder)
	CancelTypeHash   = mustTypeHash(cancelEncoder)
	WithdrawTypeHash = mustTypeHash(withdrawEncoder)
	LoginTypeHash    = mustTypeHash(loginEncoder)
)

func mustTypeHash(enc *typeddata.Encoder) common.Hash {
	h, err := enc.TypeHash(enc.PrimaryType())
	if err != nil {
		panic(err)
	}
	return h
}

// Message 可签名的交易所消息
type Message interface {
	Validate() error
	Message() map[string]any
	Signer() string
}

// digest 计算消息的 EIP-712 摘要
func digest(enc *typeddata.Encoder, domain EIP712Domain, msg Message) (common.Hash, error) {
	return enc.Digest(domain.TypedDomain(), msg.Message())
}

// sign 校验并签名消息
func sign(key *ecdsa.PrivateKey, enc *typeddata.Encoder, domain EIP712Domain, msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	h, err := digest(enc, domain, msg)
	if err != nil {
		return nil, err
	}
	return crypto.SignDigest(key, h.Bytes())
}

// verify 校验签名是否由消息的 wallet 产生
func verify(enc *typeddata.Encoder, domain EIP712Domain, msg Message, signature []byte) (bool, error) {
	if err := msg.Validate(); err != nil {
		return false, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	h, err := digest(enc, domain, msg)
	if err != nil {
		return false, err
	}
	return VerifyDigest(h, msg.Signer(), signature)
}

// VerifyDigest 校验摘要签名, 签名者不匹配时返回 ErrSignatureMismatch
func VerifyDigest(h common.Hash, wallet string, signature []byte) (bool, error) {
	recovered, err := crypto.RecoverAddress(h.Bytes(), signature)
	if err != nil {
		return false, errors.Wrap(errors.ErrInvalidSignature, err)
	}
	if common.HexToAddress(recovered) != common.HexToAddress(wallet) {
		return false, errors.ErrSignatureMismatch.
			WithDetail("wallet", wallet).
			WithDetail("recovered", recovered)
	}
	return true, nil
}
