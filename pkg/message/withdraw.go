package message

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
)

// WithdrawData 提现数据
type WithdrawData struct {
	Wallet    string
	Token     string
	Amount    *big.Int
	ToAddress string
	Nonce     uint64
}

// Validate 校验提现数据
func (w WithdrawData) Validate() error {
	if !crypto.IsValidAddress(w.Wallet) {
		return fmt.Errorf("invalid wallet address: %s", w.Wallet)
	}
	if w.Token == "" {
		return fmt.Errorf("token cannot be empty")
	}
	if w.Amount == nil {
		return fmt.Errorf("amount cannot be nil")
	}
	if w.Amount.Sign() <= 0 {
		return fmt.Errorf("withdrawal amount must be positive")
	}
	if w.ToAddress == "" {
		return fmt.Errorf("destination address cannot be empty")
	}
	return nil
}

// Message 转换为 EIP-712 消息
func (w WithdrawData) Message() map[string]any {
	return map[string]any{
		"wallet":    w.Wallet,
		"token":     w.Token,
		"amount":    w.Amount,
		"toAddress": w.ToAddress,
		"nonce":     w.Nonce,
	}
}

// Signer 返回签名钱包
func (w WithdrawData) Signer() string {
	return w.Wallet
}

// HashWithdraw 计算提现结构哈希
func HashWithdraw(withdraw WithdrawData) (common.Hash, error) {
	return withdrawEncoder.Hash(withdraw.Message())
}

// SignWithdraw 签名提现
func SignWithdraw(key *ecdsa.PrivateKey, domain EIP712Domain, withdraw WithdrawData) ([]byte, error) {
	return sign(key, withdrawEncoder, domain, withdraw)
}

// VerifyWithdrawalSignature 验证提现签名
func VerifyWithdrawalSignature(domain EIP712Domain, withdraw WithdrawData, signature []byte) (bool, error) {
	return verify(withdrawEncoder, domain, withdraw, signature)
}
