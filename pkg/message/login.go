package message

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// MaxClockSkew 登录时间戳允许超前服务器时间的秒数
const MaxClockSkew int64 = 300

// LoginData 登录数据
type LoginData struct {
	Wallet    string
	Message   string
	Timestamp int64 // 秒
	Nonce     uint64
}

// Validate 校验登录数据
func (l LoginData) Validate() error {
	if !crypto.IsValidAddress(l.Wallet) {
		return fmt.Errorf("invalid wallet address: %s", l.Wallet)
	}
	if l.Message == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if l.Timestamp <= 0 {
		return fmt.Errorf("timestamp must be positive")
	}
	return nil
}

// TypedMessage 转换为 EIP-712 消息
func (l LoginData) TypedMessage() map[string]any {
	return map[string]any{
		"wallet":    l.Wallet,
		"message":   l.Message,
		"timestamp": l.Timestamp,
		"nonce":     l.Nonce,
	}
}

// Signer 返回签名钱包
func (l LoginData) Signer() string {
	return l.Wallet
}

// loginMessage 使 LoginData 满足 Message 接口, 其 Message 字段与方法同名
type loginMessage struct{ LoginData }

func (m loginMessage) Message() map[string]any {
	return m.TypedMessage()
}

// HashLogin 计算登录结构哈希
func HashLogin(login LoginData) (common.Hash, error) {
	return loginEncoder.Hash(login.TypedMessage())
}

// SignLogin 签名登录
func SignLogin(key *ecdsa.PrivateKey, domain EIP712Domain, login LoginData) ([]byte, error) {
	return sign(key, loginEncoder, domain, loginMessage{login})
}

// VerifyLoginSignature 验证登录签名
//
// maxAge 为 0 时不检查时效; 否则超过 maxAge 秒的登录返回 ErrSignatureExpired,
// 超前服务器时间 MaxClockSkew 秒以上的时间戳被拒绝.
func VerifyLoginSignature(domain EIP712Domain, login LoginData, signature []byte, maxAge int64) (bool, error) {
	if maxAge > 0 {
		now := time.Now().Unix()
		if login.Timestamp > now+MaxClockSkew {
			return false, errors.ErrInvalidRequest.
				WithMessagef("login timestamp %d is in the future", login.Timestamp)
		}
		if now-login.Timestamp > maxAge {
			return false, errors.ErrSignatureExpired.
				WithMessagef("login signed at %d is older than %ds", login.Timestamp, maxAge)
		}
	}
	return verify(loginEncoder, domain, loginMessage{login}, signature)
}
