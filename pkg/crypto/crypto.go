// Package crypto 提供类型化数据引擎和消息构造共用的哈希与 secp256k1 签名原语
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

const (
	// SignatureLength R || S || V 签名长度
	SignatureLength = 65
	// HashLength Keccak256 摘要长度
	HashLength = 32
)

// 签名错误
var (
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	ErrInvalidHashLength      = errors.New("invalid hash length")
	ErrInvalidRecoveryID      = errors.New("invalid signature recovery id")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrAddressMismatch        = errors.New("recovered address does not match wallet")
	ErrNilPrivateKey          = errors.New("private key cannot be nil")
)

// Keccak256 计算拼接输入的 Keccak256 哈希
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Keccak256Hash 计算 Keccak256 哈希并返回 0x 前缀的十六进制字符串
func Keccak256Hash(data []byte) string {
	return "0x" + hex.EncodeToString(Keccak256(data))
}

// HashWord 计算 Keccak256 哈希并返回 common.Hash
func HashWord(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}

// PrivateKeyFromHex 解析十六进制私钥, 0x 前缀可选
func PrivateKeyFromHex(s string) (*ecdsa.PrivateKey, error) {
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// AddressFromPrivateKey 从私钥获取校验和地址, key 为 nil 时返回空串
func AddressFromPrivateKey(key *ecdsa.PrivateKey) string {
	if key == nil {
		return ""
	}
	return gethcrypto.PubkeyToAddress(key.PublicKey).Hex()
}

// IsValidAddress 检查是否为 0x 前缀的 20 字节十六进制地址
func IsValidAddress(s string) bool {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return false
	}
	return common.IsHexAddress(s)
}

// SignDigest 对 32 字节摘要签名, 返回 R || S || V, V 为 27 或 28
func SignDigest(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	if key == nil {
		return nil, ErrNilPrivateKey
	}
	if len(digest) != HashLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHashLength, len(digest))
	}

	sig, err := gethcrypto.Sign(digest, key)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[64] += 27
	return sig, nil
}

// RecoverAddress 从摘要签名中恢复小写签名者地址
// 恢复 ID 接受 0/1 和 27/28 两种形式
func RecoverAddress(hash, signature []byte) (string, error) {
	if len(hash) != HashLength {
		return "", fmt.Errorf("%w: %d", ErrInvalidHashLength, len(hash))
	}
	if len(signature) != SignatureLength {
		return "", fmt.Errorf("%w: %d", ErrInvalidSignatureLength, len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return "", fmt.Errorf("%w: %d", ErrInvalidRecoveryID, signature[64])
	}

	pub, err := gethcrypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return strings.ToLower(gethcrypto.PubkeyToAddress(*pub).Hex()), nil
}

// VerifySignature 验证签名是否由 wallet 对 hash 签署
func VerifySignature(wallet string, hash, signature []byte) (bool, error) {
	if !IsValidAddress(wallet) {
		return false, fmt.Errorf("%w: %q", ErrInvalidAddress, wallet)
	}

	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false, err
	}
	if !strings.EqualFold(recovered, wallet) {
		return false, fmt.Errorf("%w: recovered %s", ErrAddressMismatch, recovered)
	}
	return true, nil
}

// ParseSignature 解码十六进制签名, 0x 前缀可选
func ParseSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSignatureLength, len(sig))
	}
	return sig, nil
}

// FormatSignature 将签名编码为 0x 前缀的十六进制字符串
func FormatSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}
