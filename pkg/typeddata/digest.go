package typeddata

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
)

// digestPrefix is the EIP-191 version byte pair for structured data.
var digestPrefix = []byte{0x19, 0x01}

// TypedDataDigest returns keccak256(0x19 0x01 || domainSeparator || structHash).
func TypedDataDigest(domainSeparator, structHash common.Hash) common.Hash {
	return crypto.HashWord(digestPrefix, domainSeparator.Bytes(), structHash.Bytes())
}

// Digest returns the signing digest of value as the primary type under
// domain.
func (e *Encoder) Digest(domain Domain, value any) (common.Hash, error) {
	separator, err := HashDomain(domain)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := e.Hash(value)
	if err != nil {
		return common.Hash{}, err
	}
	return TypedDataDigest(separator, structHash), nil
}

// HashTypedData builds an Encoder for types and returns the digest of value.
// Callers hashing many values against the same declarations should keep an
// Encoder instead.
func HashTypedData(domain Domain, types Types, value any) (common.Hash, error) {
	enc, err := NewEncoder(types)
	if err != nil {
		return common.Hash{}, err
	}
	return enc.Digest(domain, value)
}

// HashStruct builds an Encoder for types and returns the struct hash of value
// as name.
func HashStruct(name string, types Types, value any) (common.Hash, error) {
	enc, err := NewEncoder(types)
	if err != nil {
		return common.Hash{}, err
	}
	return enc.HashStruct(name, value)
}

// EncodeType builds an Encoder for types and returns the full type string of
// name.
func EncodeType(name string, types Types) (string, error) {
	enc, err := NewEncoder(types)
	if err != nil {
		return "", err
	}
	return enc.EncodeType(name)
}

// PrimaryType returns the single unreferenced type of types.
func PrimaryType(types Types) (string, error) {
	g, err := buildGraph(types)
	if err != nil {
		return "", err
	}
	return g.primary, nil
}
