// Package permit builds gasless token allowance messages: EIP-2612 permits
// and Uniswap Permit2 signature transfers.
package permit

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/decimal"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// PermitTypes is the EIP-2612 Permit declaration.
var PermitTypes = typeddata.Types{
	"Permit": {
		{Name: "owner", Type: "address"},
		{Name: "spender", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	},
}

var permitEncoder = typeddata.MustNewEncoder(PermitTypes)

// Token describes an ERC-20 contract and its EIP-712 domain.
type Token struct {
	Name     string
	Version  string
	Address  common.Address
	ChainID  *big.Int
	Decimals int32
}

// Domain returns the token's permit domain.
func (t Token) Domain() typeddata.Domain {
	d := typeddata.Domain{}.WithName(t.Name)
	if t.Version != "" {
		d = d.WithVersion(t.Version)
	}
	return d.WithChainID(t.ChainID).WithVerifyingContract(t.Address)
}

// Amount converts a decimal amount such as "12.5" to base units.
func (t Token) Amount(s string) (*big.Int, error) {
	return decimal.ParseAmount(s, t.Decimals)
}

// Deadline returns the unix time d from now.
func Deadline(d time.Duration) *big.Int {
	return big.NewInt(time.Now().Add(d).Unix())
}

// Permit is an EIP-2612 approval signed by Owner.
type Permit struct {
	Token    Token
	Owner    common.Address
	Spender  common.Address
	Value    *big.Int
	Nonce    *big.Int
	Deadline *big.Int
}

// Validate checks the permit is complete.
func (p Permit) Validate() error {
	switch {
	case p.Token.ChainID == nil:
		return fmt.Errorf("permit: token chain id is required")
	case p.Token.Name == "":
		return fmt.Errorf("permit: token name is required")
	case p.Value == nil || p.Value.Sign() < 0:
		return fmt.Errorf("permit: value must not be negative")
	case p.Nonce == nil || p.Nonce.Sign() < 0:
		return fmt.Errorf("permit: nonce must not be negative")
	case p.Deadline == nil || p.Deadline.Sign() <= 0:
		return fmt.Errorf("permit: deadline must be positive")
	}
	return nil
}

// Message returns the typed-data message.
func (p Permit) Message() map[string]any {
	return map[string]any{
		"owner":    p.Owner,
		"spender":  p.Spender,
		"value":    p.Value,
		"nonce":    p.Nonce,
		"deadline": p.Deadline,
	}
}

// TypedData returns the eth_signTypedData_v4 request for the permit.
func (p Permit) TypedData() (*typeddata.TypedData, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	return permitEncoder.Payload(p.Token.Domain(), p.Message())
}

// Digest returns the signing digest.
func (p Permit) Digest() (common.Hash, error) {
	if err := p.Validate(); err != nil {
		return common.Hash{}, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	return permitEncoder.Digest(p.Token.Domain(), p.Message())
}

// Expired reports whether the deadline has passed at now.
func (p Permit) Expired(now time.Time) bool {
	return p.Deadline != nil && p.Deadline.Cmp(big.NewInt(now.Unix())) < 0
}

// Sign signs the permit. key must belong to Owner.
func (p Permit) Sign(key *ecdsa.PrivateKey) (*Signature, error) {
	if key == nil {
		return nil, crypto.ErrNilPrivateKey
	}
	if signer := common.HexToAddress(crypto.AddressFromPrivateKey(key)); signer != p.Owner {
		return nil, errors.ErrSignatureMismatch.
			WithMessagef("key for %s cannot sign for owner %s", signer.Hex(), p.Owner.Hex())
	}
	h, err := p.Digest()
	if err != nil {
		return nil, err
	}
	return signDigest(key, h)
}

// Verify checks sig was produced by Owner and the permit has not expired.
func (p Permit) Verify(sig []byte) error {
	if p.Expired(time.Now()) {
		return errors.ErrSignatureExpired.WithMessagef("permit deadline %s has passed", p.Deadline)
	}
	h, err := p.Digest()
	if err != nil {
		return err
	}
	return verifyDigest(h, p.Owner, sig)
}
