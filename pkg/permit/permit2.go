package permit

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// Permit2Address is the canonical Permit2 deployment, identical on every chain.
var Permit2Address = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

const (
	transferFromType        = "PermitTransferFrom"
	witnessTransferFromType = "PermitWitnessTransferFrom"
	tokenPermissionsType    = "TokenPermissions"
	witnessField            = "witness"
)

var tokenPermissionsFields = []typeddata.Field{
	{Name: "token", Type: "address"},
	{Name: "amount", Type: "uint256"},
}

func transferFromFields() []typeddata.Field {
	return []typeddata.Field{
		{Name: "permitted", Type: tokenPermissionsType},
		{Name: "spender", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "deadline", Type: "uint256"},
	}
}

// TransferFromTypes is the Permit2 PermitTransferFrom declaration.
var TransferFromTypes = typeddata.Types{
	transferFromType:     transferFromFields(),
	tokenPermissionsType: tokenPermissionsFields,
}

var transferFromEncoder = typeddata.MustNewEncoder(TransferFromTypes)

// Permit2Domain returns the Permit2 domain on chainID. It carries no version.
func Permit2Domain(chainID *big.Int) typeddata.Domain {
	return typeddata.Domain{}.
		WithName("Permit2").
		WithChainID(chainID).
		WithVerifyingContract(Permit2Address)
}

// TokenPermissions is the token and maximum amount a transfer may move.
type TokenPermissions struct {
	Token  common.Address
	Amount *big.Int
}

func (p TokenPermissions) message() map[string]any {
	return map[string]any{"token": p.Token, "amount": p.Amount}
}

// TransferFrom is a Permit2 signature transfer. The signer is implicit: the
// contract recovers it from the signature.
type TransferFrom struct {
	ChainID   *big.Int
	Permitted TokenPermissions
	Spender   common.Address
	Nonce     *big.Int
	Deadline  *big.Int
}

// Validate checks the transfer is complete.
func (p TransferFrom) Validate() error {
	switch {
	case p.ChainID == nil:
		return fmt.Errorf("permit2: chain id is required")
	case p.Permitted.Amount == nil || p.Permitted.Amount.Sign() < 0:
		return fmt.Errorf("permit2: amount must not be negative")
	case p.Nonce == nil || p.Nonce.Sign() < 0:
		return fmt.Errorf("permit2: nonce must not be negative")
	case p.Deadline == nil || p.Deadline.Sign() <= 0:
		return fmt.Errorf("permit2: deadline must be positive")
	}
	return nil
}

// Message returns the typed-data message.
func (p TransferFrom) Message() map[string]any {
	return map[string]any{
		"permitted": p.Permitted.message(),
		"spender":   p.Spender,
		"nonce":     p.Nonce,
		"deadline":  p.Deadline,
	}
}

// TypedData returns the eth_signTypedData_v4 request.
func (p TransferFrom) TypedData() (*typeddata.TypedData, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	return transferFromEncoder.Payload(Permit2Domain(p.ChainID), p.Message())
}

// Digest returns the signing digest.
func (p TransferFrom) Digest() (common.Hash, error) {
	if err := p.Validate(); err != nil {
		return common.Hash{}, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	return transferFromEncoder.Digest(Permit2Domain(p.ChainID), p.Message())
}

// Expired reports whether the deadline has passed at now.
func (p TransferFrom) Expired(now time.Time) bool {
	return p.Deadline != nil && p.Deadline.Cmp(big.NewInt(now.Unix())) < 0
}

// Sign signs the transfer.
func (p TransferFrom) Sign(key *ecdsa.PrivateKey) (*Signature, error) {
	h, err := p.Digest()
	if err != nil {
		return nil, err
	}
	return signDigest(key, h)
}

// Verify checks sig was produced by owner and the deadline has not passed.
func (p TransferFrom) Verify(owner common.Address, sig []byte) error {
	if p.Expired(time.Now()) {
		return errors.ErrSignatureExpired.WithMessagef("permit2 deadline %s has passed", p.Deadline)
	}
	h, err := p.Digest()
	if err != nil {
		return err
	}
	return verifyDigest(h, owner, sig)
}

// Witness is application data bound into a PermitWitnessTransferFrom.
// Types declares TypeName and every struct it references.
type Witness struct {
	TypeName string
	Types    typeddata.Types
	Value    map[string]any
}

// WitnessTransferFrom is a Permit2 transfer that also commits to a witness.
type WitnessTransferFrom struct {
	TransferFrom
	Witness Witness
}

// Types returns the full declaration: the transfer, TokenPermissions and the
// witness graph.
func (p WitnessTransferFrom) Types() (typeddata.Types, error) {
	w := p.Witness
	if _, ok := w.Types[w.TypeName]; !ok {
		return nil, errors.ErrUnknownType.
			WithMessagef("witness type %q is not declared", w.TypeName).
			WithDetail("type", w.TypeName)
	}

	types := w.Types.Clone()
	for _, reserved := range []string{witnessTransferFromType, transferFromType} {
		if _, ok := types[reserved]; ok {
			return nil, errors.ErrInvalidTypeName.
				WithMessagef("witness types must not declare %q", reserved).
				WithDetail("type", reserved)
		}
	}
	if decl, ok := types[tokenPermissionsType]; ok && typeddata.FormatFields(decl) != typeddata.FormatFields(tokenPermissionsFields) {
		return nil, errors.ErrInvalidTypeName.
			WithMessagef("witness types redeclare %q", tokenPermissionsType).
			WithDetail("type", tokenPermissionsType)
	}

	types[tokenPermissionsType] = tokenPermissionsFields
	types[witnessTransferFromType] = append(transferFromFields(), typeddata.Field{Name: witnessField, Type: w.TypeName})
	return types, nil
}

// Encoder returns an encoder for the witness transfer declaration.
func (p WitnessTransferFrom) Encoder() (*typeddata.Encoder, error) {
	types, err := p.Types()
	if err != nil {
		return nil, err
	}
	return typeddata.NewEncoder(types)
}

// WitnessTypeString returns the witnessTypeString argument of
// permitWitnessTransferFrom: the canonical type string with the fixed
// "PermitWitnessTransferFrom(...,uint256 deadline," prefix removed.
func (p WitnessTransferFrom) WitnessTypeString() (string, error) {
	enc, err := p.Encoder()
	if err != nil {
		return "", err
	}
	full, err := enc.EncodeType(witnessTransferFromType)
	if err != nil {
		return "", err
	}
	prefix := witnessTransferFromType + "(" + typeddata.FormatFields(transferFromFields()) + ","
	if !strings.HasPrefix(full, prefix) {
		return "", errors.ErrInternal.WithMessagef("unexpected witness type string %q", full)
	}
	return strings.TrimPrefix(full, prefix), nil
}

// WitnessHash returns the struct hash of the witness value, the witness
// argument of permitWitnessTransferFrom.
func (p WitnessTransferFrom) WitnessHash() (common.Hash, error) {
	enc, err := p.Encoder()
	if err != nil {
		return common.Hash{}, err
	}
	return enc.HashStruct(p.Witness.TypeName, p.Witness.Value)
}

// Message returns the typed-data message.
func (p WitnessTransferFrom) Message() map[string]any {
	msg := p.TransferFrom.Message()
	msg[witnessField] = p.Witness.Value
	return msg
}

// TypedData returns the eth_signTypedData_v4 request.
func (p WitnessTransferFrom) TypedData() (*typeddata.TypedData, error) {
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	enc, err := p.Encoder()
	if err != nil {
		return nil, err
	}
	return enc.Payload(Permit2Domain(p.ChainID), p.Message())
}

// Digest returns the signing digest.
func (p WitnessTransferFrom) Digest() (common.Hash, error) {
	if err := p.Validate(); err != nil {
		return common.Hash{}, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	enc, err := p.Encoder()
	if err != nil {
		return common.Hash{}, err
	}
	return enc.Digest(Permit2Domain(p.ChainID), p.Message())
}

// Sign signs the witness transfer.
func (p WitnessTransferFrom) Sign(key *ecdsa.PrivateKey) (*Signature, error) {
	h, err := p.Digest()
	if err != nil {
		return nil, err
	}
	return signDigest(key, h)
}

// Verify checks sig was produced by owner and the deadline has not passed.
func (p WitnessTransferFrom) Verify(owner common.Address, sig []byte) error {
	if p.Expired(time.Now()) {
		return errors.ErrSignatureExpired.WithMessagef("permit2 deadline %s has passed", p.Deadline)
	}
	h, err := p.Digest()
	if err != nil {
		return err
	}
	return verifyDigest(h, owner, sig)
}
