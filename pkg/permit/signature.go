package permit

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// Signature is a signature split for a contract permit(v, r, s) call.
type Signature struct {
	V uint8       `json:"v"`
	R common.Hash `json:"r"`
	S common.Hash `json:"s"`
}

// SplitSignature splits a 65-byte R || S || V signature. V is normalized
// to 27 or 28.
func SplitSignature(sig []byte) (*Signature, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: %d", crypto.ErrInvalidSignatureLength, len(sig))
	}
	v := sig[64]
	if v < 27 {
		v += 27
	}
	if v != 27 && v != 28 {
		return nil, fmt.Errorf("%w: %d", crypto.ErrInvalidRecoveryID, sig[64])
	}
	return &Signature{
		V: v,
		R: common.BytesToHash(sig[:32]),
		S: common.BytesToHash(sig[32:64]),
	}, nil
}

// Bytes joins the signature back to R || S || V.
func (s *Signature) Bytes() []byte {
	out := make([]byte, 0, crypto.SignatureLength)
	out = append(out, s.R.Bytes()...)
	out = append(out, s.S.Bytes()...)
	return append(out, s.V)
}

// Hex returns the joined signature as 0x hex.
func (s *Signature) Hex() string {
	return crypto.FormatSignature(s.Bytes())
}

func signDigest(key *ecdsa.PrivateKey, h common.Hash) (*Signature, error) {
	sig, err := crypto.SignDigest(key, h.Bytes())
	if err != nil {
		return nil, err
	}
	return SplitSignature(sig)
}

func verifyDigest(h common.Hash, signer common.Address, sig []byte) error {
	recovered, err := crypto.RecoverAddress(h.Bytes(), sig)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidSignature, err)
	}
	if common.HexToAddress(recovered) != signer {
		return errors.ErrSignatureMismatch.
			WithDetail("signer", signer.Hex()).
			WithDetail("recovered", recovered)
	}
	return nil
}
