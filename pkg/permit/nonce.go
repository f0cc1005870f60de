package permit

import (
	"math/big"

	"github.com/google/uuid"
)

// NewNonce returns a random unordered Permit2 nonce. Permit2 tracks
// signature-transfer nonces in a bitmap, so any unused value is valid and
// random ones avoid coordinating a counter across signers.
func NewNonce() *big.Int {
	id := uuid.New()
	return new(big.Int).SetBytes(id[:])
}

// NonceBitmapPosition returns the nonceBitmap word and bit that record nonce
// on chain.
func NonceBitmapPosition(nonce *big.Int) (wordPos *big.Int, bitPos uint8) {
	wordPos = new(big.Int).Rsh(nonce, 8)
	bitPos = uint8(new(big.Int).And(nonce, big.NewInt(0xff)).Uint64())
	return wordPos, bitPos
}
