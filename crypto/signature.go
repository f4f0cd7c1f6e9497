package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	coreerrors "metagate/core/errors"
)

const (
	// SignatureLength is the size of an r ‖ s ‖ v signature.
	SignatureLength = crypto.SignatureLength

	recoveryIDOffset = 27
)

// PersonalHash wraps digest with the "\x19Ethereum Signed Message:\n32"
// prefix and hashes it again. Off-chain signers sign this value, not the
// digest itself.
func PersonalHash(digest common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(digest.Bytes()))
}

// Recover returns the identity that produced sig over the personal hash of
// digest. Malleable signatures (high s, or r/s outside the curve order)
// recover to the zero identity without an error so that callers reject them
// through their signer comparison.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: got %d bytes, want %d", coreerrors.ErrInvalidSignatureLength, len(sig), SignatureLength)
	}
	v := sig[crypto.RecoveryIDOffset]
	if v != recoveryIDOffset && v != recoveryIDOffset+1 {
		return common.Address{}, fmt.Errorf("%w: v=%d", coreerrors.ErrInvalidRecoveryID, v)
	}
	v -= recoveryIDOffset

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return common.Address{}, nil
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	normalized[crypto.RecoveryIDOffset] = v

	hash := PersonalHash(digest)
	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, nil
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignDigest signs the personal hash of digest and returns a signature whose
// recovery byte is 27 or 28.
func SignDigest(key *PrivateKey, digest common.Hash) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, fmt.Errorf("crypto: nil private key")
	}
	hash := PersonalHash(digest)
	sig, err := crypto.Sign(hash.Bytes(), key.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("sign digest: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += recoveryIDOffset
	return sig, nil
}
