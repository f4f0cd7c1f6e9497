package crypto

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "metagate/core/errors"
)

func mustKey(t *testing.T) *PrivateKey {
	t.Helper()
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestRecoverReturnsSigner(t *testing.T) {
	key := mustKey(t)
	digest := common.BytesToHash(ethcrypto.Keccak256([]byte("payload")))
	sig, err := SignDigest(key, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if v := sig[64]; v != 27 && v != 28 {
		t.Fatalf("unexpected recovery byte %d", v)
	}
	got, err := Recover(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != key.Identity() {
		t.Fatalf("recovered %s, want %s", got.Hex(), key.Identity().Hex())
	}
}

func TestRecoverCoversPersonalHashNotRawDigest(t *testing.T) {
	key := mustKey(t)
	digest := common.BytesToHash(ethcrypto.Keccak256([]byte("raw")))
	raw, err := ethcrypto.Sign(digest.Bytes(), key.PrivateKey)
	if err != nil {
		t.Fatalf("sign raw: %v", err)
	}
	raw[64] += 27
	got, err := Recover(digest, raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got == key.Identity() {
		t.Fatalf("raw digest signature must not recover to the signer")
	}
}

func TestRecoverDifferentDigest(t *testing.T) {
	key := mustKey(t)
	digest := common.BytesToHash(ethcrypto.Keccak256([]byte("a")))
	sig, err := SignDigest(key, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	other := digest
	other[31] ^= 0x01
	got, err := Recover(other, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got == key.Identity() {
		t.Fatalf("signature must not bind to a different digest")
	}
}

func TestRecoverRejectsBadLength(t *testing.T) {
	for _, size := range []int{0, 64, 66} {
		_, err := Recover(common.Hash{}, make([]byte, size))
		if !errors.Is(err, coreerrors.ErrInvalidSignatureLength) {
			t.Fatalf("length %d: expected ErrInvalidSignatureLength, got %v", size, err)
		}
	}
}

func TestRecoverRejectsRecoveryID(t *testing.T) {
	key := mustKey(t)
	digest := common.BytesToHash(ethcrypto.Keccak256([]byte("v")))
	sig, err := SignDigest(key, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for _, v := range []byte{0, 1, 26, 29, 35} {
		mutated := append([]byte(nil), sig...)
		mutated[64] = v
		if _, err := Recover(digest, mutated); !errors.Is(err, coreerrors.ErrInvalidRecoveryID) {
			t.Fatalf("v=%d: expected ErrInvalidRecoveryID, got %v", v, err)
		}
	}
}

func TestRecoverMalleableSignatureYieldsZeroIdentity(t *testing.T) {
	key := mustKey(t)
	digest := common.BytesToHash(ethcrypto.Keccak256([]byte("malleable")))
	sig, err := SignDigest(key, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	// (r, n-s, v^1) is the mirrored signature for the same key.
	n := ethcrypto.S256().Params().N
	s := new(big.Int).SetBytes(sig[32:64])
	highS := new(big.Int).Sub(n, s)
	mirrored := append([]byte(nil), sig...)
	copy(mirrored[32:64], common.LeftPadBytes(highS.Bytes(), 32))
	if mirrored[64] == 27 {
		mirrored[64] = 28
	} else {
		mirrored[64] = 27
	}
	got, err := Recover(digest, mirrored)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != (common.Address{}) {
		t.Fatalf("expected zero identity for high-s signature, got %s", got.Hex())
	}
}
