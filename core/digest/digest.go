// Package digest builds the canonical hashes that signers authorize.
//
// A digest is keccak256 over the ABI head encoding of
//
//	(address target, bytes32 tag, bytes32 command, uint256 partition, uint256 value)
//
// Every field has a fixed position and a fixed 32-byte width, so changing the
// order, width or presence of any field changes the digest and invalidates
// signatures produced for the previous layout.
package digest

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	addressType = mustType("address")
	bytes32Type = mustType("bytes32")
	uint256Type = mustType("uint256")
	stringType  = mustType("string")

	payloadArgs = abi.Arguments{
		{Name: "target", Type: addressType},
		{Name: "tag", Type: bytes32Type},
		{Name: "command", Type: bytes32Type},
		{Name: "partition", Type: uint256Type},
		{Name: "value", Type: uint256Type},
	}
	messageArgs = abi.Arguments{{Name: "message", Type: stringType}}
)

func mustType(name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("digest: abi type %s: %v", name, err))
	}
	return typ
}

// Tag derives a fixed action tag from a label.
func Tag(label string) common.Hash {
	return crypto.Keccak256Hash([]byte(label))
}

// CommandHash returns keccak256(abi.encode(message)), the command a broadcast
// of message authorizes.
func CommandHash(message string) common.Hash {
	packed, err := messageArgs.Pack(message)
	if err != nil {
		// Packing a Go string into an ABI string cannot fail.
		panic(fmt.Sprintf("digest: pack message: %v", err))
	}
	return crypto.Keccak256Hash(packed)
}

// Encode returns the canonical encoding hashed by Hash. Nil fields encode as
// zero.
func Encode(target common.Address, tag, command common.Hash, partition, value *uint256.Int) ([]byte, error) {
	return payloadArgs.Pack(target, [32]byte(tag), [32]byte(command), toBig(partition), toBig(value))
}

// Hash returns the digest a signer authorizes for the given fields.
func Hash(target common.Address, tag, command common.Hash, partition, value *uint256.Int) common.Hash {
	packed, err := Encode(target, tag, command, partition, value)
	if err != nil {
		panic(fmt.Sprintf("digest: pack payload: %v", err))
	}
	return crypto.Keccak256Hash(packed)
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
