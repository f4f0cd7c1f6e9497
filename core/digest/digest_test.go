package digest

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

func word(v uint64) []byte {
	return common.LeftPadBytes(new(uint256.Int).SetUint64(v).Bytes(), 32)
}

func TestEncodeIsFixedWidthAndOrdered(t *testing.T) {
	target := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tag := Tag("metagate/bitmap/v1")
	command := common.HexToHash("0xabcdef")

	encoded, err := Encode(target, tag, command, uint256.NewInt(7), uint256.NewInt(1<<5))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var want []byte
	want = append(want, common.LeftPadBytes(target.Bytes(), 32)...)
	want = append(want, tag.Bytes()...)
	want = append(want, command.Bytes()...)
	want = append(want, word(7)...)
	want = append(want, word(1<<5)...)
	if !bytes.Equal(encoded, want) {
		t.Fatalf("unexpected encoding\n got %x\nwant %x", encoded, want)
	}
	if got := Hash(target, tag, command, uint256.NewInt(7), uint256.NewInt(1<<5)); got != crypto.Keccak256Hash(want) {
		t.Fatalf("hash mismatch: %s", got.Hex())
	}
}

func TestNilFieldsEncodeAsZero(t *testing.T) {
	target := common.HexToAddress("0x01")
	a := Hash(target, Tag("t"), common.Hash{}, nil, nil)
	b := Hash(target, Tag("t"), common.Hash{}, new(uint256.Int), new(uint256.Int))
	if a != b {
		t.Fatalf("nil fields must hash like zero")
	}
}

func TestEveryFieldChangesDigest(t *testing.T) {
	target := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tag := Tag("metagate/sequence-strict/v1")
	command := CommandHash("hello")
	base := Hash(target, tag, command, uint256.NewInt(1), uint256.NewInt(2))

	variants := map[string]common.Hash{
		"target":    Hash(common.HexToAddress("0x2222222222222222222222222222222222222223"), tag, command, uint256.NewInt(1), uint256.NewInt(2)),
		"tag":       Hash(target, Tag("metagate/sequence-monotonic/v1"), command, uint256.NewInt(1), uint256.NewInt(2)),
		"command":   Hash(target, tag, CommandHash("hellp"), uint256.NewInt(1), uint256.NewInt(2)),
		"partition": Hash(target, tag, command, uint256.NewInt(3), uint256.NewInt(2)),
		"value":     Hash(target, tag, command, uint256.NewInt(1), uint256.NewInt(3)),
		"swapped":   Hash(target, tag, command, uint256.NewInt(2), uint256.NewInt(1)),
	}
	for name, h := range variants {
		if h == base {
			t.Fatalf("changing %s did not change the digest", name)
		}
	}
}

func TestCommandHashMatchesABIStringEncoding(t *testing.T) {
	var want []byte
	want = append(want, word(32)...)
	want = append(want, word(2)...)
	want = append(want, common.RightPadBytes([]byte("hi"), 32)...)
	if got := CommandHash("hi"); got != crypto.Keccak256Hash(want) {
		t.Fatalf("CommandHash(hi) = %s, want %s", got.Hex(), crypto.Keccak256Hash(want).Hex())
	}
}
