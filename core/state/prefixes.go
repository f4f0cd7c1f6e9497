package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// LedgerPrefix namespaces every replay-protection record.
	LedgerPrefix = []byte("metatx/")

	bitmapPrefix   = []byte("metatx/bitmap/")
	bucketPrefix   = []byte("metatx/bucket/")
	sequencePrefix = []byte("metatx/sequence/")
)

func composeKey(prefix []byte, id common.Address, word *uint256.Int) []byte {
	size := len(prefix) + common.AddressLength
	if word != nil {
		size += 32
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	buf = append(buf, id.Bytes()...)
	if word != nil {
		encoded := word.Bytes32()
		buf = append(buf, encoded[:]...)
	}
	return buf
}

// BitmapKey addresses the bitmap of (id, bucket).
func BitmapKey(id common.Address, bucket *uint256.Int) []byte {
	return composeKey(bitmapPrefix, id, orZero(bucket))
}

// CurrentBucketKey addresses the window position of id.
func CurrentBucketKey(id common.Address) []byte {
	return composeKey(bucketPrefix, id, nil)
}

// SequenceKey addresses the last accepted sequence of (id, channel).
func SequenceKey(id common.Address, channel *uint256.Int) []byte {
	return composeKey(sequencePrefix, id, orZero(channel))
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
