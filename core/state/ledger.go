package state

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"metagate/storage"
)

// KV is the minimal key-value surface the ledger needs. storage.Database and
// Journal both satisfy it. Get must return storage.ErrNotFound for absent keys.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
}

// Ledger provides typed access to replay-protection records. Absent records
// read as zero.
type Ledger struct {
	kv KV
}

// NewLedger returns a ledger operating on kv.
func NewLedger(kv KV) *Ledger {
	return &Ledger{kv: kv}
}

func (l *Ledger) readWord(key []byte) (*uint256.Int, error) {
	data, err := l.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	out := new(uint256.Int)
	if err := rlp.DecodeBytes(data, out); err != nil {
		return nil, fmt.Errorf("decode ledger word %x: %w", key, err)
	}
	return out, nil
}

func (l *Ledger) writeWord(key []byte, value *uint256.Int) error {
	encoded, err := rlp.EncodeToBytes(orZero(value))
	if err != nil {
		return err
	}
	return l.kv.Put(key, encoded)
}

// Bitmap returns the accumulated bitmap for (id, bucket).
func (l *Ledger) Bitmap(id common.Address, bucket *uint256.Int) (*uint256.Int, error) {
	return l.readWord(BitmapKey(id, bucket))
}

// SetBitmap stores the bitmap for (id, bucket).
func (l *Ledger) SetBitmap(id common.Address, bucket, bitmap *uint256.Int) error {
	return l.writeWord(BitmapKey(id, bucket), bitmap)
}

// CurrentBucket returns the window position for id.
func (l *Ledger) CurrentBucket(id common.Address) (*uint256.Int, error) {
	return l.readWord(CurrentBucketKey(id))
}

// SetCurrentBucket stores the window position for id.
func (l *Ledger) SetCurrentBucket(id common.Address, bucket *uint256.Int) error {
	return l.writeWord(CurrentBucketKey(id), bucket)
}

// LastSequence returns the last accepted sequence for (id, channel).
func (l *Ledger) LastSequence(id common.Address, channel *uint256.Int) (*uint256.Int, error) {
	return l.readWord(SequenceKey(id, channel))
}

// SetLastSequence stores the last accepted sequence for (id, channel).
func (l *Ledger) SetLastSequence(id common.Address, channel, sequence *uint256.Int) error {
	return l.writeWord(SequenceKey(id, channel), sequence)
}
