package replay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "metagate/core/errors"
	"metagate/core/state"
)

// Bitmap accepts a request when its flip value sets at least one bit that is
// not yet set in the signer's bitmap for the bucket. Signers submit the
// cumulative value (previous bitmap plus the newly flipped bits).
type Bitmap struct{}

func (Bitmap) Policy() Policy { return PolicyBitmap }

func (Bitmap) Approve(ledger *state.Ledger, signer common.Address, fields Fields) error {
	return flip(ledger, signer, fields.partition(), fields.value())
}

func (Bitmap) IsBitmapSet(ledger *state.Ledger, id common.Address, bucket, value *uint256.Int) (bool, error) {
	return contains(ledger, id, orZero(bucket), orZero(value))
}

func flip(ledger *state.Ledger, signer common.Address, bucket, value *uint256.Int) error {
	if value.IsZero() {
		return coreerrors.ErrZeroFlip
	}
	stored, err := ledger.Bitmap(signer, bucket)
	if err != nil {
		return err
	}
	// Containment, not overlap: a cumulative value that repeats recorded bits
	// is accepted as long as it sets at least one new bit.
	var delta uint256.Int
	delta.Not(stored)
	delta.And(&delta, value)
	if delta.IsZero() {
		return fmt.Errorf("%w: bucket %s", coreerrors.ErrAlreadyFlipped, bucket.Dec())
	}
	next := new(uint256.Int).Or(stored, value)
	return ledger.SetBitmap(signer, bucket, next)
}

func contains(ledger *state.Ledger, id common.Address, bucket, value *uint256.Int) (bool, error) {
	stored, err := ledger.Bitmap(id, bucket)
	if err != nil {
		return false, err
	}
	var overlap uint256.Int
	overlap.And(stored, value)
	return overlap.Eq(value), nil
}
