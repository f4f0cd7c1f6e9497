package replay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "metagate/core/errors"
	"metagate/core/state"
)

// WindowedBitmap is Bitmap with a per-signer window. A request may target any
// bucket up to one past the current one; targeting the next bucket slides the
// window forward. Bitmaps of buckets behind the window remain stored but
// IsBitmapSet no longer reports them.
type WindowedBitmap struct{}

func (WindowedBitmap) Policy() Policy { return PolicyWindowedBitmap }

func (WindowedBitmap) Approve(ledger *state.Ledger, signer common.Address, fields Fields) error {
	bucket := fields.partition()
	current, err := ledger.CurrentBucket(signer)
	if err != nil {
		return err
	}
	advance := false
	if bucket.Gt(current) {
		next, overflow := new(uint256.Int).AddOverflow(current, uint256.NewInt(1))
		if overflow || bucket.Gt(next) {
			return fmt.Errorf("%w: bucket %s, current %s", coreerrors.ErrBucketTooFarAhead, bucket.Dec(), current.Dec())
		}
		advance = true
	}
	if err := flip(ledger, signer, bucket, fields.value()); err != nil {
		return err
	}
	if advance {
		return ledger.SetCurrentBucket(signer, bucket)
	}
	return nil
}

func (WindowedBitmap) IsBitmapSet(ledger *state.Ledger, id common.Address, bucket, value *uint256.Int) (bool, error) {
	current, err := ledger.CurrentBucket(id)
	if err != nil {
		return false, err
	}
	bucket = orZero(bucket)
	if !bucket.Eq(current) {
		return false, nil
	}
	return contains(ledger, id, bucket, orZero(value))
}

func (WindowedBitmap) CurrentBucket(ledger *state.Ledger, id common.Address) (*uint256.Int, error) {
	return ledger.CurrentBucket(id)
}
