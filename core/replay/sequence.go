package replay

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "metagate/core/errors"
	"metagate/core/state"
)

// Sequence tracks one counter per (signer, channel). In strict mode the next
// sequence must be exactly last+1; otherwise any larger value is accepted.
type Sequence struct {
	Strict bool
}

func (s Sequence) Policy() Policy {
	if s.Strict {
		return PolicySequenceStrict
	}
	return PolicySequenceMonotonic
}

func (s Sequence) Approve(ledger *state.Ledger, signer common.Address, fields Fields) error {
	channel := fields.partition()
	next := fields.value()
	last, err := ledger.LastSequence(signer, channel)
	if err != nil {
		return err
	}
	if s.Strict {
		expected, overflow := new(uint256.Int).AddOverflow(last, uint256.NewInt(1))
		if overflow || !next.Eq(expected) {
			return fmt.Errorf("%w: channel %s, got %s, want %s", coreerrors.ErrSequenceNotIncreasing, channel.Dec(), next.Dec(), expected.Dec())
		}
	} else if !next.Gt(last) {
		return fmt.Errorf("%w: channel %s, got %s, last %s", coreerrors.ErrSequenceNotIncreasing, channel.Dec(), next.Dec(), last.Dec())
	}
	return ledger.SetLastSequence(signer, channel, next)
}

func (Sequence) GetNonce(ledger *state.Ledger, id common.Address, channel *uint256.Int) (*uint256.Int, error) {
	return ledger.LastSequence(id, orZero(channel))
}
