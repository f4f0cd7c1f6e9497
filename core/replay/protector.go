// Package replay implements the replay-protection policies a gateway can be
// bound to. Each policy is a stateless strategy: all state lives in the
// ledger passed to every call, and a strategy only writes to it when the
// request is accepted.
package replay

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"metagate/core/digest"
	"metagate/core/state"
)

// Policy names a replay-protection strategy.
type Policy string

const (
	PolicyBitmap            Policy = "bitmap"
	PolicyWindowedBitmap    Policy = "windowed-bitmap"
	PolicySequenceStrict    Policy = "sequence-strict"
	PolicySequenceMonotonic Policy = "sequence-monotonic"
)

// Policies lists every supported policy.
var Policies = []Policy{PolicyBitmap, PolicyWindowedBitmap, PolicySequenceStrict, PolicySequenceMonotonic}

// Tag returns the action tag mixed into digests signed for the policy, so a
// signature for one policy never verifies under another.
func (p Policy) Tag() common.Hash {
	return digest.Tag("metagate/" + string(p) + "/v1")
}

// ParsePolicy normalises a configured policy name.
func ParsePolicy(raw string) (Policy, error) {
	candidate := Policy(strings.ToLower(strings.TrimSpace(raw)))
	for _, p := range Policies {
		if candidate == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown replay policy %q", raw)
}

// Fields carries the two policy-specific request fields. Bitmap policies read
// them as (bucket, flip value); sequence policies as (channel, next sequence).
// Nil fields are treated as zero.
type Fields struct {
	Partition *uint256.Int
	Value     *uint256.Int
}

func (f Fields) partition() *uint256.Int { return orZero(f.Partition) }
func (f Fields) value() *uint256.Int     { return orZero(f.Value) }

// Protector is the capability shared by every policy.
type Protector interface {
	Policy() Policy
	// Approve validates the request for signer against ledger and, when it is
	// accepted, records it. A rejected request leaves ledger untouched.
	Approve(ledger *state.Ledger, signer common.Address, fields Fields) error
}

// BitmapQuerier is implemented by the bitmap policies.
type BitmapQuerier interface {
	IsBitmapSet(ledger *state.Ledger, id common.Address, bucket, value *uint256.Int) (bool, error)
}

// WindowQuerier is implemented by policies with a sliding bucket window.
type WindowQuerier interface {
	CurrentBucket(ledger *state.Ledger, id common.Address) (*uint256.Int, error)
}

// SequenceQuerier is implemented by the sequence policies.
type SequenceQuerier interface {
	GetNonce(ledger *state.Ledger, id common.Address, channel *uint256.Int) (*uint256.Int, error)
}

// New returns the protector for policy.
func New(policy Policy) (Protector, error) {
	switch policy {
	case PolicyBitmap:
		return Bitmap{}, nil
	case PolicyWindowedBitmap:
		return WindowedBitmap{}, nil
	case PolicySequenceStrict:
		return Sequence{Strict: true}, nil
	case PolicySequenceMonotonic:
		return Sequence{}, nil
	default:
		return nil, fmt.Errorf("unknown replay policy %q", policy)
	}
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
