package events

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"metagate/core/types"
	"metagate/crypto"
)

const (
	// TypeBroadcast is emitted once for every accepted meta-transaction
	// broadcast.
	TypeBroadcast = "metatx.broadcast"
)

// Broadcast carries the message of an accepted meta-transaction. The other
// fields are informational; the ledger is the only authoritative state.
type Broadcast struct {
	Message   string
	Signer    common.Address
	Target    common.Address
	Policy    string
	Partition *uint256.Int
	Value     *uint256.Int
	Digest    common.Hash
}

func (Broadcast) EventType() string { return TypeBroadcast }

func (e Broadcast) Event() *types.Event {
	attrs := map[string]string{
		"message": e.Message,
		"signer":  crypto.AddressFromIdentity(e.Signer).String(),
		"target":  strings.ToLower(e.Target.Hex()),
	}
	if e.Policy != "" {
		attrs["policy"] = e.Policy
	}
	if e.Partition != nil {
		attrs["partition"] = e.Partition.Dec()
	}
	if e.Value != nil {
		attrs["value"] = e.Value.Hex()
	}
	if e.Digest != (common.Hash{}) {
		attrs["digest"] = e.Digest.Hex()
	}
	return &types.Event{Type: TypeBroadcast, Attributes: attrs}
}
