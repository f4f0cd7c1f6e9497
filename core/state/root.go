package state

import (
	"github.com/ethereum/go-ethereum/common"

	"metagate/storage"
	"metagate/storage/trie"
)

// Root commits to every ledger record in db, including bitmaps of buckets the
// window has already moved past. Equal record sets produce equal roots
// regardless of backend.
func Root(db storage.Database) (common.Hash, error) {
	tr, err := trie.New()
	if err != nil {
		return common.Hash{}, err
	}
	err = db.Iterate(LedgerPrefix, func(key, value []byte) error {
		return tr.Update(key, value)
	})
	if err != nil {
		return common.Hash{}, err
	}
	return tr.Hash(), nil
}
