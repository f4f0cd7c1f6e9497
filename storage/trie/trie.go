package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
)

// Trie wraps an in-memory go-ethereum Merkle Patricia trie used to commit to
// a set of records. Keys are hashed with keccak256 before insertion so the
// resulting root does not depend on key length or layout.
//
// Trie is not safe for concurrent use.
type Trie struct {
	trie *gethtrie.Trie
}

// New returns an empty trie backed by a throwaway memory database.
func New() (*Trie, error) {
	backend := memorydb.New()
	db := rawdb.NewDatabase(backend)
	trieDB := triedb.NewDatabase(db, triedb.HashDefaults)
	underlying, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), trieDB)
	if err != nil {
		return nil, err
	}
	return &Trie{trie: underlying}, nil
}

// Update inserts or replaces the value stored under key.
func (t *Trie) Update(key, value []byte) error {
	return t.trie.Update(crypto.Keccak256(key), value)
}

// Get returns the value stored under key, or nil.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(crypto.Keccak256(key))
}

// Hash returns the root hash reflecting all updates so far.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}
