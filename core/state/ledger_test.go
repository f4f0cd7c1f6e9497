package state

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"metagate/storage"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestLedgerKeyLayout(t *testing.T) {
	key := BitmapKey(alice, uint256.NewInt(1))
	want := append([]byte("metatx/bitmap/"), alice.Bytes()...)
	bucket := uint256.NewInt(1).Bytes32()
	want = append(want, bucket[:]...)
	if !bytes.Equal(key, want) {
		t.Fatalf("unexpected bitmap key %x", key)
	}
	if got := CurrentBucketKey(alice); !bytes.Equal(got, append([]byte("metatx/bucket/"), alice.Bytes()...)) {
		t.Fatalf("unexpected bucket key %x", got)
	}
	if bytes.Equal(SequenceKey(alice, uint256.NewInt(1)), SequenceKey(alice, uint256.NewInt(2))) {
		t.Fatalf("channels must not share a key")
	}
}

func TestLedgerDefaultsToZero(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	for name, read := range map[string]func() (*uint256.Int, error){
		"bitmap":   func() (*uint256.Int, error) { return ledger.Bitmap(alice, nil) },
		"bucket":   func() (*uint256.Int, error) { return ledger.CurrentBucket(alice) },
		"sequence": func() (*uint256.Int, error) { return ledger.LastSequence(alice, uint256.NewInt(9)) },
	} {
		v, err := read()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !v.IsZero() {
			t.Fatalf("%s: expected zero, got %s", name, v)
		}
	}
}

func TestLedgerRoundTripsFullWidthWords(t *testing.T) {
	ledger := NewLedger(storage.NewMemDB())
	max := new(uint256.Int).SetAllOne()
	if err := ledger.SetBitmap(alice, uint256.NewInt(3), max); err != nil {
		t.Fatalf("set bitmap: %v", err)
	}
	got, err := ledger.Bitmap(alice, uint256.NewInt(3))
	if err != nil {
		t.Fatalf("bitmap: %v", err)
	}
	if !got.Eq(max) {
		t.Fatalf("bitmap = %s, want all ones", got.Hex())
	}
	if err := ledger.SetLastSequence(alice, uint256.NewInt(1), uint256.NewInt(42)); err != nil {
		t.Fatalf("set sequence: %v", err)
	}
	seq, err := ledger.LastSequence(alice, uint256.NewInt(1))
	if err != nil || seq.Uint64() != 42 {
		t.Fatalf("sequence = %v, %v", seq, err)
	}
}

func TestJournalIsolatesUntilWritten(t *testing.T) {
	db := storage.NewMemDB()
	journal := NewJournal(db)
	staged := NewLedger(journal)
	if err := staged.SetCurrentBucket(alice, uint256.NewInt(4)); err != nil {
		t.Fatalf("stage: %v", err)
	}

	v, err := staged.CurrentBucket(alice)
	if err != nil || v.Uint64() != 4 {
		t.Fatalf("journal read = %v, %v", v, err)
	}
	committed, err := NewLedger(db).CurrentBucket(alice)
	if err != nil || !committed.IsZero() {
		t.Fatalf("base must be untouched before write, got %v, %v", committed, err)
	}

	if journal.Batch().Len() != 1 {
		t.Fatalf("journal batch len = %d", journal.Batch().Len())
	}
	if err := db.Write(journal.Batch()); err != nil {
		t.Fatalf("write: %v", err)
	}
	committed, err = NewLedger(db).CurrentBucket(alice)
	if err != nil || committed.Uint64() != 4 {
		t.Fatalf("committed read = %v, %v", committed, err)
	}
}

func TestRootTracksLedgerRecords(t *testing.T) {
	a := storage.NewMemDB()
	b := storage.NewMemDB()
	empty, err := Root(a)
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	if err := NewLedger(a).SetBitmap(alice, nil, uint256.NewInt(1)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := b.Put([]byte("unrelated"), []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	rootA, err := Root(a)
	if err != nil {
		t.Fatalf("root a: %v", err)
	}
	rootB, err := Root(b)
	if err != nil {
		t.Fatalf("root b: %v", err)
	}
	if rootA == empty {
		t.Fatalf("root must change after a ledger write")
	}
	if rootB != empty {
		t.Fatalf("keys outside the ledger prefix must not affect the root")
	}
}
