package state

import (
	"metagate/storage"
)

// Journal buffers writes on top of a base store. Reads observe buffered
// writes first. Nothing reaches the base until the caller writes Batch();
// dropping the journal discards every change.
type Journal struct {
	base  KV
	dirty map[string][]byte
	order []string
}

// NewJournal starts an empty journal over base.
func NewJournal(base KV) *Journal {
	return &Journal{base: base, dirty: make(map[string][]byte)}
}

func (j *Journal) Get(key []byte) ([]byte, error) {
	if value, ok := j.dirty[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return j.base.Get(key)
}

func (j *Journal) Put(key, value []byte) error {
	k := string(key)
	if _, ok := j.dirty[k]; !ok {
		j.order = append(j.order, k)
	}
	j.dirty[k] = append([]byte(nil), value...)
	return nil
}

// Batch returns the buffered writes in first-write order.
func (j *Journal) Batch() *storage.Batch {
	batch := storage.NewBatch()
	for _, k := range j.order {
		batch.Put([]byte(k), j.dirty[k])
	}
	return batch
}
