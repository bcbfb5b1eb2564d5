// Package memcas is an in-memory storage.CAS, used by tests and by callers
// that only need to address records within one process.
package memcas

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ipfs/go-cid"

	"github.com/borovkovgroup/proto/cidutil"
	"github.com/borovkovgroup/proto/storage"
)

type CAS struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func New() *CAS {
	return &CAS{records: make(map[string][]byte)}
}

func (c *CAS) Put(record []byte) (cid.Cid, error) {
	id, err := cidutil.Sum(record)
	if err != nil {
		return cid.Undef, err
	}
	key := id.KeyString()

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.records[key]; ok {
		if !bytes.Equal(existing, record) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	}
	c.records[key] = append([]byte(nil), record...)
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	c.mu.RLock()
	b, ok := c.records[id.KeyString()]
	c.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.records[id.KeyString()]
	return ok
}

// Len returns the number of stored records.
func (c *CAS) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// List returns the stored CIDs sorted by their string form.
func (c *CAS) List() ([]cid.Cid, error) {
	c.mu.RLock()
	keys := make([]string, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	ids := make([]cid.Cid, 0, len(keys))
	for _, k := range keys {
		id, err := cid.Cast([]byte(k))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
