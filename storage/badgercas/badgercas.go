// Package badgercas is a storage.CAS backed by a Badger key-value store.
//
// Keys are the binary CID bytes and values the canonical record bytes.
// Writes are immutable: re-putting identical bytes is a no-op.
package badgercas

import (
	"bytes"
	"errors"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/ipfs/go-cid"

	"github.com/borovkovgroup/proto/cidutil"
	"github.com/borovkovgroup/proto/storage"
)

type CAS struct {
	db *badger.DB
}

// Open opens (or creates) a store in dir.
func Open(dir string) (*CAS, error) {
	if dir == "" {
		return nil, errors.New("badgercas: directory is required")
	}
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*CAS, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*CAS, error) {
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &CAS{db: db}, nil
}

func (c *CAS) Close() error {
	return c.db.Close()
}

func (c *CAS) Put(record []byte) (cid.Cid, error) {
	id, err := cidutil.Sum(record)
	if err != nil {
		return cid.Undef, err
	}
	key := id.Bytes()

	err = c.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == nil {
			existing, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !bytes.Equal(existing, record) {
				return storage.ErrImmutable
			}
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, append([]byte(nil), record...))
	})
	if err != nil {
		return cid.Undef, err
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(id.Bytes())
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	got, err := cidutil.Sum(value)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, storage.ErrCIDMismatch
	}
	return value, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(id.Bytes())
		return err
	})
	return err == nil
}

// List returns every stored CID sorted by its string form. Keys that are
// not CIDs are skipped.
func (c *CAS) List() ([]cid.Cid, error) {
	var ids []cid.Cid
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			id, err := cid.Cast(it.Item().KeyCopy(nil))
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}
