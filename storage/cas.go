// Package storage defines the content-addressed archive that emitted
// protocol records (attestations and rotation announcements) can be written
// to. Seeds are never stored.
package storage

import "github.com/ipfs/go-cid"

// CAS is a content-addressed store for canonical record bytes.
//
// Contract:
//   - Put is idempotent and returns the CIDv1 (raw + sha2-256) of the bytes.
//   - Stored records are immutable.
//   - Get returns ErrNotFound when the CID is absent and never returns bytes
//     whose CID differs from the requested one.
//
// Implementations must be safe for concurrent use.
type CAS interface {
	Put(record []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}

// Lister is implemented by stores that can enumerate their records in a
// deterministic order.
type Lister interface {
	List() ([]cid.Cid, error)
}
