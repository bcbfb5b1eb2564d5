package agentid

import (
	"github.com/ipfs/go-cid"

	"github.com/borovkovgroup/proto/storage"
)

// Archive stores the canonical bytes of r and returns their CID.
//
// EXPERIMENTAL: archiving is a local convenience, not part of the protocol.
func Archive(cas storage.CAS, r Record) (cid.Cid, error) {
	if cas == nil {
		return cid.Undef, newError(KindStorage, "BP-STORE-001", "nil CAS")
	}
	b, err := CanonicalRecord(r)
	if err != nil {
		return cid.Undef, err
	}
	id, err := cas.Put(b)
	if err != nil {
		return cid.Undef, wrapError(KindStorage, "BP-STORE-002", "archive record", err)
	}
	return id, nil
}

// Load reads and decodes the record stored under id.
func Load(cas storage.CAS, id cid.Cid) (Record, error) {
	if cas == nil {
		return nil, newError(KindStorage, "BP-STORE-001", "nil CAS")
	}
	b, err := cas.Get(id)
	if err != nil {
		return nil, wrapError(KindStorage, "BP-STORE-003", "load record "+id.String(), err)
	}
	return DecodeRecord(b)
}

// LoadChain loads the attestations stored under ids, in order. Rotation
// announcements are skipped: they are not part of an authorship chain.
func LoadChain(cas storage.CAS, ids []cid.Cid) ([]Attestation, error) {
	out := make([]Attestation, 0, len(ids))
	for _, id := range ids {
		r, err := Load(cas, id)
		if err != nil {
			return nil, err
		}
		if att, ok := r.(Attestation); ok {
			out = append(out, att)
		}
	}
	return out, nil
}
