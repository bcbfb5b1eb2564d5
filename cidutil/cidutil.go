// Package cidutil derives content identifiers for canonical record bytes.
//
// Identifiers are IPFS-compatible CIDv1 values using the "raw" multicodec and
// a sha2-256 multihash, so an archived record can be addressed the same way
// by any IPFS tooling.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Sum returns the CIDv1 (raw + sha2-256) of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String returns the string form of Sum(data).
func String(data []byte) (string, error) {
	id, err := Sum(data)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Parse decodes s and requires the raw codec with a sha2-256 multihash.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if id.Version() != 1 || id.Type() != cid.Raw {
		return cid.Undef, fmt.Errorf("cidutil: %s is not a CIDv1 raw identifier", s)
	}
	decoded, err := multihash.Decode(id.Hash())
	if err != nil {
		return cid.Undef, err
	}
	if decoded.Code != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("cidutil: %s does not use sha2-256", s)
	}
	return id, nil
}
