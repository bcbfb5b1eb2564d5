// Package agentid implements the Borovkov identity protocol: a secret seed
// string yields a public identity fingerprint and authenticates posts,
// actions and key rotations with HMAC-SHA256.
//
// API stability:
//
// Stable (cross-implementation contract):
//   - Identity fingerprints, content signatures and the canonical payload
//     shapes for posts, actions and rotations. Golden vectors live in
//     testdata/vectors.json.
//
// Experimental:
//   - Record archiving helpers (Archive, Load). These are local conveniences
//     and not part of the wire contract.
//
// An Agent is immutable after New and safe for concurrent use. The seed never
// appears in any record, error or formatted value produced by this package.
package agentid
