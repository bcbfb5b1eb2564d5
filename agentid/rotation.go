package agentid

import "github.com/borovkovgroup/proto/mac"

// RotationAnnouncement asserts that the holder of OldIdentity's seed
// authorized the move to NewIdentity.
//
// It proves authorization only. Replay, ordering and revocation are left to
// whatever layer distributes announcements; the record CID is a stable handle
// for logging them.
type RotationAnnouncement struct {
	OldIdentity       string `json:"old_identity"`
	NewIdentity       string `json:"new_identity"`
	RotationSignature string `json:"rotation_signature"`
	RotatedAt         int64  `json:"rotated_at"`
	ProtocolVersion   string `json:"protocol_version"`
}

func (RotationAnnouncement) Type() RecordType { return TypeRotation }

func (r RotationAnnouncement) Fields() map[string]any {
	return map[string]any{
		"old_identity":       r.OldIdentity,
		"new_identity":       r.NewIdentity,
		"rotation_signature": r.RotationSignature,
		"rotated_at":         r.RotatedAt,
		"protocol_version":   r.ProtocolVersion,
	}
}

// RotationPayload returns the signed bytes of a rotation. The field set is
// fixed to {new_identity, old_identity}.
func RotationPayload(oldIdentity, newIdentity string) ([]byte, error) {
	return encodePayload(map[string]any{
		"old_identity": oldIdentity,
		"new_identity": newIdentity,
	})
}

// SignRotation announces the move from oldSeed to newSeed, signed by oldSeed.
// Both seeds are validated.
func SignRotation(oldSeed, newSeed string, clock Clock) (RotationAnnouncement, error) {
	old, err := New(oldSeed, WithClock(clock))
	if err != nil {
		return RotationAnnouncement{}, err
	}
	return old.SignRotation(newSeed)
}

// SignRotation announces the move from this agent to newSeed.
func (a *Agent) SignRotation(newSeed string) (RotationAnnouncement, error) {
	newIdentity, err := Identity(newSeed)
	if err != nil {
		return RotationAnnouncement{}, err
	}
	payload, err := RotationPayload(a.identity, newIdentity)
	if err != nil {
		return RotationAnnouncement{}, err
	}
	return RotationAnnouncement{
		OldIdentity:       a.identity,
		NewIdentity:       newIdentity,
		RotationSignature: mac.Sign(a.seed, payload),
		RotatedAt:         a.now(),
		ProtocolVersion:   ProtocolVersion,
	}, nil
}

// VerifyRotation checks a rotation signature with the old seed. oldSeed must
// derive oldIdentity; a mismatched pair is rejected before the MAC check.
func VerifyRotation(oldIdentity, newIdentity, rotationSig, oldSeed string) bool {
	expected, err := Identity(oldSeed)
	if err != nil || expected != oldIdentity {
		return false
	}
	payload, err := RotationPayload(oldIdentity, newIdentity)
	if err != nil {
		return false
	}
	return mac.Verify([]byte(oldSeed), payload, rotationSig)
}

// VerifyRotationAnnouncement is VerifyRotation over a decoded announcement.
func VerifyRotationAnnouncement(ann RotationAnnouncement, oldSeed string) bool {
	return VerifyRotation(ann.OldIdentity, ann.NewIdentity, ann.RotationSignature, oldSeed)
}
