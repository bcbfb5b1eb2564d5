package agentid

import (
	"bytes"
	"encoding/json"

	"github.com/borovkovgroup/proto/canon"
	"github.com/borovkovgroup/proto/cidutil"
	"github.com/borovkovgroup/proto/mac"
)

// CanonicalRecord returns the canonical bytes of an emitted record. These are
// the bytes that are archived and content-addressed.
func CanonicalRecord(r Record) ([]byte, error) {
	if r == nil {
		return nil, newError(KindRecord, "BP-REC-001", "nil record")
	}
	b, err := canon.Encode(r.Fields())
	if err != nil {
		return nil, wrapError(KindEncode, "BP-ENC-002", "cannot encode record", err)
	}
	return b, nil
}

// RecordCID returns the CIDv1 (raw + sha2-256) of CanonicalRecord(r).
func RecordCID(r Record) (string, error) {
	b, err := CanonicalRecord(r)
	if err != nil {
		return "", err
	}
	id, err := cidutil.String(b)
	if err != nil {
		return "", wrapError(KindRecord, "BP-REC-007", "cannot derive record cid", err)
	}
	return id, nil
}

func (p PostAttestation) CID() (string, error)      { return RecordCID(p) }
func (a ActionAttestation) CID() (string, error)    { return RecordCID(a) }
func (r RotationAnnouncement) CID() (string, error) { return RecordCID(r) }

type wireRecord struct {
	Identity          *string `json:"identity"`
	Signature         *string `json:"signature"`
	ActionSignature   *string `json:"action_signature"`
	Timestamp         *int64  `json:"timestamp"`
	OldIdentity       *string `json:"old_identity"`
	NewIdentity       *string `json:"new_identity"`
	RotationSignature *string `json:"rotation_signature"`
	RotatedAt         *int64  `json:"rotated_at"`
	ProtocolVersion   *string `json:"protocol_version"`
}

// DecodeRecord parses an emitted record (indented CLI output or canonical
// archive bytes). The shape is chosen by which signature field is present;
// records claiming another protocol version are rejected.
func DecodeRecord(data []byte) (Record, error) {
	var w wireRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return nil, wrapError(KindRecord, "BP-REC-001", "malformed record", err)
	}

	if w.ProtocolVersion == nil {
		return nil, newError(KindRecord, "BP-REC-004", "missing protocol_version")
	}
	if *w.ProtocolVersion != ProtocolVersion {
		return nil, newError(KindRecord, "BP-REC-005", "unsupported protocol_version "+*w.ProtocolVersion)
	}

	shapes := 0
	for _, sig := range []*string{w.Signature, w.ActionSignature, w.RotationSignature} {
		if sig != nil {
			shapes++
		}
	}
	if shapes != 1 {
		return nil, newError(KindRecord, "BP-REC-002", "record must carry exactly one signature field")
	}

	switch {
	case w.RotationSignature != nil:
		if w.OldIdentity == nil || w.NewIdentity == nil || w.RotatedAt == nil || w.Identity != nil || w.Timestamp != nil {
			return nil, newError(KindRecord, "BP-REC-002", "incomplete rotation announcement")
		}
		if err := checkHex(*w.OldIdentity, *w.NewIdentity, *w.RotationSignature); err != nil {
			return nil, err
		}
		return RotationAnnouncement{
			OldIdentity:       *w.OldIdentity,
			NewIdentity:       *w.NewIdentity,
			RotationSignature: *w.RotationSignature,
			RotatedAt:         *w.RotatedAt,
			ProtocolVersion:   *w.ProtocolVersion,
		}, nil
	case w.ActionSignature != nil:
		if err := checkAttestationFields(w); err != nil {
			return nil, err
		}
		if err := checkHex(*w.Identity, *w.ActionSignature); err != nil {
			return nil, err
		}
		return ActionAttestation{
			Identity:        *w.Identity,
			ActionSignature: *w.ActionSignature,
			Timestamp:       *w.Timestamp,
			ProtocolVersion: *w.ProtocolVersion,
		}, nil
	default:
		if err := checkAttestationFields(w); err != nil {
			return nil, err
		}
		if err := checkHex(*w.Identity, *w.Signature); err != nil {
			return nil, err
		}
		return PostAttestation{
			Identity:        *w.Identity,
			Signature:       *w.Signature,
			Timestamp:       *w.Timestamp,
			ProtocolVersion: *w.ProtocolVersion,
		}, nil
	}
}

// DecodeAttestation is DecodeRecord restricted to post and action records.
func DecodeAttestation(data []byte) (Attestation, error) {
	r, err := DecodeRecord(data)
	if err != nil {
		return nil, err
	}
	att, ok := r.(Attestation)
	if !ok {
		return nil, newError(KindRecord, "BP-REC-006", "record is not an attestation")
	}
	return att, nil
}

// DecodeRotation is DecodeRecord restricted to rotation announcements.
func DecodeRotation(data []byte) (RotationAnnouncement, error) {
	r, err := DecodeRecord(data)
	if err != nil {
		return RotationAnnouncement{}, err
	}
	ann, ok := r.(RotationAnnouncement)
	if !ok {
		return RotationAnnouncement{}, newError(KindRecord, "BP-REC-006", "record is not a rotation announcement")
	}
	return ann, nil
}

func checkAttestationFields(w wireRecord) error {
	if w.Identity == nil || w.Timestamp == nil || w.OldIdentity != nil || w.NewIdentity != nil || w.RotatedAt != nil {
		return newError(KindRecord, "BP-REC-002", "incomplete attestation")
	}
	return nil
}

func checkHex(values ...string) error {
	for _, v := range values {
		if !mac.ValidHex(v) {
			return newError(KindRecord, "BP-REC-003", "identity and signature fields must be 64 lowercase hex characters")
		}
	}
	return nil
}
