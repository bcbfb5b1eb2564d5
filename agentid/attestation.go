package agentid

import (
	"github.com/borovkovgroup/proto/canon"
	"github.com/borovkovgroup/proto/mac"
)

// RecordType discriminates the emitted record shapes.
type RecordType string

const (
	TypePost     RecordType = "post"
	TypeAction   RecordType = "action"
	TypeRotation RecordType = "rotation"
)

// Record is any record this package emits.
type Record interface {
	Type() RecordType
	// Fields returns the emitted mapping, keyed by wire field name.
	Fields() map[string]any
}

// Attestation is the closed union of PostAttestation and ActionAttestation.
type Attestation interface {
	Record
	// SignerIdentity is the identity fingerprint the record claims.
	SignerIdentity() string
	isAttestation()
}

// PostAttestation attests a {title, content} post.
type PostAttestation struct {
	Identity        string `json:"identity"`
	Signature       string `json:"signature"`
	Timestamp       int64  `json:"timestamp"`
	ProtocolVersion string `json:"protocol_version"`
}

func (PostAttestation) Type() RecordType         { return TypePost }
func (p PostAttestation) SignerIdentity() string { return p.Identity }
func (PostAttestation) isAttestation()           {}

func (p PostAttestation) Fields() map[string]any {
	return map[string]any{
		"identity":         p.Identity,
		"signature":        p.Signature,
		"timestamp":        p.Timestamp,
		"protocol_version": p.ProtocolVersion,
	}
}

// ActionAttestation attests an agent action on a target.
type ActionAttestation struct {
	Identity        string `json:"identity"`
	ActionSignature string `json:"action_signature"`
	Timestamp       int64  `json:"timestamp"`
	ProtocolVersion string `json:"protocol_version"`
}

func (ActionAttestation) Type() RecordType         { return TypeAction }
func (a ActionAttestation) SignerIdentity() string { return a.Identity }
func (ActionAttestation) isAttestation()           {}

func (a ActionAttestation) Fields() map[string]any {
	return map[string]any{
		"identity":         a.Identity,
		"action_signature": a.ActionSignature,
		"timestamp":        a.Timestamp,
		"protocol_version": a.ProtocolVersion,
	}
}

// PostPayload returns the signed bytes of a post.
func PostPayload(title, content string) ([]byte, error) {
	return encodePayload(map[string]any{
		"title":   title,
		"content": content,
	})
}

// ActionPayload returns the signed bytes of an action. A nil metadata map is
// signed as an empty mapping.
func ActionPayload(action, target string, metadata map[string]any, timestamp int64) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return encodePayload(map[string]any{
		"action":    action,
		"target":    target,
		"metadata":  metadata,
		"timestamp": timestamp,
	})
}

func encodePayload(fields map[string]any) ([]byte, error) {
	b, err := canon.Encode(fields)
	if err != nil {
		return nil, wrapError(KindEncode, "BP-ENC-001", "cannot encode signed payload", err)
	}
	return b, nil
}

// SignPost signs a post and returns its attestation.
func (a *Agent) SignPost(title, content string) (PostAttestation, error) {
	payload, err := PostPayload(title, content)
	if err != nil {
		return PostAttestation{}, err
	}
	return PostAttestation{
		Identity:        a.identity,
		Signature:       mac.Sign(a.seed, payload),
		Timestamp:       a.now(),
		ProtocolVersion: ProtocolVersion,
	}, nil
}

// SignAction signs an action for an audit trail. The clock is read once and
// the same timestamp is both signed and emitted.
func (a *Agent) SignAction(action, target string, metadata map[string]any) (ActionAttestation, error) {
	ts := a.now()
	payload, err := ActionPayload(action, target, metadata, ts)
	if err != nil {
		return ActionAttestation{}, err
	}
	return ActionAttestation{
		Identity:        a.identity,
		ActionSignature: mac.Sign(a.seed, payload),
		Timestamp:       ts,
		ProtocolVersion: ProtocolVersion,
	}, nil
}

// VerifyPost reports whether att is this agent's attestation of the post.
func (a *Agent) VerifyPost(title, content string, att PostAttestation) bool {
	if att.Identity != a.identity {
		return false
	}
	payload, err := PostPayload(title, content)
	if err != nil {
		return false
	}
	return mac.Verify(a.seed, payload, att.Signature)
}

// VerifyAction reports whether att is this agent's attestation of the
// action, using the timestamp carried by att.
func (a *Agent) VerifyAction(action, target string, metadata map[string]any, att ActionAttestation) bool {
	if att.Identity != a.identity {
		return false
	}
	payload, err := ActionPayload(action, target, metadata, att.Timestamp)
	if err != nil {
		return false
	}
	return mac.Verify(a.seed, payload, att.ActionSignature)
}
