package agentid_test

import (
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/borovkovgroup/proto/agentid"
	"github.com/borovkovgroup/proto/internal/vectors"
)

func loadVectors(t *testing.T) *vectors.File {
	t.Helper()
	f, err := vectors.Load(filepath.Join("..", "testdata", "vectors.json"))
	if err != nil {
		t.Fatalf("load vectors: %v", err)
	}
	if f.ProtocolVersion != agentid.ProtocolVersion {
		t.Fatalf("vectors are for protocol %s, implementation is %s", f.ProtocolVersion, agentid.ProtocolVersion)
	}
	return f
}

func TestVectors_Identity(t *testing.T) {
	for _, v := range loadVectors(t).Identity {
		got, err := agentid.Identity(v.Seed)
		if err != nil {
			t.Fatalf("Identity(%q): %v", v.Seed, err)
		}
		if got != v.Identity {
			t.Fatalf("Identity(%q) = %s, want %s", v.Seed, got, v.Identity)
		}
	}
}

func TestVectors_Sign(t *testing.T) {
	for _, v := range loadVectors(t).Sign {
		a, err := agentid.New(v.Seed)
		if err != nil {
			t.Fatalf("New(%q): %v", v.Seed, err)
		}
		if got := a.Sign(v.Content); got != v.Signature {
			t.Fatalf("Sign(%q, %q) = %s, want %s", v.Seed, v.Content, got, v.Signature)
		}
		if !a.Verify(v.Content, v.Signature) {
			t.Fatalf("Verify rejected vector signature for %q", v.Content)
		}
	}
}

func TestVectors_Post(t *testing.T) {
	for _, v := range loadVectors(t).Post {
		payload, err := agentid.PostPayload(v.Title, v.Content)
		if err != nil {
			t.Fatalf("PostPayload: %v", err)
		}
		if string(payload) != v.Payload {
			t.Fatalf("payload mismatch:\n got %s\nwant %s", payload, v.Payload)
		}
		a, err := agentid.New(v.Seed)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		att, err := a.SignPost(v.Title, v.Content)
		if err != nil {
			t.Fatalf("SignPost: %v", err)
		}
		if att.Signature != v.Signature {
			t.Fatalf("post signature = %s, want %s", att.Signature, v.Signature)
		}
	}
}

func TestVectors_Action(t *testing.T) {
	for _, v := range loadVectors(t).Action {
		payload, err := agentid.ActionPayload(v.Action, v.Target, v.Metadata, v.Timestamp)
		if err != nil {
			t.Fatalf("ActionPayload: %v", err)
		}
		if string(payload) != v.Payload {
			t.Fatalf("payload mismatch:\n got %s\nwant %s", payload, v.Payload)
		}
		a, err := agentid.New(v.Seed, agentid.WithClock(agentid.FixedClock(time.Unix(v.Timestamp, 0))))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		att, err := a.SignAction(v.Action, v.Target, v.Metadata)
		if err != nil {
			t.Fatalf("SignAction: %v", err)
		}
		if att.ActionSignature != v.Signature || att.Timestamp != v.Timestamp {
			t.Fatalf("action attestation = %+v, want signature %s at %d", att, v.Signature, v.Timestamp)
		}
	}
}

func TestVectors_Rotation(t *testing.T) {
	for _, v := range loadVectors(t).Rotation {
		ann, err := agentid.SignRotation(v.OldSeed, v.NewSeed, agentid.FixedClock(time.Unix(0, 0)))
		if err != nil {
			t.Fatalf("SignRotation: %v", err)
		}
		if ann.OldIdentity != v.OldIdentity || ann.NewIdentity != v.NewIdentity || ann.RotationSignature != v.RotationSignature {
			t.Fatalf("rotation = %+v, want %+v", ann, v)
		}
		payload, err := agentid.RotationPayload(v.OldIdentity, v.NewIdentity)
		if err != nil {
			t.Fatalf("RotationPayload: %v", err)
		}
		if string(payload) != v.Payload {
			t.Fatalf("payload mismatch:\n got %s\nwant %s", payload, v.Payload)
		}
		if !agentid.VerifyRotation(v.OldIdentity, v.NewIdentity, v.RotationSignature, v.OldSeed) {
			t.Fatalf("VerifyRotation rejected vector")
		}
	}
}

func TestVectors_RecomputeIsStable(t *testing.T) {
	f := loadVectors(t)
	got, err := vectors.Recompute(f)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !reflect.DeepEqual(got, f) {
		t.Fatalf("recomputed vectors differ from committed vectors")
	}
}
