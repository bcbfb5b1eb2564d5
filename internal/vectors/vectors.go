// Package vectors reads and recomputes the cross-implementation golden
// vectors in testdata/vectors.json.
package vectors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/borovkovgroup/proto/agentid"
)

type File struct {
	ProtocolVersion string           `json:"protocol_version"`
	Identity        []IdentityVector `json:"identity"`
	Sign            []SignVector     `json:"sign"`
	Post            []PostVector     `json:"post"`
	Action          []ActionVector   `json:"action"`
	Rotation        []RotationVector `json:"rotation"`
}

type IdentityVector struct {
	Seed     string `json:"seed"`
	Identity string `json:"identity"`
}

type SignVector struct {
	Seed      string `json:"seed"`
	Content   string `json:"content"`
	Signature string `json:"signature"`
}

type PostVector struct {
	Seed      string `json:"seed"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

type ActionVector struct {
	Seed      string         `json:"seed"`
	Action    string         `json:"action"`
	Target    string         `json:"target"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp int64          `json:"timestamp"`
	Payload   string         `json:"payload"`
	Signature string         `json:"signature"`
}

type RotationVector struct {
	OldSeed           string `json:"old_seed"`
	NewSeed           string `json:"new_seed"`
	OldIdentity       string `json:"old_identity"`
	NewIdentity       string `json:"new_identity"`
	Payload           string `json:"payload"`
	RotationSignature string `json:"rotation_signature"`
}

// Load parses a vector file. Numbers inside action metadata are kept as
// json.Number so they encode as integers.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("vectors: %s: %w", path, err)
	}
	return &f, nil
}

// Recompute returns a copy of in whose derived fields (identities, payloads,
// signatures) are computed by this implementation. Inputs are kept.
func Recompute(in *File) (*File, error) {
	out := &File{ProtocolVersion: agentid.ProtocolVersion}

	for _, v := range in.Identity {
		id, err := agentid.Identity(v.Seed)
		if err != nil {
			return nil, fmt.Errorf("identity %q: %w", v.Seed, err)
		}
		out.Identity = append(out.Identity, IdentityVector{Seed: v.Seed, Identity: id})
	}

	for _, v := range in.Sign {
		a, err := agentid.New(v.Seed)
		if err != nil {
			return nil, fmt.Errorf("sign %q: %w", v.Seed, err)
		}
		v.Signature = a.Sign(v.Content)
		out.Sign = append(out.Sign, v)
	}

	for _, v := range in.Post {
		a, err := agentid.New(v.Seed)
		if err != nil {
			return nil, fmt.Errorf("post %q: %w", v.Seed, err)
		}
		payload, err := agentid.PostPayload(v.Title, v.Content)
		if err != nil {
			return nil, err
		}
		att, err := a.SignPost(v.Title, v.Content)
		if err != nil {
			return nil, err
		}
		v.Payload = string(payload)
		v.Signature = att.Signature
		out.Post = append(out.Post, v)
	}

	for _, v := range in.Action {
		a, err := agentid.New(v.Seed, agentid.WithClock(agentid.FixedClock(time.Unix(v.Timestamp, 0))))
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", v.Seed, err)
		}
		payload, err := agentid.ActionPayload(v.Action, v.Target, v.Metadata, v.Timestamp)
		if err != nil {
			return nil, err
		}
		att, err := a.SignAction(v.Action, v.Target, v.Metadata)
		if err != nil {
			return nil, err
		}
		v.Payload = string(payload)
		v.Signature = att.ActionSignature
		out.Action = append(out.Action, v)
	}

	for _, v := range in.Rotation {
		ann, err := agentid.SignRotation(v.OldSeed, v.NewSeed, agentid.SystemClock{})
		if err != nil {
			return nil, fmt.Errorf("rotation %q -> %q: %w", v.OldSeed, v.NewSeed, err)
		}
		payload, err := agentid.RotationPayload(ann.OldIdentity, ann.NewIdentity)
		if err != nil {
			return nil, err
		}
		v.OldIdentity = ann.OldIdentity
		v.NewIdentity = ann.NewIdentity
		v.Payload = string(payload)
		v.RotationSignature = ann.RotationSignature
		out.Rotation = append(out.Rotation, v)
	}
	return out, nil
}

// Encode renders a vector file the way it is committed: two-space indent,
// non-ASCII kept literal, trailing newline.
func Encode(f *File) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
