package agentid

import (
	"unicode/utf8"

	"github.com/borovkovgroup/proto/mac"
)

const (
	// ProtocolVersion is stamped on every emitted record. Incompatible
	// payload-shape changes bump it.
	ProtocolVersion = "1.0.0"

	// MinSeedLength is counted in characters (code points), not bytes.
	MinSeedLength = 3

	identityMessage = "I exist"
)

// Agent holds one seed and signs on its behalf.
type Agent struct {
	seed     []byte
	identity string
	clock    Clock
}

type Option func(*Agent)

// WithClock sets the time source for attestation timestamps.
// The default is SystemClock.
func WithClock(c Clock) Option {
	return func(a *Agent) {
		if c != nil {
			a.clock = c
		}
	}
}

// New validates seed and returns an Agent for it.
func New(seed string, opts ...Option) (*Agent, error) {
	if err := CheckSeed(seed); err != nil {
		return nil, err
	}
	a := &Agent{
		seed:  []byte(seed),
		clock: SystemClock{},
	}
	a.identity = mac.Sign(a.seed, []byte(identityMessage))
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CheckSeed returns a KindSeed error wrapping ErrInvalidSeed when seed is
// empty or shorter than MinSeedLength characters.
func CheckSeed(seed string) error {
	if seed == "" {
		return wrapError(KindSeed, "BP-SEED-001", "empty identity seed", ErrInvalidSeed)
	}
	if utf8.RuneCountInString(seed) < MinSeedLength {
		return wrapError(KindSeed, "BP-SEED-002", "identity seed too short", ErrInvalidSeed)
	}
	return nil
}

// Identity returns the public identity fingerprint for seed.
func Identity(seed string) (string, error) {
	a, err := New(seed)
	if err != nil {
		return "", err
	}
	return a.identity, nil
}

// Identity returns the agent's public fingerprint, HMAC(seed, "I exist").
// It is safe to share: it does not reveal the seed.
func (a *Agent) Identity() string {
	return a.identity
}

// Sign returns the signature of content's UTF-8 bytes. Content is signed as
// is; there is no canonicalization step.
func (a *Agent) Sign(content string) string {
	return mac.Sign(a.seed, []byte(content))
}

// Verify reports whether signature is this agent's signature of content.
func (a *Agent) Verify(content, signature string) bool {
	return mac.Verify(a.seed, []byte(content), signature)
}

// String identifies the agent by a fingerprint prefix only.
func (a *Agent) String() string {
	if a == nil {
		return "agentid.Agent(<nil>)"
	}
	return "agentid.Agent(" + a.identity[:12] + ")"
}

// GoString keeps %#v from printing the seed.
func (a *Agent) GoString() string {
	return a.String()
}

func (a *Agent) now() int64 {
	return a.clock.Now().Unix()
}
