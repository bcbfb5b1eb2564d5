// Package logging builds the command-line tool's logrus logger.
//
// Seeds are secrets. Every entry passes through a hook that replaces the
// value of any seed- or secret-like field with [REDACTED] before it is
// formatted, so a stray WithField("seed", ...) cannot reach the output.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const redactedValue = "[REDACTED]"

var sensitiveKeyParts = []string{"seed", "secret", "password", "passphrase", "token", "key"}

// New returns a text logger writing to w at the named level ("warn" when
// level is empty).
func New(w io.Writer, level string) (*logrus.Logger, error) {
	if level == "" {
		level = "warn"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	log.AddHook(RedactHook{})
	return log, nil
}

// RedactHook scrubs sensitive fields from every entry.
type RedactHook struct{}

func (RedactHook) Levels() []logrus.Level { return logrus.AllLevels }

func (RedactHook) Fire(e *logrus.Entry) error {
	for k := range e.Data {
		if IsSensitiveKey(k) {
			e.Data[k] = redactedValue
		}
	}
	return nil
}

// IsSensitiveKey reports whether a field named key may carry secret material.
// Fields naming identities are public fingerprints and stay visible.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(strings.TrimSpace(key))
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
