// Package config loads the command-line tool's environment settings.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix (BOROVKOV_STORE, ...).
const Prefix = "BOROVKOV"

type Settings struct {
	// Store is the record archive directory. Empty disables archiving.
	Store string `envconfig:"STORE" default:""`
	// Backend selects the archive implementation: localfs or badger.
	Backend  string `envconfig:"BACKEND" default:"localfs"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"warn"`
	// Format is the record output format: json or yaml.
	Format string `envconfig:"FORMAT" default:"json"`
	// Indent is the number of spaces used when printing JSON records.
	Indent int `envconfig:"INDENT" default:"2"`
}

func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	if s.Indent < 0 || s.Indent > 8 {
		return Settings{}, fmt.Errorf("config: %s_INDENT must be between 0 and 8, got %d", Prefix, s.Indent)
	}
	if err := CheckBackend(s.Backend); err != nil {
		return Settings{}, err
	}
	if err := CheckFormat(s.Format); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func CheckBackend(name string) error {
	switch name {
	case "localfs", "badger":
		return nil
	default:
		return fmt.Errorf("config: unknown store backend %q (want localfs or badger)", name)
	}
}

func CheckFormat(name string) error {
	switch name {
	case "json", "yaml":
		return nil
	default:
		return fmt.Errorf("config: unknown output format %q (want json or yaml)", name)
	}
}
