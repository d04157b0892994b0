package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// #region session
// Session is the fixed per-session configuration, supplied at start and
// immutable thereafter. Exactly these four booleans exist; unknown
// options in the config file are rejected rather than ignored.
type Session struct {
	AllowTies     bool `yaml:"allowTies" json:"allowTies"`
	AllowSkipping bool `yaml:"allowSkipping" json:"allowSkipping"`
	AllowEditing  bool `yaml:"allowEditing" json:"allowEditing"`
	DebugMode     bool `yaml:"debugMode" json:"debugMode"`
}

// LoadSession reads the session flags from a YAML config file.
func LoadSession(path string) (Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Session
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Session{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
// #endregion session

// #region server
// Server holds process-level settings read from the environment.
type Server struct {
	Addr       string `env:"DUEL_ADDR, default=:8000"`
	DBPath     string `env:"DUEL_DB, default=duels.db"`
	MediaDir   string `env:"DUEL_MEDIA_DIR, default=videos"`
	ConfigPath string `env:"DUEL_CONFIG, default=config.yaml"`
	Aggregate  string `env:"DUEL_AGGREGATE, default=sum"`
}
// #endregion server
