// Package config loads the gateway's TOML configuration file.
// Grounded in danmuck-edgectl's config loader: an explicit Load
// function rather than a package-init side effect, so tests can point
// at fixture files.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the gateway's top-level configuration.
type Config struct {
	Listen     string `toml:"listen"`
	Production bool   `toml:"production"`

	CredentialsHeader string `toml:"credentials_header"`
	ACLRulesFile      string `toml:"acl_rules_file"`
	TypeAliasFile     string `toml:"type_alias_file"`
	GuestRole         string `toml:"guest_role"`

	LogLevel uint8 `toml:"log_level"`

	MachineID    int64 `toml:"machine_id"`
	DataCenterID int64 `toml:"datacenter_id"`
}

// Default returns a Config with the gateway's baked-in defaults, for
// callers that want to Load on top of it or run entirely without a
// file on disk.
func Default() *Config {
	return &Config{
		Listen:            ":8400",
		CredentialsHeader: "Credentials",
		GuestRole:         "guest",
		LogLevel:          4, // log.LevelInfo
	}
}

// Load reads and parses the TOML file at path on top of Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", path, err)
	}
	return cfg, nil
}
