package config

import (
	"fmt"
	"strings"
	"time"
)

// Role selects which marketplace resources a session works with.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
)

// Roles lists every valid role.
var Roles = []Role{RoleFarmer, RoleCustomer, RoleDelivery}

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q (expected farmer, customer or delivery)", s)
}

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(parsed)
	return nil
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty"`
	File   string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty"`
}

// ResourceOverride changes how a resource maps onto the API.
type ResourceOverride struct {
	Path string `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
}

// Config is the resolved client configuration. Treat it as a value: the
// marketplace copies what it needs at construction.
type Config struct {
	APIURL      string                      `json:"apiUrl,omitempty" yaml:"apiUrl,omitempty" toml:"apiUrl,omitempty"`
	Timeout     Duration                    `json:"timeout,omitempty" yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	UserAgent   string                      `json:"userAgent,omitempty" yaml:"userAgent,omitempty" toml:"userAgent,omitempty"`
	Role        Role                        `json:"role,omitempty" yaml:"role,omitempty" toml:"role,omitempty"`
	SessionPath string                      `json:"sessionPath,omitempty" yaml:"sessionPath,omitempty" toml:"sessionPath,omitempty"`
	Log         LogConfig                   `json:"log,omitempty" yaml:"log,omitempty" toml:"log,omitempty"`
	Resources   map[string]ResourceOverride `json:"resources,omitempty" yaml:"resources,omitempty" toml:"resources,omitempty"`

	// Sources records where each top-level key came from (default, file,
	// env, flag). It is informational and used by `farmcart config show`.
	Sources map[string]string `json:"-" yaml:"-" toml:"-"`
}

// Source values.
const (
	SourceDefault = "default"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIURL:      "http://localhost:8080/api",
		Timeout:     Duration(30 * time.Second),
		UserAgent:   "farmcart-cli",
		Role:        RoleCustomer,
		SessionPath: defaultSessionPath(),
		Log:         LogConfig{Level: "warn", Format: "text"},
		Sources: map[string]string{
			"apiUrl":      SourceDefault,
			"timeout":     SourceDefault,
			"userAgent":   SourceDefault,
			"role":        SourceDefault,
			"sessionPath": SourceDefault,
			"log":         SourceDefault,
		},
	}
}

// ResourcePath returns the configured path of a resource, or fallback.
func (c Config) ResourcePath(name, fallback string) string {
	if o, ok := c.Resources[name]; ok && o.Path != "" {
		return o.Path
	}
	return fallback
}

// RequestTimeout returns the timeout as a time.Duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout)
}

func (c Config) clone() Config {
	out := c
	if c.Resources != nil {
		out.Resources = make(map[string]ResourceOverride, len(c.Resources))
		for k, v := range c.Resources {
			out.Resources[k] = v
		}
	}
	out.Sources = make(map[string]string, len(c.Sources))
	for k, v := range c.Sources {
		out.Sources[k] = v
	}
	return out
}
