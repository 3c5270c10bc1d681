package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Common errors for configuration loading.
var (
	ErrFileNotFound     = errors.New("configuration file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrInvalidTOML      = errors.New("invalid TOML syntax")
	ErrEmptyFile        = errors.New("configuration file is empty")
)

// Environment variable names.
const (
	EnvConfig      = "FARMCART_CONFIG"
	EnvAPIURL      = "FARMCART_API_URL"
	EnvRole        = "FARMCART_ROLE"
	EnvLogLevel    = "FARMCART_LOG_LEVEL"
	EnvSessionPath = "FARMCART_SESSION_PATH"
	EnvTimeout     = "FARMCART_TIMEOUT"
)

// GlobalConfigDir is the directory name under the user config directory.
const GlobalConfigDir = "farmcart"

// Options are command-line overrides, applied after the environment.
type Options struct {
	// Path is an explicit config file. Empty means FARMCART_CONFIG, then the
	// global config file if it exists.
	Path     string
	APIURL   string
	Role     string
	LogLevel string
}

// Resolve builds the final configuration from every layer and validates it.
func Resolve(opts Options) (Config, error) {
	cfg := Default()

	path := opts.Path
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		if global, ok := globalConfigPath(); ok {
			path = global
		}
	}
	if path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = Merge(cfg, fileCfg, SourceFile)
	}

	var err error
	if cfg, err = applyEnv(cfg); err != nil {
		return Config{}, err
	}
	cfg = applyOptions(cfg, opts)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a config file. The format follows the extension: .yaml and
// .yml for YAML, .toml for TOML, anything else JSON. The raw document is
// checked against the config schema before decoding.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return Config{}, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return Config{}, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	var doc map[string]any
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Config{}, fmt.Errorf("%w in %s: %v", ErrInvalidYAML, path, err)
		}
		if err := checkSchema(doc); err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w in %s: %v", ErrInvalidYAML, path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return Config{}, fmt.Errorf("%w in %s: %v", ErrInvalidTOML, path, err)
		}
		if err := checkSchema(doc); err != nil {
			return Config{}, err
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w in %s: %v", ErrInvalidTOML, path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return Config{}, fmt.Errorf("%w in %s: %v", ErrInvalidJSON, path, err)
		}
		if err := checkSchema(doc); err != nil {
			return Config{}, err
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w in %s: %v", ErrInvalidJSON, path, err)
		}
	}

	cfg.Sources = make(map[string]string, len(doc))
	for key := range doc {
		cfg.Sources[key] = SourceFile
	}
	return cfg, nil
}

// Merge overlays the keys present in src (per src.Sources) onto dst.
func Merge(dst, src Config, source string) Config {
	out := dst.clone()
	set := func(key string) bool {
		if _, ok := src.Sources[key]; !ok {
			return false
		}
		out.Sources[key] = source
		return true
	}
	if set("apiUrl") {
		out.APIURL = src.APIURL
	}
	if set("timeout") {
		out.Timeout = src.Timeout
	}
	if set("userAgent") {
		out.UserAgent = src.UserAgent
	}
	if set("role") {
		out.Role = src.Role
	}
	if set("sessionPath") {
		out.SessionPath = src.SessionPath
	}
	if set("log") {
		if src.Log.Level != "" {
			out.Log.Level = src.Log.Level
		}
		if src.Log.Format != "" {
			out.Log.Format = src.Log.Format
		}
		if src.Log.File != "" {
			out.Log.File = src.Log.File
		}
	}
	if set("resources") {
		if out.Resources == nil {
			out.Resources = make(map[string]ResourceOverride, len(src.Resources))
		}
		for k, v := range src.Resources {
			out.Resources[k] = v
		}
	}
	return out
}

func applyEnv(cfg Config) (Config, error) {
	out := cfg.clone()
	if v := os.Getenv(EnvAPIURL); v != "" {
		out.APIURL = v
		out.Sources["apiUrl"] = SourceEnv
	}
	if v := os.Getenv(EnvRole); v != "" {
		role, err := ParseRole(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvRole, err)
		}
		out.Role = role
		out.Sources["role"] = SourceEnv
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		out.Log.Level = v
		out.Sources["log"] = SourceEnv
	}
	if v := os.Getenv(EnvSessionPath); v != "" {
		out.SessionPath = v
		out.Sources["sessionPath"] = SourceEnv
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		var d Duration
		if err := d.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		out.Timeout = d
		out.Sources["timeout"] = SourceEnv
	}
	return out, nil
}

func applyOptions(cfg Config, opts Options) Config {
	out := cfg.clone()
	if opts.APIURL != "" {
		out.APIURL = opts.APIURL
		out.Sources["apiUrl"] = SourceFlag
	}
	if opts.Role != "" {
		out.Role = Role(strings.ToLower(strings.TrimSpace(opts.Role)))
		out.Sources["role"] = SourceFlag
	}
	if opts.LogLevel != "" {
		out.Log.Level = opts.LogLevel
		out.Sources["log"] = SourceFlag
	}
	return out
}

func globalConfigPath() (string, bool) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.toml", "config.json"} {
		p := filepath.Join(dir, GlobalConfigDir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".farmcart", "session.db")
	}
	return filepath.Join(dir, GlobalConfigDir, "session.db")
}
