package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// FieldError is one configuration problem.
type FieldError struct {
	Path    string // config path, e.g. "log.level"
	Message string
}

func (e FieldError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// Hint points at the usual fix.
func (e *ValidationError) Hint() string {
	return "Run 'farmcart config show' to see where each value comes from."
}

func (e *ValidationError) add(path, message string) {
	e.Errors = append(e.Errors, FieldError{Path: path, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("config.schema.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("failed to add config schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("config.schema.json")
	})
	return compiledSchema, schemaErr
}

// checkSchema validates a raw config document.
func checkSchema(doc map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	// Round-trip through JSON so YAML and TOML values use JSON types.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config document: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("failed to decode config document: %w", err)
	}

	err = s.Validate(normalized)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	result := &ValidationError{}
	collectSchemaErrors(ve, result)
	return result.orNil()
}

func collectSchemaErrors(err *jsonschema.ValidationError, result *ValidationError) {
	if len(err.Causes) == 0 {
		result.add(pointerToPath(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, result)
	}
}

func pointerToPath(p string) string {
	p = strings.TrimPrefix(p, "/")
	return strings.ReplaceAll(p, "/", ".")
}

// Validate checks the semantic rules a schema cannot express.
func (c Config) Validate() error {
	result := &ValidationError{}

	if c.APIURL == "" {
		result.add("apiUrl", "required")
	} else {
		raw := c.APIURL
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		switch {
		case err != nil:
			result.add("apiUrl", err.Error())
		case u.Host == "":
			result.add("apiUrl", "missing host")
		case u.Scheme != "http" && u.Scheme != "https":
			result.add("apiUrl", fmt.Sprintf("unsupported scheme %q", u.Scheme))
		}
	}

	if _, err := ParseRole(string(c.Role)); err != nil {
		result.add("role", err.Error())
	}
	if c.Timeout < 0 {
		result.add("timeout", "must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		result.add("log.format", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	for name, o := range c.Resources {
		if o.Path != "" && !strings.HasPrefix(o.Path, "/") {
			result.add("resources."+name+".path", "must start with /")
		}
	}
	return result.orNil()
}
