package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolate hides the developer's own config and environment.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{EnvConfig, EnvAPIURL, EnvRole, EnvLogLevel, EnvSessionPath, EnvTimeout} {
		t.Setenv(key, "")
	}
}

func TestResolve_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Resolve(Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, RoleCustomer, cfg.Role)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, SourceDefault, cfg.Sources["apiUrl"])
	assert.NotEmpty(t, cfg.SessionPath)
}

func TestLoadFile_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "farmcart.yaml",
			content: `apiUrl: https://api.farmcart.test/api
role: farmer
timeout: 5s
log:
  level: debug
resources:
  vegetables:
    path: /catalog/vegetables
`,
		},
		{
			name: "toml",
			file: "farmcart.toml",
			content: `apiUrl = "https://api.farmcart.test/api"
role = "farmer"
timeout = "5s"

[log]
level = "debug"

[resources.vegetables]
path = "/catalog/vegetables"
`,
		},
		{
			name: "json",
			file: "farmcart.json",
			content: `{"apiUrl":"https://api.farmcart.test/api","role":"farmer","timeout":"5s",
"log":{"level":"debug"},"resources":{"vegetables":{"path":"/catalog/vegetables"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			assert.Equal(t, "https://api.farmcart.test/api", cfg.APIURL)
			assert.Equal(t, RoleFarmer, cfg.Role)
			assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
			assert.Equal(t, "debug", cfg.Log.Level)
			assert.Equal(t, "/catalog/vegetables", cfg.ResourcePath("vegetables", "/vegetables"))
			assert.Equal(t, "/farms", cfg.ResourcePath("farms", "/farms"))
			assert.Equal(t, SourceFile, cfg.Sources["role"])
			_, hasUA := cfg.Sources["userAgent"]
			assert.False(t, hasUA)
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = LoadFile(writeFile(t, "empty.yaml", "  \n"))
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = LoadFile(writeFile(t, "bad.yaml", "apiUrl: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidYAML)

	_, err = LoadFile(writeFile(t, "bad.toml", "apiUrl = "))
	assert.ErrorIs(t, err, ErrInvalidTOML)

	_, err = LoadFile(writeFile(t, "bad.json", "{"))
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestLoadFile_SchemaViolations(t *testing.T) {
	_, err := LoadFile(writeFile(t, "c.yaml", "role: admin\ntimeout: soon\nextra: 1\nresources:\n  farms:\n    path: farms\n"))
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	paths := make([]string, 0, len(ve.Errors))
	for _, fe := range ve.Errors {
		paths = append(paths, fe.Path)
	}
	assert.Contains(t, paths, "role")
	assert.Contains(t, paths, "timeout")
	assert.Contains(t, paths, "resources.farms.path")
	assert.NotEmpty(t, ve.Hint())
}

func TestResolve_Layering(t *testing.T) {
	isolate(t)
	path := writeFile(t, "c.yaml", "apiUrl: https://file.test/api\nrole: farmer\nlog:\n  format: json\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvRole, "Delivery")
	t.Setenv(EnvTimeout, "2s")

	cfg, err := Resolve(Options{LogLevel: "debug"})
	require.NoError(t, err)

	assert.Equal(t, "https://file.test/api", cfg.APIURL)
	assert.Equal(t, SourceFile, cfg.Sources["apiUrl"])
	assert.Equal(t, RoleDelivery, cfg.Role)
	assert.Equal(t, SourceEnv, cfg.Sources["role"])
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, SourceFlag, cfg.Sources["log"])

	cfg, err = Resolve(Options{APIURL: "http://flag.test"})
	require.NoError(t, err)
	assert.Equal(t, "http://flag.test", cfg.APIURL)
	assert.Equal(t, SourceFlag, cfg.Sources["apiUrl"])
}

func TestResolve_InvalidEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvRole, "admin")
	_, err := Resolve(Options{})
	assert.ErrorContains(t, err, EnvRole)
}

func TestResolve_InvalidFlagRole(t *testing.T) {
	isolate(t)
	_, err := Resolve(Options{Role: "wizard"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "role", ve.Errors[0].Path)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.APIURL = "ftp://files.test"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiUrl")
	assert.Contains(t, err.Error(), "log.format")
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := Default()
	src := Config{
		Resources: map[string]ResourceOverride{"farms": {Path: "/my/farms"}},
		Sources:   map[string]string{"resources": SourceFile},
	}

	merged := Merge(base, src, SourceFile)
	merged.Resources["orders"] = ResourceOverride{Path: "/x"}

	assert.Nil(t, base.Resources)
	assert.Len(t, src.Resources, 1)
	assert.Equal(t, SourceDefault, base.Sources["apiUrl"])
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" FARMER ")
	require.NoError(t, err)
	assert.Equal(t, RoleFarmer, r)

	_, err = ParseRole("")
	assert.Error(t, err)
}
