package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZacharyZcR/pehashng/internal/pe"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "saferwall", cfg.Backend)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, FormatText, cfg.Format)
	assert.False(t, cfg.Strict)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    func(*Config)
		wantErr bool
	}{
		{
			name: "Empty document keeps defaults",
			yaml: "",
			want: func(*Config) {},
		},
		{
			name: "All fields",
			yaml: `
backend: saferwall
workers: 3
recursive: true
skip_non_pe: true
format: json
verbose: true
strict: true
`,
			want: func(c *Config) {
				c.Backend = "saferwall"
				c.Workers = 3
				c.Recursive = true
				c.SkipNonPE = true
				c.Format = FormatJSON
				c.Verbose = true
				c.Strict = true
			},
		},
		{name: "Unknown key", yaml: "threads: 4\n", wantErr: true},
		{name: "Unknown backend", yaml: "backend: pefile\n", wantErr: true},
		{name: "Zero workers", yaml: "workers: 0\n", wantErr: true},
		{name: "Bad format", yaml: "format: xml\n", wantErr: true},
		{name: "Malformed YAML", yaml: "backend: [\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			want := Default()
			tt.want(&want)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pehashng.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: SAFERWALL\nformat: yaml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, pe.BackendSaferwall, cfg.ParsedBackend())
	assert.Equal(t, FormatYAML, cfg.Format)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
