package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTemplates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
patterns:
  - "{first}.{last}.corp"
  - "{f}{last}99"
`), 0o644))

	templates, err := LoadTemplates(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"{first}.{last}.corp", "{f}{last}99"}, templates)
}

func TestLoadTemplates_MissingFile(t *testing.T) {
	_, err := LoadTemplates(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadTemplates_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patterns: {not a list"), 0o644))

	_, err := LoadTemplates(path)
	require.Error(t, err)
}

func TestExpand(t *testing.T) {
	v := NewVariations("Jonathan", "Smithers")

	tests := []struct {
		tmpl string
		want string
	}{
		{"{first}.{last}", "jonathan.smithers"},
		{"{f}{last}", "jsmithers"},
		{"{first2}_{last3}", "jo_smi"},
		{"{first4}-{last4}", "jona-smit"},
		{"{first}.{mystery}", "jonathan.{mystery}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Expand(tt.tmpl, v), "template %q", tt.tmpl)
	}
}
