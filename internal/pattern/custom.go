package pattern

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CustomFile is the on-disk shape of a custom pattern file.
//
//	patterns:
//	  - "{first}.{last}.corp"
//	  - "{f}{last}{l}"
type CustomFile struct {
	Patterns []string `yaml:"patterns"`
}

// LoadTemplates reads custom pattern templates from a YAML file.
func LoadTemplates(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pattern: read templates %s", path)
	}
	var file CustomFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "pattern: parse templates %s", path)
	}
	return file.Patterns, nil
}

// Expand substitutes name fragments into a template. Recognized placeholders:
// {first} {last} {f} {l} {first2} {first3} {first4} {last3} {last4}.
// Templates with unresolved placeholders are rejected by the Generator
// rather than silently producing a wrong address.
func Expand(tmpl string, v Variations) string {
	r := strings.NewReplacer(
		"{first}", v.FirstLower,
		"{last}", v.LastLower,
		"{f}", v.FirstInitial,
		"{l}", v.LastInitial,
		"{first2}", v.FirstTrunc2,
		"{first3}", v.FirstTrunc3,
		"{first4}", v.FirstTrunc4,
		"{last3}", v.LastTrunc3,
		"{last4}", v.LastTrunc4,
	)
	return r.Replace(tmpl)
}
