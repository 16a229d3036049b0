// Package pattern generates prioritized candidate email local-parts for a
// person at a domain, ordered by empirical real-world frequency.
package pattern

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLocalPartLen is the RFC 5321 limit on the local part of an address.
// Candidates longer than this are dropped, not truncated.
const MaxLocalPartLen = 64

// Variations holds the name fragments the tiered patterns are built from.
// All fields derive deterministically from the two input names.
type Variations struct {
	FirstLower   string
	LastLower    string
	FirstInitial string
	LastInitial  string
	FirstTrunc2  string
	FirstTrunc3  string
	FirstTrunc4  string
	LastTrunc3   string
	LastTrunc4   string
}

// NewVariations normalizes the two names and derives their fragments.
func NewVariations(firstName, lastName string) Variations {
	first := NormalizeName(firstName)
	last := NormalizeName(lastName)
	return Variations{
		FirstLower:   first,
		LastLower:    last,
		FirstInitial: initial(first),
		LastInitial:  initial(last),
		FirstTrunc2:  truncate(first, 2),
		FirstTrunc3:  truncate(first, 3),
		FirstTrunc4:  truncate(first, 4),
		LastTrunc3:   truncate(last, 3),
		LastTrunc4:   truncate(last, 4),
	}
}

// NormalizeName lowercases and trims a name, strips diacritics via NFD
// decomposition, and removes anything that is not a letter or digit, so
// "José O'Brien" yields "joseobrien".
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	stripped, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), name)
	if err == nil {
		name = stripped
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func initial(s string) string {
	if s == "" {
		return ""
	}
	return s[:1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Generator produces ordered candidate local-parts. The zero value uses the
// built-in tiers only; extra templates append a trailing tier.
type Generator struct {
	extra []string
}

// Option configures a Generator.
type Option func(*Generator)

// WithExtraTemplates appends custom pattern templates (see Expand) after the
// built-in tiers. Dedup and length rules apply to them as well.
func WithExtraTemplates(templates []string) Option {
	return func(g *Generator) {
		g.extra = append(g.extra, templates...)
	}
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns up to maxCount candidate local-parts for the given names,
// tier-ordered and globally deduplicated (first occurrence wins). Both names
// must be non-empty after normalization; otherwise the result is empty.
// Identical inputs always yield identical output.
func (g *Generator) Generate(firstName, lastName string, maxCount int) []string {
	v := NewVariations(firstName, lastName)
	if v.FirstLower == "" || v.LastLower == "" {
		return nil
	}

	patterns := tierOne(v)
	patterns = append(patterns, tierTwo(v)...)
	patterns = append(patterns, tierThree(v)...)
	for _, tmpl := range g.extra {
		p := Expand(tmpl, v)
		if strings.ContainsAny(p, "{}") {
			zap.L().Warn("custom pattern has unresolved placeholder, skipping",
				zap.String("template", tmpl),
			)
			continue
		}
		patterns = append(patterns, p)
	}

	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if len(p) > MaxLocalPartLen {
			zap.L().Debug("candidate exceeds local-part limit, dropping",
				zap.String("candidate", p),
				zap.Int("length", len(p)),
			)
			continue
		}
		out = append(out, p)
	}

	if maxCount > 0 && len(out) > maxCount {
		out = out[:maxCount]
	}
	return out
}

// GenerateAddresses returns full candidate addresses for the given domain.
// The domain is lowercased and trimmed but not otherwise validated.
func (g *Generator) GenerateAddresses(firstName, lastName, domain string, maxCount int) []string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	locals := g.Generate(firstName, lastName, maxCount)
	addrs := make([]string, 0, len(locals))
	for _, lp := range locals {
		addrs = append(addrs, lp+"@"+domain)
	}
	return addrs
}

// Tier 1: the ten highest-frequency corporate formats.
func tierOne(v Variations) []string {
	f, l := v.FirstLower, v.LastLower
	fi, li := v.FirstInitial, v.LastInitial
	return []string{
		f + "." + l,
		f + l,
		f,
		fi + "." + l,
		fi + l,
		f + "." + li,
		f + "_" + l,
		f + "_" + li,
		f + "-" + l,
		f + "-" + li,
	}
}

// Tier 2: initial pairs, reversed orders, truncations, numeric suffixes.
func tierTwo(v Variations) []string {
	f, l := v.FirstLower, v.LastLower
	fi, li := v.FirstInitial, v.LastInitial
	return []string{
		fi + "." + li,
		fi + li,
		l + "." + f,
		l + f,
		l + "." + fi,
		li + "." + f,
		li + "." + fi,
		f + "." + v.LastTrunc3,
		v.FirstTrunc2 + "." + l,
		v.FirstTrunc2 + "." + v.LastTrunc3,
		f + li,
		fi + l + "1",
		f + "1",
		f + "." + l + "1",
		fi + "." + l + "1",
		v.FirstTrunc4 + "." + l,
		f + "." + v.LastTrunc4,
	}
}

// Tier 3: reversed-with-separator and deep-truncation legacy formats.
func tierThree(v Variations) []string {
	f, l := v.FirstLower, v.LastLower
	return []string{
		l + "_" + f,
		l + "-" + f,
		v.FirstTrunc3 + "." + l,
		v.FirstTrunc3 + "_" + l,
		v.FirstTrunc3 + "-" + l,
		v.FirstTrunc4 + "_" + l,
		v.FirstTrunc4 + "-" + l,
		f + "_" + v.LastTrunc3,
		f + "-" + v.LastTrunc3,
		f + "_" + v.LastTrunc4,
		f + "-" + v.LastTrunc4,
		v.FirstTrunc2 + "_" + l,
		v.FirstTrunc2 + "-" + l,
		v.FirstTrunc3 + "." + v.LastTrunc3,
		v.FirstTrunc3 + "_" + v.LastTrunc3,
		v.FirstTrunc3 + "-" + v.LastTrunc3,
		v.FirstTrunc4 + "." + v.LastTrunc4,
		v.FirstTrunc4 + "_" + v.LastTrunc4,
		v.FirstTrunc4 + "-" + v.LastTrunc4,
		f + "99",
	}
}
