// Package pricing turns word counts and language pairs into amounts.
//
// All rates are expressed in USD per word relative to a single pivot
// language. Pairs that do not touch the pivot are never priced.
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AnTengye/rollingquote/model"
	"github.com/shopspring/decimal"
)

// RateTable is the raw material a Catalog is built from.
type RateTable struct {
	Pivot            string
	ReverseSurcharge decimal.Decimal
	// Rates maps a canonical target language to the pivot->target rate.
	Rates map[string]decimal.Decimal
	// Aliases maps alternate spellings, codes and misspellings to canonical keys.
	Aliases map[string]string
	// QualifierAliases canonicalizes the text inside parentheses, e.g. "us" or "br".
	QualifierAliases map[string]string
}

// Catalog is an immutable rate table with a language-name normalizer.
// It is safe for concurrent use.
type Catalog struct {
	pivot            string
	reverseSurcharge decimal.Decimal
	rates            map[string]decimal.Decimal
	aliases          map[string]string
	qualifiers       map[string]string
}

// NewCatalog validates t and copies it into a Catalog.
func NewCatalog(t RateTable) (*Catalog, error) {
	pivot := collapse(t.Pivot)
	if pivot == "" {
		return nil, fmt.Errorf("pricing: %w: pivot language is required", model.ErrValidation)
	}
	if t.ReverseSurcharge.IsNegative() {
		return nil, fmt.Errorf("pricing: %w: reverse surcharge must not be negative", model.ErrValidation)
	}

	c := &Catalog{
		pivot:            pivot,
		reverseSurcharge: t.ReverseSurcharge,
		rates:            make(map[string]decimal.Decimal, len(t.Rates)),
		aliases:          make(map[string]string, len(t.Aliases)),
		qualifiers:       make(map[string]string, len(t.QualifierAliases)),
	}
	for k, v := range t.Aliases {
		c.aliases[collapse(k)] = collapse(v)
	}
	for k, v := range t.QualifierAliases {
		c.qualifiers[collapse(k)] = collapse(v)
	}
	for lang, rate := range t.Rates {
		key := collapse(lang)
		if key == pivot {
			return nil, fmt.Errorf("pricing: %w: rate for pivot language %q", model.ErrValidation, lang)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("pricing: %w: rate for %q must be positive", model.ErrValidation, lang)
		}
		c.rates[key] = rate
	}
	return c, nil
}

// Pivot returns the canonical pivot language.
func (c *Catalog) Pivot() string { return c.pivot }

// ReverseSurcharge is the per-word amount added when translating into the pivot.
func (c *Catalog) ReverseSurcharge() decimal.Decimal { return c.reverseSurcharge }

// Languages lists every non-pivot language with a rate, sorted.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.rates))
	for k := range c.rates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize maps a display name to its canonical key. It never fails:
// unknown input comes back lowercased with whitespace collapsed.
func (c *Catalog) Normalize(name string) string {
	s := collapse(name)
	if s == "" {
		return s
	}
	if v, ok := c.aliases[s]; ok {
		return v
	}

	base, qualifier, hasQualifier := splitQualifier(s)
	if !hasQualifier {
		return s
	}
	// only spelling fixes apply to the base, never an alias that picks a region
	if v, ok := c.aliases[base]; ok && !strings.Contains(v, "(") {
		base = v
	}
	if base == c.pivot {
		return c.pivot
	}
	if v, ok := c.qualifiers[qualifier]; ok {
		qualifier = v
	}
	if qualifier == "" {
		return base
	}

	qualified := base + " (" + qualifier + ")"
	if v, ok := c.aliases[qualified]; ok {
		return v
	}
	if _, ok := c.rates[qualified]; ok {
		return qualified
	}
	if _, ok := c.rates[base]; ok {
		return base
	}
	return qualified
}

// NormalizePair normalizes both sides of p.
func (c *Catalog) NormalizePair(p model.LanguagePair) model.LanguagePair {
	return model.LanguagePair{Source: c.Normalize(p.Source), Target: c.Normalize(p.Target)}
}

// BaseRate returns the per-word rate for source->target. The boolean is
// false for pivot->pivot, non-pivot->non-pivot and unknown languages.
func (c *Catalog) BaseRate(source, target string) (decimal.Decimal, bool) {
	src, tgt := c.Normalize(source), c.Normalize(target)

	switch {
	case src == c.pivot && tgt != c.pivot:
		rate, ok := c.rates[tgt]
		return rate, ok
	case tgt == c.pivot && src != c.pivot:
		rate, ok := c.rates[src]
		if !ok {
			return decimal.Zero, false
		}
		return rate.Add(c.reverseSurcharge), true
	default:
		return decimal.Zero, false
	}
}

// collapse lowercases, trims and squeezes whitespace, and tidies the
// spacing around parentheses so "Spanish(Spain )" and "spanish (spain)" agree.
func collapse(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "(", " ( ")
	s = strings.ReplaceAll(s, ")", " ) ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "( ", "(")
	s = strings.ReplaceAll(s, " )", ")")
	return s
}

func splitQualifier(s string) (base, qualifier string, ok bool) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return s, "", false
	}
	base = strings.TrimSpace(s[:open])
	qualifier = strings.TrimSpace(s[open+1 : len(s)-1])
	if base == "" {
		return s, "", false
	}
	return base, qualifier, true
}
