package pricing

import (
	"fmt"

	"github.com/AnTengye/rollingquote/model"
	"github.com/shopspring/decimal"
)

// Rounding selects how a USD amount is converted to integer cents.
type Rounding string

const (
	RoundHalfUp   Rounding = "half_up"
	RoundHalfEven Rounding = "half_even"
)

// Surcharges are the independent multipliers applied on top of the base rate.
type Surcharges struct {
	Subject    map[model.Subject]decimal.Decimal
	Turnaround map[model.Turnaround]decimal.Decimal
	Certified  decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Engine prices pairs and orders against an injected Catalog.
type Engine struct {
	catalog    *Catalog
	surcharges Surcharges
	minimum    decimal.Decimal
	rounding   Rounding
	currency   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSurcharges replaces the default multipliers.
func WithSurcharges(s Surcharges) Option {
	return func(e *Engine) { e.surcharges = s }
}

// WithMinimumCharge sets the per-pair floor in USD.
func WithMinimumCharge(min decimal.Decimal) Option {
	return func(e *Engine) { e.minimum = min }
}

// WithRounding sets the cents rounding mode.
func WithRounding(r Rounding) Option {
	return func(e *Engine) { e.rounding = r }
}

// WithCurrency sets the ISO currency code reported on quotes.
func WithCurrency(code string) Option {
	return func(e *Engine) { e.currency = code }
}

// NewEngine creates an Engine using the default multipliers unless overridden.
func NewEngine(catalog *Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog:    catalog,
		surcharges: DefaultSurcharges(),
		minimum:    DefaultMinimumCharge,
		rounding:   RoundHalfUp,
		currency:   "usd",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine prices against.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// Currency returns the currency code amounts are expressed in.
func (e *Engine) Currency() string { return e.currency }

// PriceForPair prices words for one pair in integer cents. The minimum
// charge is applied in USD before rounding.
func (e *Engine) PriceForPair(words int, pair model.LanguagePair, opts model.QuoteOptions) (int64, error) {
	if words < 0 {
		return 0, model.NewValidationError("total_words", "must not be negative")
	}
	opts, err := opts.Normalize()
	if err != nil {
		return 0, err
	}

	rate, ok := e.catalog.BaseRate(pair.Source, pair.Target)
	if !ok {
		return 0, model.UnsupportedPair(e.catalog.NormalizePair(pair))
	}

	subject, ok := e.surcharges.Subject[opts.Subject]
	if !ok {
		return 0, fmt.Errorf("pricing: no multiplier for subject %q: %w", opts.Subject, model.ErrValidation)
	}
	turnaround, ok := e.surcharges.Turnaround[opts.Turnaround]
	if !ok {
		return 0, fmt.Errorf("pricing: no multiplier for turnaround %q: %w", opts.Turnaround, model.ErrValidation)
	}

	usd := decimal.NewFromInt(int64(words)).Mul(rate).Mul(subject).Mul(turnaround)
	if opts.Certified {
		usd = usd.Mul(e.surcharges.Certified)
	}
	if usd.LessThan(e.minimum) {
		usd = e.minimum
	}
	return e.toCents(usd), nil
}

// PriceForOrder prices the same word count into every requested pair and
// sums the results. One unsupported pair makes the whole order unsupported.
func (e *Engine) PriceForOrder(words int, pairs []model.LanguagePair, opts model.QuoteOptions) (int64, []model.QuoteLine, error) {
	if len(pairs) == 0 {
		return 0, nil, model.NewValidationError("pairs", "at least one language pair is required")
	}

	var total int64
	lines := make([]model.QuoteLine, 0, len(pairs))
	for _, p := range pairs {
		cents, err := e.PriceForPair(words, p, opts)
		if err != nil {
			return 0, nil, err
		}
		total += cents
		lines = append(lines, model.QuoteLine{Pair: e.catalog.NormalizePair(p), AmountCents: cents})
	}
	return total, lines, nil
}

func (e *Engine) toCents(usd decimal.Decimal) int64 {
	cents := usd.Mul(hundred)
	if e.rounding == RoundHalfEven {
		return cents.RoundBank(0).IntPart()
	}
	return cents.Round(0).IntPart()
}
