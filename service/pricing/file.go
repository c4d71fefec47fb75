package pricing

import (
	"fmt"
	"os"
	"strings"

	"github.com/AnTengye/rollingquote/model"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ScheduleFile is the on-disk form of a pricing schedule. Amounts are strings
// so they are parsed exactly. Omitted sections fall back to the defaults.
type ScheduleFile struct {
	Pivot            string            `yaml:"pivot"`
	ReverseSurcharge string            `yaml:"reverse_surcharge"`
	MinimumCharge    string            `yaml:"minimum_charge"`
	Rounding         string            `yaml:"rounding"`
	Currency         string            `yaml:"currency"`
	Rates            map[string]string `yaml:"rates"`
	Aliases          map[string]string `yaml:"aliases"`
	QualifierAliases map[string]string `yaml:"qualifier_aliases"`
	Subject          map[string]string `yaml:"subject_multipliers"`
	Turnaround       map[string]string `yaml:"turnaround_multipliers"`
	Certified        string            `yaml:"certified_multiplier"`
}

// Schedule is everything needed to build an Engine.
type Schedule struct {
	Table      RateTable
	Surcharges Surcharges
	Minimum    decimal.Decimal
	Rounding   Rounding
	Currency   string
}

// DefaultSchedule is the built-in schedule.
func DefaultSchedule() Schedule {
	return Schedule{
		Table:      DefaultRateTable(),
		Surcharges: DefaultSurcharges(),
		Minimum:    DefaultMinimumCharge,
		Rounding:   RoundHalfUp,
		Currency:   "usd",
	}
}

// Engine builds the catalog and engine for s.
func (s Schedule) Engine() (*Engine, error) {
	catalog, err := NewCatalog(s.Table)
	if err != nil {
		return nil, err
	}
	return NewEngine(catalog,
		WithSurcharges(s.Surcharges),
		WithMinimumCharge(s.Minimum),
		WithRounding(s.Rounding),
		WithCurrency(s.Currency),
	), nil
}

// LoadSchedule reads a YAML schedule from path and overlays it on the defaults.
func LoadSchedule(path string) (Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schedule{}, fmt.Errorf("pricing: read %s: %w", path, err)
	}
	return ParseSchedule(data)
}

// ParseSchedule decodes a YAML schedule and overlays it on the defaults.
// A rates section replaces the built-in rates entirely.
func ParseSchedule(data []byte) (Schedule, error) {
	var f ScheduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Schedule{}, fmt.Errorf("pricing: decode schedule: %w", err)
	}

	s := DefaultSchedule()
	if f.Pivot != "" {
		s.Table.Pivot = f.Pivot
	}
	if err := setDecimal(&s.Table.ReverseSurcharge, "reverse_surcharge", f.ReverseSurcharge); err != nil {
		return Schedule{}, err
	}
	if err := setDecimal(&s.Minimum, "minimum_charge", f.MinimumCharge); err != nil {
		return Schedule{}, err
	}
	if err := setDecimal(&s.Surcharges.Certified, "certified_multiplier", f.Certified); err != nil {
		return Schedule{}, err
	}

	switch Rounding(f.Rounding) {
	case "":
	case RoundHalfUp, RoundHalfEven:
		s.Rounding = Rounding(f.Rounding)
	default:
		return Schedule{}, fmt.Errorf("pricing: %w: unknown rounding %q", model.ErrValidation, f.Rounding)
	}
	if f.Currency != "" {
		s.Currency = strings.ToLower(f.Currency)
	}

	if len(f.Rates) > 0 {
		rates := make(map[string]decimal.Decimal, len(f.Rates))
		for key, raw := range f.Rates {
			target := rateTarget(key, s.Table.Pivot)
			rate, err := decimal.NewFromString(raw)
			if err != nil {
				return Schedule{}, fmt.Errorf("pricing: %w: rate %q: %v", model.ErrValidation, key, err)
			}
			rates[target] = rate
		}
		s.Table.Rates = rates
	}
	for k, v := range f.Aliases {
		s.Table.Aliases[k] = v
	}
	for k, v := range f.QualifierAliases {
		s.Table.QualifierAliases[k] = v
	}

	for name, raw := range f.Subject {
		subject, ok := model.ParseSubject(name)
		if !ok {
			return Schedule{}, fmt.Errorf("pricing: %w: unknown subject %q", model.ErrValidation, name)
		}
		var d decimal.Decimal
		if err := setDecimal(&d, "subject_multipliers."+name, raw); err != nil {
			return Schedule{}, err
		}
		s.Surcharges.Subject[subject] = d
	}
	for name, raw := range f.Turnaround {
		tier, ok := model.ParseTurnaround(name)
		if !ok {
			return Schedule{}, fmt.Errorf("pricing: %w: unknown turnaround %q", model.ErrValidation, name)
		}
		var d decimal.Decimal
		if err := setDecimal(&d, "turnaround_multipliers."+name, raw); err != nil {
			return Schedule{}, err
		}
		s.Surcharges.Turnaround[tier] = d
	}

	return s, nil
}

// rateTarget accepts both "english->french" and bare "french" keys.
func rateTarget(key, pivot string) string {
	if src, tgt, ok := strings.Cut(key, "->"); ok && collapse(src) == collapse(pivot) {
		return collapse(tgt)
	}
	return collapse(key)
}

func setDecimal(dst *decimal.Decimal, field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("pricing: %w: %s: %v", model.ErrValidation, field, err)
	}
	*dst = d
	return nil
}
