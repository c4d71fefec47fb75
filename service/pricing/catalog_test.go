package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Normalize(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	tests := []struct {
		in   string
		want string
	}{
		{"English", "english"},
		{"  English   (US) ", "english"},
		{"english(uk)", "english"},
		{"Spanish (Spain)", "spanish (spain)"},
		{"SPANISH ( spain )", "spanish (spain)"},
		{"Spanish (ES)", "spanish (spain)"},
		{"Spanish (Mexico)", "spanish (latin america)"},
		{"Spanish (Argentina)", "spanish"},
		{"Portuguese (BR)", "portuguese (brazil)"},
		{"Chinese (Traditional)", "chinese (traditional)"},
		{"Chinese", "chinese (simplified)"},
		{"Farsi", "persian"},
		{"Portugese", "portuguese"},
		{"Tagalog", "filipino"},
		{"Klingon", "klingon"},
		{"Old   High  German", "old high german"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Normalize(tt.in))
		})
	}
}

func TestCatalog_NormalizeIsIdempotent(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	for _, in := range []string{"English (US)", "Spanish (Spain)", "Mandarin", "Portuguese (BR)", "klingon (qo'nos)"} {
		once := c.Normalize(in)
		assert.Equal(t, once, c.Normalize(once), in)
	}
}

func TestCatalog_BaseRate(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	rate, ok := c.BaseRate("English", "French")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.15").Equal(rate), rate.String())

	rate, ok = c.BaseRate("French", "English (US)")
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("0.17").Equal(rate), rate.String())

	for _, pair := range [][2]string{
		{"english", "english"},
		{"English (US)", "English (UK)"},
		{"french", "german"},
		{"english", "klingon"},
		{"klingon", "english"},
	} {
		_, ok := c.BaseRate(pair[0], pair[1])
		assert.False(t, ok, "%s -> %s", pair[0], pair[1])
	}
}

func TestCatalog_PairSymmetry(t *testing.T) {
	t.Parallel()
	c := DefaultCatalog()

	for _, lang := range c.Languages() {
		forward, ok := c.BaseRate("english", lang)
		require.True(t, ok, lang)
		reverse, ok := c.BaseRate(lang, "english")
		require.True(t, ok, lang)
		assert.True(t, forward.Add(c.ReverseSurcharge()).Equal(reverse), "%s: %s + %s != %s", lang, forward, c.ReverseSurcharge(), reverse)
	}
}

func TestNewCatalog_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewCatalog(RateTable{})
	require.Error(t, err)

	_, err = NewCatalog(RateTable{Pivot: "english", Rates: map[string]decimal.Decimal{"english": decimal.NewFromInt(1)}})
	require.Error(t, err)

	_, err = NewCatalog(RateTable{Pivot: "english", Rates: map[string]decimal.Decimal{"french": decimal.Zero}})
	require.Error(t, err)

	c, err := NewCatalog(RateTable{Pivot: "English", Rates: map[string]decimal.Decimal{"French": decimal.NewFromInt(1)}})
	require.NoError(t, err)
	assert.Equal(t, "english", c.Pivot())
	assert.Equal(t, []string{"french"}, c.Languages())
}
