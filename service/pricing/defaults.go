package pricing

import (
	"github.com/AnTengye/rollingquote/model"
	"github.com/shopspring/decimal"
)

// DefaultPivot is the language every supported pair must touch.
const DefaultPivot = "english"

var defaultRates = map[string]string{
	"amharic":                 "0.22",
	"arabic":                  "0.16",
	"bengali":                 "0.16",
	"bulgarian":               "0.15",
	"chinese (simplified)":    "0.16",
	"chinese (traditional)":   "0.17",
	"croatian":                "0.16",
	"czech":                   "0.16",
	"danish":                  "0.20",
	"dutch":                   "0.16",
	"filipino":                "0.14",
	"finnish":                 "0.21",
	"french":                  "0.15",
	"french (canada)":         "0.16",
	"german":                  "0.15",
	"greek":                   "0.16",
	"haitian creole":          "0.18",
	"hebrew":                  "0.17",
	"hindi":                   "0.15",
	"hungarian":               "0.17",
	"indonesian":              "0.14",
	"italian":                 "0.15",
	"japanese":                "0.20",
	"korean":                  "0.18",
	"malay":                   "0.14",
	"norwegian":               "0.20",
	"pashto":                  "0.22",
	"persian":                 "0.18",
	"polish":                  "0.15",
	"portuguese":              "0.13",
	"portuguese (brazil)":     "0.13",
	"portuguese (portugal)":   "0.13",
	"punjabi":                 "0.16",
	"romanian":                "0.14",
	"russian":                 "0.15",
	"serbian":                 "0.16",
	"somali":                  "0.22",
	"spanish":                 "0.12",
	"spanish (latin america)": "0.12",
	"spanish (spain)":         "0.12",
	"swahili":                 "0.20",
	"swedish":                 "0.20",
	"tamil":                   "0.17",
	"thai":                    "0.16",
	"turkish":                 "0.15",
	"ukrainian":               "0.15",
	"urdu":                    "0.16",
	"vietnamese":              "0.14",
	"zulu":                    "0.30",
}

var defaultAliases = map[string]string{
	"en":                     "english",
	"eng":                    "english",
	"inglés":                 "english",
	"ingles":                 "english",
	"fr":                     "french",
	"français":               "french",
	"francais":               "french",
	"french canadian":        "french (canada)",
	"es":                     "spanish",
	"español":                "spanish",
	"espanol":                "spanish",
	"castilian":              "spanish (spain)",
	"spanish (castilian)":    "spanish (spain)",
	"spanish (mexico)":       "spanish (latin america)",
	"spanish (latam)":        "spanish (latin america)",
	"latin american spanish": "spanish (latin america)",
	"de":                     "german",
	"deutsch":                "german",
	"it":                     "italian",
	"pt":                     "portuguese",
	"portugese":              "portuguese",
	"brazilian portuguese":   "portuguese (brazil)",
	"pt-br":                  "portuguese (brazil)",
	"chinese":                "chinese (simplified)",
	"mandarin":               "chinese (simplified)",
	"simplified chinese":     "chinese (simplified)",
	"cantonese":              "chinese (traditional)",
	"traditional chinese":    "chinese (traditional)",
	"farsi":                  "persian",
	"tagalog":                "filipino",
	"phillipino":             "filipino",
	"pilipino":               "filipino",
	"kiswahili":              "swahili",
	"isizulu":                "zulu",
	"pashtu":                 "pashto",
	"ukranian":               "ukrainian",
	"creole":                 "haitian creole",
	"kreyol":                 "haitian creole",
	"bahasa indonesia":       "indonesian",
	"bahasa melayu":          "malay",
	"norwegian bokmal":       "norwegian",
	"bokmål":                 "norwegian",
	"panjabi":                "punjabi",
	"bangla":                 "bengali",
	"vietnamise":             "vietnamese",
	"japaneese":              "japanese",
}

var defaultQualifierAliases = map[string]string{
	"us":                  "",
	"usa":                 "",
	"uk":                  "",
	"united states":       "",
	"united kingdom":      "",
	"es":                  "spain",
	"españa":              "spain",
	"european":            "spain",
	"latam":               "latin america",
	"latin-america":       "latin america",
	"latinoamérica":       "latin america",
	"mexico":              "latin america",
	"br":                  "brazil",
	"brazilian":           "brazil",
	"pt":                  "portugal",
	"european portuguese": "portugal",
	"ca":                  "canada",
	"canadian":            "canada",
	"quebec":              "canada",
	"simplified":          "simplified",
	"traditional":         "traditional",
	"mandarin":            "simplified",
	"taiwan":              "traditional",
	"hong kong":           "traditional",
}

// DefaultRateTable is the built-in per-pair table.
func DefaultRateTable() RateTable {
	rates := make(map[string]decimal.Decimal, len(defaultRates))
	for k, v := range defaultRates {
		rates[k] = decimal.RequireFromString(v)
	}
	aliases := make(map[string]string, len(defaultAliases))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	qualifiers := make(map[string]string, len(defaultQualifierAliases))
	for k, v := range defaultQualifierAliases {
		qualifiers[k] = v
	}
	return RateTable{
		Pivot:            DefaultPivot,
		ReverseSurcharge: decimal.RequireFromString("0.02"),
		Rates:            rates,
		Aliases:          aliases,
		QualifierAliases: qualifiers,
	}
}

// DefaultSurcharges returns the standard multipliers.
func DefaultSurcharges() Surcharges {
	return Surcharges{
		Subject: map[model.Subject]decimal.Decimal{
			model.SubjectGeneral:   decimal.NewFromInt(1),
			model.SubjectTechnical: decimal.RequireFromString("1.20"),
			model.SubjectMarketing: decimal.RequireFromString("1.20"),
			model.SubjectLegal:     decimal.RequireFromString("1.25"),
			model.SubjectMedical:   decimal.RequireFromString("1.25"),
		},
		Turnaround: map[model.Turnaround]decimal.Decimal{
			model.TurnaroundStandard:        decimal.NewFromInt(1),
			model.TurnaroundTwoBusinessDays: decimal.RequireFromString("1.20"),
			model.TurnaroundTwentyFourHours: decimal.RequireFromString("1.40"),
		},
		Certified: decimal.RequireFromString("1.10"),
	}
}

// DefaultMinimumCharge is the per-pair floor in USD.
var DefaultMinimumCharge = decimal.NewFromInt(1)

// DefaultCatalog builds a Catalog from DefaultRateTable.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultRateTable())
	if err != nil {
		panic("pricing: default rate table is invalid: " + err.Error())
	}
	return c
}
