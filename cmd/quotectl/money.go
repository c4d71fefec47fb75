package main

import (
	"strings"

	"github.com/shopspring/decimal"
)

func money(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}
