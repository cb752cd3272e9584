// Package money parses Brazilian real amounts such as "R$ 1.234,56".
package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	amountRegex       = regexp.MustCompile(`\d{1,3}(?:\.\d{3})*,\d{2}`)
	markedAmountRegex = regexp.MustCompile(`R\$\s*\d{1,3}(?:\.\d{3})*,\d{2}`)
)

// ParseAmount parses the first amount written as "1.234,56" found in s.
func ParseAmount(s string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, false
	}
	match := amountRegex.FindString(s)
	if match == "" {
		return decimal.Zero, false
	}

	normalized := strings.ReplaceAll(match, ".", "")
	normalized = strings.Replace(normalized, ",", ".", 1)

	amount, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// FindMarkedAmount returns the first "R$"-prefixed amount in a page's text.
func FindMarkedAmount(text string) (decimal.Decimal, bool) {
	match := markedAmountRegex.FindString(text)
	if match == "" {
		return decimal.Zero, false
	}
	return ParseAmount(match)
}

// Format renders an amount with two decimals, e.g. "99.90".
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
