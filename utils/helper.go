package utils

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// Intake dates are accepted in these layouts, most specific first.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func NewTrue() *bool {
	b := true
	return &b
}

func UniqueSlice[T comparable](slice []T) []T {
	keys := make(map[T]bool)
	list := []T{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

// ParseDate parses a user supplied date, returning DateFormatError for the named field.
func ParseDate(field string, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, DateFormatError(field, value)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, DateFormatError(field, value)
}

// CodePart uppercases s and drops every whitespace rune ("Mama Njeri" -> "MAMANJERI").
func CodePart(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
}

// UnitCost returns total/qty, or zero (and false) when qty is zero.
func UnitCost(total decimal.Decimal, qty decimal.Decimal) (decimal.Decimal, bool) {
	if qty.IsZero() {
		return decimal.Zero, false
	}
	return total.Div(qty), true
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var zero T
	if len(defaults) > 0 {
		return defaults[0]
	}
	return zero
}
