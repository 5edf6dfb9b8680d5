package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadAmount is returned when a money string cannot be parsed.
var ErrBadAmount = errors.New("invalid amount")

// FormatCents renders an amount of cents as a decimal string, e.g. 1250 -> "12.50".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseCents parses a decimal amount ("12.5", "12.50", "9") into cents.
// More than two fractional digits is rejected rather than rounded.
func ParseCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadAmount
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !allDigits(whole) {
		return 0, ErrBadAmount
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrBadAmount
	}

	var cents int64
	switch len(frac) {
	case 0:
	case 1, 2:
		if !allDigits(frac) {
			return 0, ErrBadAmount
		}
		d, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrBadAmount
		}
		if len(frac) == 1 {
			d *= 10
		}
		cents = d
	default:
		return 0, ErrBadAmount
	}

	total := units*100 + cents
	if neg {
		total = -total
	}
	return total, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MarshalJSON exposes the price and computed total as fixed-point decimal
// strings, matching the wire format of the rest of the API.
func (i SalesItem) MarshalJSON() ([]byte, error) {
	type itemAlias SalesItem // prevent recursion
	return json.Marshal(&struct {
		itemAlias
		Price string `json:"price"`
		Total string `json:"total"`
	}{
		itemAlias: itemAlias(i),
		Price:     FormatCents(i.PriceCents),
		Total:     FormatCents(i.TotalCents()),
	})
}
