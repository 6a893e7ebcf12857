package domain

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumeric decodes a numeric column value. It accepts plain numeric
// strings ("12.5"), JSON numbers, JSON strings ("\"12.5\"") and the
// {"value": n} envelope. The boolean is false when the value is absent or
// cannot be parsed, in which case the returned amount is zero.
func ParseNumeric(raw string) (decimal.Decimal, bool) {
	return parseNumeric(strings.TrimSpace(raw), 0)
}

const (
	maxEnvelopeDepth = 2

	// Column values beyond these bounds are treated as unparsable so a single
	// cell cannot make balances arbitrarily large to format or write.
	maxNumericLength   = 64
	maxNumericExponent = 28
	maxNumericDigits   = 38
)

func parseNumeric(raw string, depth int) (decimal.Decimal, bool) {
	if raw == "" || raw == "null" {
		return decimal.Zero, false
	}

	switch raw[0] {
	case '{':
		if depth >= maxEnvelopeDepth {
			return decimal.Zero, false
		}
		var envelope struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return decimal.Zero, false
		}
		return parseNumeric(strings.TrimSpace(string(envelope.Value)), depth+1)
	case '"':
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return decimal.Zero, false
		}
		s = strings.TrimSpace(s)
		if s == "" || s[0] == '{' || s[0] == '"' {
			return parseNumeric(s, depth+1)
		}
		return parseDecimal(s)
	default:
		return parseDecimal(raw)
	}
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	if len(s) > maxNumericLength {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if exp := d.Exponent(); exp > maxNumericExponent || exp < -maxNumericExponent || d.NumDigits() > maxNumericDigits {
		return decimal.Zero, false
	}
	return d, true
}

// NumericColumn parses the named column of an item with ParseNumeric.
func NumericColumn(item Item, columnID string) (decimal.Decimal, bool) {
	cv, ok := item.Column(columnID)
	if !ok {
		return decimal.Zero, false
	}
	return ParseNumeric(cv.Value)
}
