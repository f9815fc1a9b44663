package sink

import (
	"math"
	"strconv"

	"github.com/ajitpratap0/feaout/pkg/field"
)

// Non-finite values are rendered with these tokens, so a diverged or
// exactly converged residual stands out from any finite number.
const (
	NegInf = "-inf"
	PosInf = "+inf"
	NaN    = "nan"
)

// FormatCell renders v for a fixed-width display according to the field's
// format class
func FormatCell(d field.Descriptor, v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	switch d.Format {
	case field.FormatInteger:
		return strconv.FormatInt(int64(v), 10)
	case field.FormatFixed:
		return strconv.FormatFloat(v, 'f', 6, 64)
	default:
		return strconv.FormatFloat(v, 'e', 4, 64)
	}
}

// FormatExact renders v for a file. Integers stay integers and every other
// value uses the shortest representation that parses back to the same bits.
func FormatExact(d field.Descriptor, v float64) string {
	if s, ok := nonFinite(v); ok {
		return s
	}
	if d.Format == field.FormatInteger {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseExact is the inverse of FormatExact
func ParseExact(s string) (float64, error) {
	switch s {
	case NegInf:
		return math.Inf(-1), nil
	case PosInf:
		return math.Inf(1), nil
	case NaN:
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func nonFinite(v float64) (string, bool) {
	switch {
	case math.IsNaN(v):
		return NaN, true
	case math.IsInf(v, -1):
		return NegInf, true
	case math.IsInf(v, 1):
		return PosInf, true
	}
	return "", false
}
