package payroll

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	zeroAmount = "0.00"

	// maxIntegerDigits bounds accepted amounts below 10^18.
	maxIntegerDigits = 18
)

// FormatCurrency renders v with grouped thousands and exactly two decimals.
// The value stays exact decimal all the way to the printed digits.
//
// Anything that does not convert to a number (nil, blank cells, free text,
// NaN, infinities, values of 10^18 or more) is shown as "0.00". This is the
// single place where bad spreadsheet values are normalized; it never returns an
// error so a payslip can always be laid out.
func FormatCurrency(v any) string {
	amount, ok := toDecimal(v)
	if !ok {
		return zeroAmount
	}
	return formatDecimal(amount)
}

// FormatDeduction shows the magnitude of v with an explicit minus sign.
func FormatDeduction(v any) string {
	amount, ok := toDecimal(v)
	if !ok {
		return zeroAmount
	}
	amount = amount.Abs().Round(2)
	if amount.IsZero() {
		return zeroAmount
	}
	return "-" + formatDecimal(amount)
}

// ParseAmount reads a spreadsheet cell as money, with the same zero fallback
// as FormatCurrency.
func ParseAmount(cell string) decimal.Decimal {
	amount, ok := toDecimal(cell)
	if !ok {
		return decimal.Zero
	}
	return amount
}

func formatDecimal(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	if fixed == zeroAmount {
		return zeroAmount
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + groupThousands(whole) + "." + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	var b strings.Builder
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// toDecimal converts v and applies the range policy. The magnitude is judged
// from digit count and exponent so huge exponents are never expanded.
func toDecimal(v any) (decimal.Decimal, bool) {
	amount, ok := convertDecimal(v)
	if !ok {
		return decimal.Zero, false
	}
	if amount.IsZero() {
		return decimal.Zero, true
	}
	magnitude := amount.NumDigits() + int(amount.Exponent())
	switch {
	case magnitude > maxIntegerDigits:
		return decimal.Zero, false
	case magnitude < -2:
		// below 0.001, rounds to zero at two places
		return decimal.Zero, true
	}
	return amount, true
}

func convertDecimal(v any) (decimal.Decimal, bool) {
	switch value := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return value, true
	case *decimal.Decimal:
		if value == nil {
			return decimal.Zero, false
		}
		return *value, true
	case float64:
		return fromFloat(value)
	case float32:
		return fromFloat(float64(value))
	case int:
		return decimal.NewFromInt(int64(value)), true
	case int8:
		return decimal.NewFromInt(int64(value)), true
	case int16:
		return decimal.NewFromInt(int64(value)), true
	case int32:
		return decimal.NewFromInt(int64(value)), true
	case int64:
		return decimal.NewFromInt(value), true
	case uint:
		return decimal.NewFromUint64(uint64(value)), true
	case uint8:
		return decimal.NewFromUint64(uint64(value)), true
	case uint16:
		return decimal.NewFromUint64(uint64(value)), true
	case uint32:
		return decimal.NewFromUint64(uint64(value)), true
	case uint64:
		return decimal.NewFromUint64(value), true
	case string:
		return fromString(value)
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromString(raw string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, raw)
	if cleaned == "" {
		return decimal.Zero, false
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}
