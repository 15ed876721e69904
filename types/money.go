// Package types provides common types used across Payable.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only — no floating point.
//
// Examples:
//   - USD(11900) = $119.00 (11900 cents)
//   - EUR(19900) = €199.00 (19900 cents)
//   - INR(9900)  = ₹99.00 (9900 paise)
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (cents, pence, paise, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "usd", "eur", "inr"
}

// Common currency constructors

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// JPY creates a Money value in Japanese Yen (no decimal).
func JPY(yen int64) Money { return Money{Amount: yen, Currency: "jpy"} }

// INR creates a Money value in Indian Rupees (paise).
func INR(paise int64) Money { return Money{Amount: paise, Currency: "inr"} }

// AUD creates a Money value in Australian Dollars (cents).
func AUD(cents int64) Money { return Money{Amount: cents, Currency: "aud"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// ParseMajor parses a major-unit decimal string ("119", "119.00", "1,234.5")
// into a Money value in the given currency. Thousands separators are ignored.
// Extra fractional digits beyond the currency's precision are an error, not
// silently truncated.
func ParseMajor(s, currency string) (Money, error) {
	decimals := currencyDecimals(currency)

	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	cleaned = strings.TrimPrefix(cleaned, currencySymbol(currency))
	if cleaned == "" {
		return Money{}, fmt.Errorf("money: parse %q: empty amount", s)
	}

	negative := false
	if cleaned[0] == '-' {
		negative = true
		cleaned = cleaned[1:]
	}

	whole, frac := cleaned, ""
	if dot := strings.IndexByte(cleaned, '.'); dot >= 0 {
		whole, frac = cleaned[:dot], cleaned[dot+1:]
	}
	if whole == "" && frac == "" {
		return Money{}, fmt.Errorf("money: parse %q: no digits", s)
	}
	if len(frac) > decimals {
		return Money{}, fmt.Errorf("money: parse %q: more than %d fractional digits", s, decimals)
	}

	var amount int64
	for _, r := range whole {
		if r < '0' || r > '9' {
			return Money{}, fmt.Errorf("money: parse %q: unexpected character %q", s, r)
		}
		amount = amount*10 + int64(r-'0')
	}
	for i := 0; i < decimals; i++ {
		amount *= 10
		if i < len(frac) {
			r := frac[i]
			if r < '0' || r > '9' {
				return Money{}, fmt.Errorf("money: parse %q: unexpected character %q", s, r)
			}
			amount += int64(r - '0')
		}
	}

	if negative {
		amount = -amount
	}
	return Money{Amount: amount, Currency: strings.ToLower(currency)}, nil
}

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Divide divides the Money by a divisor. Uses integer division.
func (m Money) Divide(divisor int64) Money {
	if divisor == 0 {
		panic("money: division by zero")
	}
	return Money{Amount: m.Amount / divisor, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return Money{Amount: -m.Amount, Currency: m.Currency}
	}
	return m
}

// Tax and percentage helpers (integer basis-point arithmetic)

// Percent returns bps basis points of the Money value, rounded to the
// nearest smallest unit. Percent(USD(11900), 200) is 2% of $119.00.
func (m Money) Percent(bps int64) Money {
	amount := m.Amount * bps
	half := int64(5000)
	if amount < 0 {
		half = -half
	}
	return Money{Amount: (amount + half) / 10000, Currency: m.Currency}
}

// TaxFromGross extracts the tax portion embedded in a tax-inclusive gross
// amount at the given rate in basis points: gross*rate/(10000+rate),
// rounded to the nearest smallest unit. For an 18% rate (1800 bps) on a
// gross of $119.00 the embedded tax is $18.15.
func (m Money) TaxFromGross(rateBps int64) Money {
	if rateBps <= 0 {
		return Zero(m.Currency)
	}
	num := m.Amount * rateBps
	den := 10000 + rateBps
	return Money{Amount: (num + den/2) / den, Currency: m.Currency}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Min returns the smaller of two Money values. Panics if currencies don't match.
func (m Money) Min(other Money) Money {
	m.assertSameCurrency(other)
	if m.Amount < other.Amount {
		return m
	}
	return other
}

// Max returns the larger of two Money values. Panics if currencies don't match.
func (m Money) Max(other Money) Money {
	m.assertSameCurrency(other)
	if m.Amount > other.Amount {
		return m
	}
	return other
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// For currencies with 2 decimal places: "119.00" for USD(11900).
// For currencies with 0 decimal places (JPY): "100" for JPY(100).
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	// Handle sign separately
	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	major := absAmount / divisor
	minor := absAmount % divisor

	format := fmt.Sprintf("%%d.%%0%dd", decimals)
	result := fmt.Sprintf(format, major, minor)

	if isNegative {
		return "-" + result
	}
	return result
}

// String returns a human-readable string with currency symbol.
// Examples: "$119.00", "€199.00", "₹99.00", "¥100"
func (m Money) String() string {
	symbol := currencySymbol(m.Currency)
	return symbol + m.FormatMajor()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"inr": "₹",
		"aud": "A$",
		"cad": "C$",
		"chf": "CHF ",
		"cny": "¥",
		"sgd": "S$",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int {
	// Currencies with 0 decimal places
	zeroDecimal := map[string]bool{
		"jpy": true, // Japanese Yen
		"krw": true, // Korean Won
		"vnd": true, // Vietnamese Dong
		"clp": true, // Chilean Peso
		"pyg": true, // Paraguayan Guarani
		"idr": true, // Indonesian Rupiah
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	// Most currencies have 2 decimal places
	return 2
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(values ...Money) Money {
	if len(values) == 0 {
		return Zero("usd")
	}

	result := values[0]
	for i := 1; i < len(values); i++ {
		result = result.Add(values[i])
	}
	return result
}
