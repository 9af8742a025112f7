package currency

import (
	"fmt"
	"sort"
	"strings"
)

// ratesPerUSD maps currency codes to the number of local currency units per 1 USD.
// These are approximate 2024 reference rates for the ledger currencies.
var ratesPerUSD = map[string]float64{
	"USD": 1.0,
	"EUR": 0.92,  // Euro
	"GBP": 0.79,  // Pound Sterling
	"JPY": 151.0, // Japanese Yen
	"CAD": 1.36,  // Canadian Dollar
	"AUD": 1.52,  // Australian Dollar
	"CHF": 0.90,  // Swiss Franc
}

// ToUSD converts a local currency amount to USD.
func ToUSD(amount float64, currency string) (float64, error) {
	rate, ok := ratesPerUSD[Normalize(currency)]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", currency)
	}
	return amount / rate, nil
}

// Rate returns the exchange rate for a given currency (units per 1 USD).
func Rate(currency string) (float64, error) {
	rate, ok := ratesPerUSD[Normalize(currency)]
	if !ok {
		return 0, fmt.Errorf("unsupported currency: %s", currency)
	}
	return rate, nil
}

// Normalize upper-cases and trims a currency code.
func Normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// Codes lists the supported currency codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(ratesPerUSD))
	for c := range ratesPerUSD {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
