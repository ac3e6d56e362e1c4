// README: Common value objects shared across modules.
package types

// ID is an opaque entity identifier.
type ID string

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Money is an amount in the currency's minor unit (paise for INR).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

const DefaultCurrency = "INR"

func Paise(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}
