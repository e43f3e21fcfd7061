package postgres

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NUMERIC columns are selected with a ::text cast and parsed here, keeping
// exact decimal values end to end with no float conversion.

func parseNumeric(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullNumeric(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseNumeric(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
