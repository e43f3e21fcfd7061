package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a tipping account. Bankroll is virtual currency and is mutated only
// inside the money transactions (bet placement, settlement, deposits, round
// bonuses), never by a bare update.
type User struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Bankroll  decimal.Decimal `json:"bankroll"`
	Active    bool            `json:"active"`
	IsBot     bool            `json:"is_bot"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
