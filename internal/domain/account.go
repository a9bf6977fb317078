package domain

import (
	"github.com/shopspring/decimal"
)

// StartingBalance is credited to every account at registration.
var StartingBalance = decimal.RequireFromString("1000.0")

// Account is a user record together with its balance. The users table is the
// account store; nothing outside the transfer engine mutates Balance.
type Account struct {
	ID             int64           `db:"id"`
	Username       string          `db:"username"`
	HashedPassword string          `db:"hashed_password"`
	Email          string          `db:"email"`
	Balance        decimal.Decimal `db:"balance"`
}

func (a *Account) CanDebit(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
