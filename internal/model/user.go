package model

import "time"

// User owns the coin balance. Every balance mutation is attributable to
// exactly one ledger event: a completion approval (credit), a reward request
// approval (debit), or a missed-task deduction (debit). The balance never
// goes negative; debits clamp at zero.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	HasPIN bool   `json:"has_pin"`

	CoinBalance        int        `json:"coin_balance"`
	LifetimeCoins      int        `json:"lifetime_coins"`
	LifetimeCashEarned float64    `json:"lifetime_cash_earned"`
	TasksCompleted     int        `json:"tasks_completed"`
	RewardsClaimed     int        `json:"rewards_claimed"`
	CurrentStreak      int        `json:"current_streak"`
	LastCompletionDay  *time.Time `json:"last_completion_day,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
