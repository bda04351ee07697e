package model

import "time"

// DeductionPolicy is a household's missed-chore penalty configuration,
// consumed read-only by the deduction sweep.
type DeductionPolicy struct {
	Enabled          bool `json:"enabled"`
	DeductionCoins   int  `json:"deduction_coins"`
	GracePeriodHours int  `json:"grace_period_hours"`
}

type Household struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Policy    DeductionPolicy `json:"deduction_policy"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

type HouseholdMember struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      int64     `json:"user_id"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// Invite is a join token for a household, redeemable once before expiry.
type Invite struct {
	ID          int64      `json:"id"`
	Token       string     `json:"token"`
	HouseholdID int64      `json:"household_id"`
	Role        string     `json:"role"`
	ExpiresAt   time.Time  `json:"expires_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
