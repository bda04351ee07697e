package model

import "time"

// CategoryMoney marks rewards whose redemption carries a cash-equivalent
// value credited to the user's lifetime cash-earned counter.
const CategoryMoney = "money"

type Reward struct {
	ID          int64   `json:"id"`
	HouseholdID int64   `json:"household_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	CoinCost    int     `json:"coin_cost"`
	CashValue   float64 `json:"cash_value,omitempty"`
	Active      bool    `json:"active"`

	// Scarcity: MaxRedemptions == nil means unlimited. The reward
	// deactivates the moment CurrentRedemptions reaches the cap.
	MaxRedemptions     *int `json:"max_redemptions,omitempty"`
	CurrentRedemptions int  `json:"current_redemptions"`

	CooldownHours   int        `json:"cooldown_hours,omitempty"`
	LastRequestedAt *time.Time `json:"last_requested_at,omitempty"`

	RequiresApproval bool `json:"requires_approval"`
	RequestCount     int  `json:"request_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Exhausted reports whether the redemption limit has been reached.
func (r *Reward) Exhausted() bool {
	return r.MaxRedemptions != nil && r.CurrentRedemptions >= *r.MaxRedemptions
}

// RequestStatus is a reward request ledger entry's state.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestDenied    RequestStatus = "denied"
	RequestFulfilled RequestStatus = "fulfilled"
)

// requestTransitions mirrors the completion table, with one extra arc:
// approved requests may be marked fulfilled as a delivery acknowledgement.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestPending:  {RequestApproved, RequestDenied},
	RequestApproved: {RequestFulfilled},
}

func (s RequestStatus) CanTransition(next RequestStatus) bool {
	for _, t := range requestTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// RewardRequest is a user's claim on a reward. Reward fields are snapshotted
// at request time so the entry survives later reward edits or deletion.
type RewardRequest struct {
	ID          int64         `json:"id"`
	RewardID    int64         `json:"reward_id"`
	RequestedBy int64         `json:"requested_by"`
	HouseholdID int64         `json:"household_id"`
	Status      RequestStatus `json:"status"`

	CoinCost          int     `json:"coin_cost"`
	RewardTitle       string  `json:"reward_title"`
	RewardDescription string  `json:"reward_description"`
	RewardCategory    string  `json:"reward_category"`
	CashValue         float64 `json:"cash_value,omitempty"`

	RequestedAt time.Time  `json:"requested_at"`
	ProcessedBy *int64     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
