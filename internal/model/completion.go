package model

import "time"

// CompletionStatus is a completion ledger entry's state.
type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "pending"
	CompletionApproved CompletionStatus = "approved"
	CompletionRejected CompletionStatus = "rejected"
)

// completionTransitions is the closed transition table; anything not listed
// is rejected. Pending is the only non-terminal state.
var completionTransitions = map[CompletionStatus][]CompletionStatus{
	CompletionPending: {CompletionApproved, CompletionRejected},
}

// CanTransition reports whether moving from s to next is a legal transition.
func (s CompletionStatus) CanTransition(next CompletionStatus) bool {
	for _, t := range completionTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s CompletionStatus) Terminal() bool {
	return len(completionTransitions[s]) == 0
}

// Completion is one user's claim to have finished a task instance.
// CoinsPending snapshots the task's reward at submission time so later task
// edits cannot change what an in-flight claim is worth. CoinsAwarded stays 0
// until approval; after resolution exactly one of the two is meaningful.
type Completion struct {
	ID           int64            `json:"id"`
	TaskID       int64            `json:"task_id"`
	CompletedBy  int64            `json:"completed_by"`
	Status       CompletionStatus `json:"status"`
	CoinsPending int              `json:"coins_pending"`
	CoinsAwarded int              `json:"coins_awarded"`
	Notes        string           `json:"notes,omitempty"`
	PhotoBefore  string           `json:"photo_before,omitempty"`
	PhotoAfter   string           `json:"photo_after,omitempty"`

	SubmittedAt     time.Time  `json:"submitted_at"`
	ResolvedBy      *int64     `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}
