package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

type RequestStore struct {
	db *sql.DB
}

func NewRequestStore(db *sql.DB) *RequestStore {
	return &RequestStore{db: db}
}

func scanRequest(scanner interface{ Scan(...any) error }) (*model.RewardRequest, error) {
	var r model.RewardRequest
	var rewardID, processedBy sql.NullInt64
	var processedAt timeutil.NullTime

	err := scanner.Scan(
		&r.ID, &rewardID, &r.RequestedBy, &r.HouseholdID, &r.Status,
		&r.CoinCost, &r.RewardTitle, &r.RewardDescription, &r.RewardCategory, &r.CashValue,
		&r.RequestedAt, &processedBy, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	// reward_id nulls out when the reward is deleted; the snapshot fields
	// keep the entry meaningful.
	if rewardID.Valid {
		r.RewardID = rewardID.Int64
	}
	if processedBy.Valid {
		r.ProcessedBy = &processedBy.Int64
	}
	r.ProcessedAt = processedAt.Ptr()
	return &r, nil
}

const requestCols = `id, reward_id, requested_by, household_id, status, coin_cost, reward_title, reward_description, reward_category, cash_value, requested_at, processed_by, processed_at`

// Create records a pending request snapshotting the reward's fields.
func (s *RequestStore) Create(reward *model.Reward, userID int64, requestedAt time.Time) (*model.RewardRequest, error) {
	result, err := s.db.Exec(
		`INSERT INTO reward_requests (reward_id, requested_by, household_id, status, coin_cost, reward_title, reward_description, reward_category, cash_value, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reward.ID, userID, reward.HouseholdID, model.RequestPending,
		reward.CoinCost, reward.Title, reward.Description, reward.Category,
		reward.CashValue, requestedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RequestStore) GetByID(id int64) (*model.RewardRequest, error) {
	row := s.db.QueryRow(`SELECT `+requestCols+` FROM reward_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// HasPending reports whether the user already has an unresolved request for
// this reward.
func (s *RequestStore) HasPending(userID, rewardID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM reward_requests WHERE requested_by = ? AND reward_id = ? AND status = ?`,
		userID, rewardID, model.RequestPending,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count pending requests: %w", err)
	}
	return n > 0, nil
}

func (s *RequestStore) listWhere(where string, args ...any) ([]model.RewardRequest, error) {
	rows, err := s.db.Query(
		`SELECT `+requestCols+` FROM reward_requests `+where+` ORDER BY requested_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []model.RewardRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (s *RequestStore) ListByUser(userID int64) ([]model.RewardRequest, error) {
	return s.listWhere(`WHERE requested_by = ?`, userID)
}

func (s *RequestStore) ListByHousehold(householdID int64) ([]model.RewardRequest, error) {
	return s.listWhere(`WHERE household_id = ?`, householdID)
}

func (s *RequestStore) ListPendingByHousehold(householdID int64) ([]model.RewardRequest, error) {
	return s.listWhere(`WHERE household_id = ? AND status = ?`, householdID, model.RequestPending)
}

// Approve resolves a pending request and debits the requester in one
// transaction. cash is the cash-equivalent credited for monetary rewards,
// zero otherwise. The pending guard in the WHERE clause makes resolution
// exactly-once.
func (s *RequestStore) Approve(id int64, processorID int64, cash float64) (*model.RewardRequest, error) {
	r, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if !r.Status.CanTransition(model.RequestApproved) {
		return nil, ErrAlreadyResolved
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE reward_requests SET status = ?, processed_by = ?, processed_at = ? WHERE id = ? AND status = ?`,
		model.RequestApproved, processorID, time.Now().UTC(), id, model.RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("approve request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrAlreadyResolved
	}

	if err := debitCoins(tx, r.RequestedBy, r.CoinCost, cash, true); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// Deny resolves a pending request with no balance effect.
func (s *RequestStore) Deny(id, processorID int64) (*model.RewardRequest, error) {
	res, err := s.db.Exec(
		`UPDATE reward_requests SET status = ?, processed_by = ?, processed_at = ? WHERE id = ? AND status = ?`,
		model.RequestDenied, processorID, time.Now().UTC(), id, model.RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("deny request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r, getErr := s.GetByID(id)
		if getErr != nil {
			return nil, getErr
		}
		if r == nil {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyResolved
	}
	return s.GetByID(id)
}

// Fulfill marks an approved request as delivered. Tracking only; no ledger
// effect.
func (s *RequestStore) Fulfill(id, processorID int64) (*model.RewardRequest, error) {
	res, err := s.db.Exec(
		`UPDATE reward_requests SET status = ?, processed_by = ?, processed_at = ? WHERE id = ? AND status = ?`,
		model.RequestFulfilled, processorID, time.Now().UTC(), id, model.RequestApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("fulfill request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r, getErr := s.GetByID(id)
		if getErr != nil {
			return nil, getErr
		}
		if r == nil {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyResolved
	}
	return s.GetByID(id)
}
