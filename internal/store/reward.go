package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

type RewardStore struct {
	db *sql.DB
}

func NewRewardStore(db *sql.DB) *RewardStore {
	return &RewardStore{db: db}
}

func scanReward(scanner interface{ Scan(...any) error }) (*model.Reward, error) {
	var r model.Reward
	var active, requiresApproval int
	var maxRedemptions sql.NullInt64
	var lastRequested timeutil.NullTime

	err := scanner.Scan(
		&r.ID, &r.HouseholdID, &r.Title, &r.Description, &r.Category,
		&r.CoinCost, &r.CashValue, &active, &maxRedemptions, &r.CurrentRedemptions,
		&r.CooldownHours, &lastRequested, &requiresApproval, &r.RequestCount,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Active = active != 0
	r.RequiresApproval = requiresApproval != 0
	if maxRedemptions.Valid {
		m := int(maxRedemptions.Int64)
		r.MaxRedemptions = &m
	}
	r.LastRequestedAt = lastRequested.Ptr()
	return &r, nil
}

const rewardCols = `id, household_id, title, description, category, coin_cost, cash_value, active, max_redemptions, current_redemptions, cooldown_hours, last_requested_at, requires_approval, request_count, created_at, updated_at`

func (s *RewardStore) Create(r *model.Reward) (*model.Reward, error) {
	active := 0
	if r.Active {
		active = 1
	}
	approval := 0
	if r.RequiresApproval {
		approval = 1
	}
	var maxRed sql.NullInt64
	if r.MaxRedemptions != nil {
		maxRed = sql.NullInt64{Int64: int64(*r.MaxRedemptions), Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO rewards (household_id, title, description, category, coin_cost, cash_value, active, max_redemptions, cooldown_hours, requires_approval)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.HouseholdID, r.Title, r.Description, r.Category, r.CoinCost,
		r.CashValue, active, maxRed, r.CooldownHours, approval,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *RewardStore) GetByID(id int64) (*model.Reward, error) {
	row := s.db.QueryRow(`SELECT `+rewardCols+` FROM rewards WHERE id = ?`, id)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

// FindActiveByTitleCategory looks up the household's active reward matching
// title and category — the duplicate-creation guard's probe.
func (s *RewardStore) FindActiveByTitleCategory(householdID int64, title, category string) (*model.Reward, error) {
	row := s.db.QueryRow(
		`SELECT `+rewardCols+` FROM rewards WHERE household_id = ? AND title = ? AND category = ? AND active = 1 LIMIT 1`,
		householdID, title, category,
	)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) list(query string, args ...any) ([]model.Reward, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, *r)
	}
	return rewards, rows.Err()
}

// ListByHousehold returns all rewards, active first, then by title.
func (s *RewardStore) ListByHousehold(householdID int64) ([]model.Reward, error) {
	return s.list(`SELECT `+rewardCols+` FROM rewards WHERE household_id = ? ORDER BY active DESC, title ASC`, householdID)
}

func (s *RewardStore) ListActiveByHousehold(householdID int64) ([]model.Reward, error) {
	return s.list(`SELECT `+rewardCols+` FROM rewards WHERE household_id = ? AND active = 1 ORDER BY title ASC`, householdID)
}

func (s *RewardStore) Update(r *model.Reward) (*model.Reward, error) {
	active := 0
	if r.Active {
		active = 1
	}
	approval := 0
	if r.RequiresApproval {
		approval = 1
	}
	var maxRed sql.NullInt64
	if r.MaxRedemptions != nil {
		maxRed = sql.NullInt64{Int64: int64(*r.MaxRedemptions), Valid: true}
	}

	res, err := s.db.Exec(
		`UPDATE rewards SET title = ?, description = ?, category = ?, coin_cost = ?, cash_value = ?, active = ?, max_redemptions = ?, cooldown_hours = ?, requires_approval = ?, updated_at = ?
		 WHERE id = ?`,
		r.Title, r.Description, r.Category, r.CoinCost, r.CashValue, active,
		maxRed, r.CooldownHours, approval, time.Now().UTC(), r.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetByID(r.ID)
}

// IncrementPopularity bumps the request-count counter, used both when a
// duplicate creation folds into an existing reward and when a request lands.
func (s *RewardStore) IncrementPopularity(id int64) error {
	res, err := s.db.Exec(
		`UPDATE rewards SET request_count = request_count + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("increment popularity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRedemption advances the redemption counter from the observed value
// with a compare-and-swap, deactivating the reward in the same statement the
// instant the cap is reached. Returns ErrConflict when another request moved
// the counter first; callers re-read and retry.
func (s *RewardStore) RecordRedemption(id int64, observed int, now time.Time) error {
	res, err := s.db.Exec(
		`UPDATE rewards SET
			current_redemptions = current_redemptions + 1,
			active = CASE
				WHEN max_redemptions IS NOT NULL AND current_redemptions + 1 >= max_redemptions THEN 0
				ELSE active
			END,
			last_requested_at = ?,
			updated_at = ?
		 WHERE id = ? AND current_redemptions = ?
		   AND (max_redemptions IS NULL OR current_redemptions < max_redemptions)`,
		now.UTC(), time.Now().UTC(), id, observed,
	)
	if err != nil {
		return fmt.Errorf("record redemption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *RewardStore) Delete(id int64) error {
	res, err := s.db.Exec(`DELETE FROM rewards WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reward: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
