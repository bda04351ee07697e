package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

const inviteTTL = 7 * 24 * time.Hour

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(scanner interface{ Scan(...any) error }) (*model.Household, error) {
	var h model.Household
	var enabled int

	err := scanner.Scan(
		&h.ID, &h.Name, &enabled, &h.Policy.DeductionCoins, &h.Policy.GracePeriodHours,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Policy.Enabled = enabled != 0
	return &h, nil
}

const householdCols = `id, name, deduction_enabled, deduction_coins, grace_period_hours, created_at, updated_at`

func (s *HouseholdStore) Create(name string) (*model.Household, error) {
	result, err := s.db.Exec(`INSERT INTO households (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HouseholdStore) GetByID(id int64) (*model.Household, error) {
	row := s.db.QueryRow(`SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

// ListIDs returns every household id, the sweep scheduler's work list.
func (s *HouseholdStore) ListIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM households ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list household ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetPolicy updates the household's missed-chore deduction policy.
func (s *HouseholdStore) SetPolicy(id int64, p model.DeductionPolicy) error {
	enabled := 0
	if p.Enabled {
		enabled = 1
	}
	res, err := s.db.Exec(
		`UPDATE households SET deduction_enabled = ?, deduction_coins = ?, grace_period_hours = ?, updated_at = ? WHERE id = ?`,
		enabled, p.DeductionCoins, p.GracePeriodHours, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set policy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Membership ---

func (s *HouseholdStore) AddMember(householdID, userID int64, role string) (*model.HouseholdMember, error) {
	result, err := s.db.Exec(
		`INSERT INTO household_members (household_id, user_id, role) VALUES (?, ?, ?)`,
		householdID, userID, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(
		`SELECT id, household_id, user_id, role, created_at FROM household_members WHERE id = ?`, id)
	var m model.HouseholdMember
	if err := row.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

func (s *HouseholdStore) GetMember(householdID, userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT id, household_id, user_id, role, created_at FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID,
	)
	var m model.HouseholdMember
	err := row.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

// FirstMembership returns the user's oldest household membership, which is
// the household a fresh login lands in.
func (s *HouseholdStore) FirstMembership(userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT id, household_id, user_id, role, created_at FROM household_members WHERE user_id = ? ORDER BY id LIMIT 1`,
		userID,
	)
	var m model.HouseholdMember
	err := row.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first membership: %w", err)
	}
	return &m, nil
}

func (s *HouseholdStore) ListMembers(householdID int64) ([]model.HouseholdMember, error) {
	rows, err := s.db.Query(
		`SELECT id, household_id, user_id, role, created_at FROM household_members WHERE household_id = ? ORDER BY id`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.HouseholdMember
	for rows.Next() {
		var m model.HouseholdMember
		if err := rows.Scan(&m.ID, &m.HouseholdID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// --- Invites ---

// CreateInvite issues a uuid join token for the household, valid for a week.
func (s *HouseholdStore) CreateInvite(householdID int64, role string) (*model.Invite, error) {
	token := uuid.NewString()
	expires := time.Now().UTC().Add(inviteTTL)

	result, err := s.db.Exec(
		`INSERT INTO invites (token, household_id, role, expires_at) VALUES (?, ?, ?, ?)`,
		token, householdID, role, expires,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invite: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.getInvite(id)
}

func (s *HouseholdStore) getInvite(id int64) (*model.Invite, error) {
	row := s.db.QueryRow(
		`SELECT id, token, household_id, role, expires_at, used_at, created_at FROM invites WHERE id = ?`, id)
	return scanInvite(row)
}

func scanInvite(scanner interface{ Scan(...any) error }) (*model.Invite, error) {
	var inv model.Invite
	var usedAt timeutil.NullTime
	err := scanner.Scan(&inv.ID, &inv.Token, &inv.HouseholdID, &inv.Role, &inv.ExpiresAt, &usedAt, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	inv.UsedAt = usedAt.Ptr()
	return &inv, nil
}

// RedeemInvite consumes an unused, unexpired invite and adds the user to its
// household. The used_at guard makes redemption single-shot.
func (s *HouseholdStore) RedeemInvite(token string, userID int64) (*model.HouseholdMember, error) {
	row := s.db.QueryRow(
		`SELECT id, token, household_id, role, expires_at, used_at, created_at FROM invites WHERE token = ?`, token)
	inv, err := scanInvite(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	if inv.UsedAt != nil || time.Now().UTC().After(inv.ExpiresAt) {
		return nil, ErrConflict
	}

	res, err := s.db.Exec(
		`UPDATE invites SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		time.Now().UTC(), inv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("consume invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrConflict
	}

	return s.AddMember(inv.HouseholdID, userID, inv.Role)
}
