package store

import (
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/timeutil"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var pinHash string
	var lastDay timeutil.NullTime

	err := scanner.Scan(
		&u.ID, &u.Name, &u.Email, &pinHash,
		&u.CoinBalance, &u.LifetimeCoins, &u.LifetimeCashEarned,
		&u.TasksCompleted, &u.RewardsClaimed, &u.CurrentStreak, &lastDay,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.HasPIN = pinHash != ""
	u.LastCompletionDay = lastDay.Ptr()
	return &u, nil
}

const userCols = `id, name, email, pin_hash, coin_balance, lifetime_coins, lifetime_cash_earned, tasks_completed, rewards_claimed, current_streak, last_completion_day, created_at, updated_at`

func (s *UserStore) Create(name, email string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (name, email) VALUES (?, ?)`,
		name, email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListByHousehold(householdID int64) ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT `+userCols+` FROM users
		 WHERE id IN (SELECT user_id FROM household_members WHERE household_id = ?)
		 ORDER BY name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list users by household: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// SetPIN hashes and stores the user's PIN.
func (s *UserStore) SetPIN(id int64, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash pin: %w", err)
	}
	_, err = s.db.Exec(`UPDATE users SET pin_hash = ?, updated_at = ? WHERE id = ?`,
		string(hash), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

// VerifyPIN checks the PIN against the stored hash.
func (s *UserStore) VerifyPIN(id int64, pin string) (bool, error) {
	var hash string
	err := s.db.QueryRow(`SELECT pin_hash FROM users WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get pin hash: %w", err)
	}
	if hash == "" {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil, nil
}

// Balance returns just the user's current coin balance.
func (s *UserStore) Balance(id int64) (int, error) {
	var balance int
	err := s.db.QueryRow(`SELECT coin_balance FROM users WHERE id = ?`, id).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// DeductCoins applies a missed-task penalty, clamping the balance at zero.
func (s *UserStore) DeductCoins(userID int64, coins int) error {
	res, err := s.db.Exec(
		`UPDATE users SET coin_balance = MAX(0, coin_balance - ?), updated_at = ? WHERE id = ?`,
		coins, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("deduct coins: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// creditCoins adds coins to the balance and lifetime counter and bumps the
// completed-task stats, all in one statement so the mutation is atomic.
// Runs inside the caller's transaction.
func creditCoins(tx *sql.Tx, userID int64, coins int, completedAt time.Time) error {
	// The day column holds a canonical YYYY-MM-DD string so the streak
	// comparison is plain equality, immune to driver time formatting.
	day := timeutil.StartOfDay(completedAt.UTC()).Format("2006-01-02")
	prevDay := timeutil.StartOfDay(completedAt.UTC()).AddDate(0, 0, -1).Format("2006-01-02")
	res, err := tx.Exec(
		`UPDATE users SET
			coin_balance = coin_balance + ?,
			lifetime_coins = lifetime_coins + ?,
			tasks_completed = tasks_completed + 1,
			current_streak = CASE
				WHEN last_completion_day IS NULL THEN 1
				WHEN last_completion_day = ? THEN current_streak
				WHEN last_completion_day = ? THEN current_streak + 1
				ELSE 1
			END,
			last_completion_day = ?,
			updated_at = ?
		 WHERE id = ?`,
		coins, coins, day, prevDay, day, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("credit coins: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// debitCoins removes coins from the balance, clamping at zero. Cash is
// credited to the lifetime cash-equivalent counter when the debit stems from
// a monetary reward. Runs inside the caller's transaction.
func debitCoins(tx *sql.Tx, userID int64, coins int, cash float64, countClaim bool) error {
	claimed := 0
	if countClaim {
		claimed = 1
	}
	res, err := tx.Exec(
		`UPDATE users SET
			coin_balance = MAX(0, coin_balance - ?),
			lifetime_cash_earned = lifetime_cash_earned + ?,
			rewards_claimed = rewards_claimed + ?,
			updated_at = ?
		 WHERE id = ?`,
		coins, cash, claimed, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("debit coins: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
