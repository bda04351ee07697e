package store

import (
	"errors"
	"testing"
	"time"

	"github.com/mhollis/chorecoin/internal/database"
	"github.com/mhollis/chorecoin/internal/model"
)

func setupUserTestDB(t *testing.T) (*UserStore, *CompletionStore, *TaskStore, *HouseholdStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUserStore(db), NewCompletionStore(db), NewTaskStore(db), NewHouseholdStore(db)
}

func TestUserCreateAndLookup(t *testing.T) {
	us, _, _, _ := setupUserTestDB(t)

	u, err := us.Create("Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.Name != "Sam" {
		t.Errorf("name = %q, want Sam", u.Name)
	}
	if u.CoinBalance != 0 {
		t.Errorf("coin_balance = %d, want 0", u.CoinBalance)
	}
	if u.HasPIN {
		t.Error("new user should not have a PIN")
	}

	got, err := us.GetByEmail("sam@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Errorf("get by email = %+v, want id %d", got, u.ID)
	}

	missing, err := us.GetByEmail("nobody@example.com")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown email")
	}
}

func TestUserPIN(t *testing.T) {
	us, _, _, _ := setupUserTestDB(t)

	u, err := us.Create("Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	ok, err := us.VerifyPIN(u.ID, "1234")
	if err != nil {
		t.Fatalf("verify without pin: %v", err)
	}
	if ok {
		t.Error("verify should fail when no PIN is set")
	}

	if err := us.SetPIN(u.ID, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	got, _ := us.GetByID(u.ID)
	if !got.HasPIN {
		t.Error("has_pin not reflected after SetPIN")
	}

	ok, _ = us.VerifyPIN(u.ID, "1234")
	if !ok {
		t.Error("correct PIN rejected")
	}
	ok, _ = us.VerifyPIN(u.ID, "9999")
	if ok {
		t.Error("wrong PIN accepted")
	}
}

func TestDeductCoinsClampsAtZero(t *testing.T) {
	us, _, _, _ := setupUserTestDB(t)

	u, err := us.Create("Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.db.Exec(`UPDATE users SET coin_balance = 3 WHERE id = ?`, u.ID); err != nil {
		t.Fatalf("fund: %v", err)
	}

	if err := us.DeductCoins(u.ID, 10); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	balance, _ := us.Balance(u.ID)
	if balance != 0 {
		t.Errorf("balance = %d, want clamped 0", balance)
	}

	if err := us.DeductCoins(9999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("deduct missing user err = %v, want ErrNotFound", err)
	}
}

func TestBalanceMissingUser(t *testing.T) {
	us, _, _, _ := setupUserTestDB(t)

	if _, err := us.Balance(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// Streak bookkeeping rides on completion approval: consecutive-day
// completions extend the streak, same-day repeats hold it, and a gap resets.
func TestStreakAcrossApprovals(t *testing.T) {
	us, cs, ts, hs := setupUserTestDB(t)

	house, err := hs.Create("Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	u, err := us.Create("Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	task, err := ts.Create(&model.Task{
		HouseholdID: house.ID, Title: "Dishes", CoinReward: 1, Frequency: model.FreqDaily,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	approveOn := func(day time.Time) {
		t.Helper()
		c, err := cs.Create(task.ID, u.ID, 1, "", "", "", day)
		if err != nil {
			t.Fatalf("create completion: %v", err)
		}
		if _, err := cs.Approve(c.ID, u.ID); err != nil {
			t.Fatalf("approve: %v", err)
		}
	}
	streak := func() int {
		t.Helper()
		got, err := us.GetByID(u.ID)
		if err != nil {
			t.Fatalf("get user: %v", err)
		}
		return got.CurrentStreak
	}

	day1 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	approveOn(day1)
	if s := streak(); s != 1 {
		t.Errorf("streak after first day = %d, want 1", s)
	}

	approveOn(day1.Add(4 * time.Hour)) // same day
	if s := streak(); s != 1 {
		t.Errorf("streak after same-day repeat = %d, want 1", s)
	}

	approveOn(day1.AddDate(0, 0, 1))
	if s := streak(); s != 2 {
		t.Errorf("streak after consecutive day = %d, want 2", s)
	}

	approveOn(day1.AddDate(0, 0, 5)) // gap
	if s := streak(); s != 1 {
		t.Errorf("streak after gap = %d, want reset to 1", s)
	}
}
