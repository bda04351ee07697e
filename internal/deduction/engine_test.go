package deduction

import (
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/mhollis/chorecoin/internal/database"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

type fixture struct {
	db     *sql.DB
	engine *Engine
	tasks  *store.TaskStore
	users  *store.UserStore
	houses *store.HouseholdStore
	house  *model.Household
	user   *model.User
}

func setup(t *testing.T, policy model.DeductionPolicy) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tasks := store.NewTaskStore(db)
	users := store.NewUserStore(db)
	houses := store.NewHouseholdStore(db)

	house, err := houses.Create("Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if err := houses.SetPolicy(house.ID, policy); err != nil {
		t.Fatalf("set policy: %v", err)
	}
	user, err := users.Create("Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	return &fixture{
		db:     db,
		engine: NewEngine(houses, tasks, users, slog.Default()),
		tasks:  tasks,
		users:  users,
		houses: houses,
		house:  house,
		user:   user,
	}
}

func (f *fixture) fund(t *testing.T, userID int64, coins int) {
	t.Helper()
	if _, err := f.db.Exec(`UPDATE users SET coin_balance = ? WHERE id = ?`, coins, userID); err != nil {
		t.Fatalf("fund user: %v", err)
	}
}

func (f *fixture) createOverdueTask(t *testing.T, due time.Time, assignees ...int64) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(&model.Task{
		HouseholdID: f.house.ID,
		Title:       "Take out trash",
		CoinReward:  5,
		Frequency:   model.FreqDaily,
		AssignedTo:  assignees,
		NextDueDate: &due,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestSweepSkipsDisabledPolicy(t *testing.T) {
	f := setup(t, model.DeductionPolicy{Enabled: false, DeductionCoins: 5})
	now := time.Now().UTC()
	f.fund(t, f.user.ID, 10)
	f.createOverdueTask(t, now.Add(-48*time.Hour), f.user.ID)

	result, err := f.engine.ProcessMissed(f.house.ID)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0", result.Processed)
	}
	balance, _ := f.users.Balance(f.user.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want untouched 10", balance)
	}
}

func TestSweepDeductsAndClampsAtZero(t *testing.T) {
	f := setup(t, model.DeductionPolicy{Enabled: true, DeductionCoins: 5, GracePeriodHours: 1})
	now := time.Now().UTC()

	rich, err := f.users.Create("Alex", "alex@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	f.fund(t, f.user.ID, 3)
	f.fund(t, rich.ID, 10)
	f.createOverdueTask(t, now.Add(-24*time.Hour), f.user.ID, rich.ID)

	result, err := f.engine.sweep(f.house.ID, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
	if result.Err != nil {
		t.Errorf("unexpected failures: %v", result.Err)
	}

	balance, _ := f.users.Balance(f.user.ID)
	if balance != 0 {
		t.Errorf("balance = %d, want clamped 0", balance)
	}
	balance, _ = f.users.Balance(rich.ID)
	if balance != 5 {
		t.Errorf("balance = %d, want 5", balance)
	}
}

func TestSweepHonorsGracePeriod(t *testing.T) {
	f := setup(t, model.DeductionPolicy{Enabled: true, DeductionCoins: 5, GracePeriodHours: 24})
	now := time.Now().UTC()
	f.fund(t, f.user.ID, 10)
	f.createOverdueTask(t, now.Add(-6*time.Hour), f.user.ID)

	result, err := f.engine.sweep(f.house.ID, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0 inside grace period", result.Processed)
	}
	balance, _ := f.users.Balance(f.user.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want untouched 10", balance)
	}
}

func TestSweepDeductsAtMostOncePerOccurrence(t *testing.T) {
	f := setup(t, model.DeductionPolicy{Enabled: true, DeductionCoins: 5, GracePeriodHours: 1})
	now := time.Now().UTC()
	f.fund(t, f.user.ID, 20)
	task := f.createOverdueTask(t, now.Add(-24*time.Hour), f.user.ID)

	first, err := f.engine.sweep(f.house.ID, now)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if first.Processed != 1 {
		t.Fatalf("first processed = %d, want 1", first.Processed)
	}

	second, err := f.engine.sweep(f.house.ID, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if second.Processed != 0 {
		t.Errorf("second processed = %d, want 0", second.Processed)
	}
	balance, _ := f.users.Balance(f.user.ID)
	if balance != 15 {
		t.Errorf("balance = %d, want a single deduction leaving 15", balance)
	}

	// A fresh occurrence after the stamp is penalized again.
	newDue := now.Add(time.Hour)
	if _, err := f.db.Exec(`UPDATE tasks SET next_due_date = ? WHERE id = ?`, newDue, task.ID); err != nil {
		t.Fatalf("advance due date: %v", err)
	}
	third, err := f.engine.sweep(f.house.ID, newDue.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("third sweep: %v", err)
	}
	if third.Processed != 1 {
		t.Errorf("third processed = %d, want 1", third.Processed)
	}
	balance, _ = f.users.Balance(f.user.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want 10", balance)
	}
}

func TestSweepIgnoresOpenTasks(t *testing.T) {
	f := setup(t, model.DeductionPolicy{Enabled: true, DeductionCoins: 5, GracePeriodHours: 1})
	now := time.Now().UTC()
	f.fund(t, f.user.ID, 10)

	due := now.Add(-24 * time.Hour)
	// Anyone-can-do tasks carry no individual accountability.
	if _, err := f.tasks.Create(&model.Task{
		HouseholdID: f.house.ID, Title: "Tidy up", CoinReward: 2,
		Frequency: model.FreqDaily, AnyoneCanDo: true, NextDueDate: &due,
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	result, err := f.engine.sweep(f.house.ID, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Processed != 0 {
		t.Errorf("processed = %d, want 0", result.Processed)
	}
	balance, _ := f.users.Balance(f.user.ID)
	if balance != 10 {
		t.Errorf("balance = %d, want untouched 10", balance)
	}
}

func TestSweepPartialFailureContinues(t *testing.T) {
	f := setup(t, model.DeductionPolicy{Enabled: true, DeductionCoins: 5, GracePeriodHours: 1})
	now := time.Now().UTC()
	f.fund(t, f.user.ID, 10)
	task := f.createOverdueTask(t, now.Add(-24*time.Hour), f.user.ID)

	// Plant an assignee row pointing at a user that no longer exists, so
	// one deduction in the task fails while the other succeeds.
	if _, err := f.db.Exec(`PRAGMA foreign_keys = OFF`); err != nil {
		t.Fatalf("disable fks: %v", err)
	}
	if _, err := f.db.Exec(`INSERT INTO task_assignees (task_id, user_id) VALUES (?, 9999)`, task.ID); err != nil {
		t.Fatalf("insert orphan assignee: %v", err)
	}

	result, err := f.engine.sweep(f.house.ID, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Processed != 1 {
		t.Errorf("processed = %d, want 1", result.Processed)
	}
	if len(result.Errors()) != 1 {
		t.Fatalf("failures = %d, want 1: %v", len(result.Errors()), result.Err)
	}

	balance, _ := f.users.Balance(f.user.ID)
	if balance != 5 {
		t.Errorf("balance = %d, want 5 despite sibling failure", balance)
	}
}
