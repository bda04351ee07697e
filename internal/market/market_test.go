package market

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"

	"github.com/mhollis/chorecoin/internal/database"
	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

type fixture struct {
	db      *sql.DB
	svc     *Service
	rewards *store.RewardStore
	users   *store.UserStore
	admin   *model.User
	member  *model.User
	house   *model.Household
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rewards := store.NewRewardStore(db)
	requests := store.NewRequestStore(db)
	users := store.NewUserStore(db)
	households := store.NewHouseholdStore(db)

	house, err := households.Create("Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	admin, err := users.Create("Alex", "alex@example.com")
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	member, err := users.Create("Sam", "sam@example.com")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}

	return &fixture{
		db:      db,
		svc:     NewService(rewards, requests, users, slog.Default()),
		rewards: rewards,
		users:   users,
		admin:   admin,
		member:  member,
		house:   house,
	}
}

func (f *fixture) fund(t *testing.T, userID int64, coins int) {
	t.Helper()
	if _, err := f.db.Exec(`UPDATE users SET coin_balance = ? WHERE id = ?`, coins, userID); err != nil {
		t.Fatalf("fund user: %v", err)
	}
}

func (f *fixture) createReward(t *testing.T, r *model.Reward) *model.Reward {
	t.Helper()
	r.HouseholdID = f.house.ID
	r.Active = true
	created, isNew, err := f.svc.CreateReward(r)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if !isNew {
		t.Fatalf("expected a new reward for %q", r.Title)
	}
	return created
}

func TestCreateRewardValidation(t *testing.T) {
	f := setup(t)

	cases := []struct {
		name   string
		reward model.Reward
		want   error
	}{
		{"empty title", model.Reward{HouseholdID: f.house.ID, Title: "  ", CoinCost: 5}, ErrTitleRequired},
		{"zero cost", model.Reward{HouseholdID: f.house.ID, Title: "Movie", CoinCost: 0}, ErrCostNotPositive},
		{"money without cash value", model.Reward{HouseholdID: f.house.ID, Title: "$5", Category: model.CategoryMoney, CoinCost: 50}, ErrCashValueRequired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := f.svc.CreateReward(&tc.reward); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateRewardIdempotentByTitleCategory(t *testing.T) {
	f := setup(t)

	first := f.createReward(t, &model.Reward{Title: "Ice cream", Category: "treat", CoinCost: 10})

	dup, isNew, err := f.svc.CreateReward(&model.Reward{
		HouseholdID: f.house.ID, Title: "  Ice cream  ", Category: "treat", CoinCost: 99, Active: true,
	})
	if err != nil {
		t.Fatalf("duplicate create: %v", err)
	}
	if isNew {
		t.Error("expected fold into existing reward, got new row")
	}
	if dup.ID != first.ID {
		t.Errorf("id = %d, want %d", dup.ID, first.ID)
	}
	if dup.CoinCost != 10 {
		t.Errorf("coin_cost = %d, want original 10", dup.CoinCost)
	}
	if dup.RequestCount != first.RequestCount+1 {
		t.Errorf("request_count = %d, want %d", dup.RequestCount, first.RequestCount+1)
	}

	all, err := f.rewards.ListByHousehold(f.house.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("reward rows = %d, want 1", len(all))
	}
}

func TestRequestPreconditionOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Movie night", CoinCost: 10, RequiresApproval: true})

	// Balance is checked first: an underfunded user with a would-be
	// duplicate still sees the balance error.
	f.fund(t, f.member.ID, 3)
	if _, err := f.svc.Request(ctx, f.member.ID, reward.ID); !errors.Is(err, ErrInsufficientCoins) {
		t.Fatalf("err = %v, want ErrInsufficientCoins", err)
	}

	f.fund(t, f.member.ID, 50)
	if _, err := f.svc.Request(ctx, f.member.ID, reward.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Request(ctx, f.member.ID, reward.ID); !errors.Is(err, ErrDuplicatePending) {
		t.Fatalf("err = %v, want ErrDuplicatePending", err)
	}
}

func TestRequestScarcityAndCooldown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	max := 1
	scarce := f.createReward(t, &model.Reward{Title: "Concert", CoinCost: 5, MaxRedemptions: &max, RequiresApproval: true})

	f.fund(t, f.member.ID, 100)
	f.fund(t, f.admin.ID, 100)

	req, err := f.svc.Request(ctx, f.member.ID, scarce.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Approve(ctx, req.ID, f.admin.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// At the cap the reward deactivates, and the next attempt reads as a
	// scarcity failure rather than a generic inactive one.
	got, _ := f.rewards.GetByID(scarce.ID)
	if got.Active {
		t.Error("reward still active at redemption cap")
	}
	if got.CurrentRedemptions != 1 {
		t.Errorf("current_redemptions = %d, want 1", got.CurrentRedemptions)
	}
	if _, err := f.svc.Request(ctx, f.admin.ID, scarce.ID); !errors.Is(err, ErrRewardExhausted) {
		t.Errorf("err = %v, want ErrRewardExhausted", err)
	}

	// Auto-approval stamps the cooldown anchor, which then blocks the
	// whole household until it lapses.
	cooled := f.createReward(t, &model.Reward{Title: "Sleepover", CoinCost: 5, CooldownHours: 24})
	if _, err := f.svc.Request(ctx, f.member.ID, cooled.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Request(ctx, f.admin.ID, cooled.ID); !errors.Is(err, ErrCooldownActive) {
		t.Errorf("err = %v, want ErrCooldownActive", err)
	}
}

func TestAutoApproval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Extra screen time", CoinCost: 5, RequiresApproval: false})

	f.fund(t, f.member.ID, 20)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != model.RequestApproved {
		t.Errorf("status = %q, want approved", req.Status)
	}

	balance, _ := f.users.Balance(f.member.ID)
	if balance != 15 {
		t.Errorf("balance = %d, want 15", balance)
	}
	got, _ := f.rewards.GetByID(reward.ID)
	if got.CurrentRedemptions != 1 {
		t.Errorf("current_redemptions = %d, want 1", got.CurrentRedemptions)
	}
}

func TestApproveIsExactlyOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Pizza", CoinCost: 10, RequiresApproval: true})

	f.fund(t, f.member.ID, 25)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != model.RequestPending {
		t.Fatalf("status = %q, want pending", req.Status)
	}

	if _, err := f.svc.Approve(ctx, req.ID, f.admin.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.Approve(ctx, req.ID, f.admin.ID); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("second approve err = %v, want ErrAlreadyResolved", err)
	}

	balance, _ := f.users.Balance(f.member.ID)
	if balance != 15 {
		t.Errorf("balance = %d, want a single 10-coin debit leaving 15", balance)
	}
	got, _ := f.rewards.GetByID(reward.ID)
	if got.CurrentRedemptions != 1 {
		t.Errorf("current_redemptions = %d, want 1", got.CurrentRedemptions)
	}
}

func TestDenyHasNoBalanceEffect(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Toy", CoinCost: 10, RequiresApproval: true})

	f.fund(t, f.member.ID, 25)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	denied, err := f.svc.Deny(req.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if denied.Status != model.RequestDenied {
		t.Errorf("status = %q, want denied", denied.Status)
	}

	balance, _ := f.users.Balance(f.member.ID)
	if balance != 25 {
		t.Errorf("balance = %d, want untouched 25", balance)
	}
	got, _ := f.rewards.GetByID(reward.ID)
	if got.CurrentRedemptions != 0 {
		t.Errorf("current_redemptions = %d, want 0", got.CurrentRedemptions)
	}
}

func TestDeniedRequestDoesNotStartCooldown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Late bedtime", CoinCost: 5, CooldownHours: 24, RequiresApproval: true})

	f.fund(t, f.member.ID, 20)
	f.fund(t, f.admin.ID, 20)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Deny(req.ID, f.admin.ID); err != nil {
		t.Fatalf("deny: %v", err)
	}

	// Only an approval anchors the cooldown; a denied request leaves the
	// reward immediately requestable.
	if _, err := f.svc.Request(ctx, f.admin.ID, reward.ID); err != nil {
		t.Errorf("request after denial: %v, want nil", err)
	}
}

func TestMoneyRewardCreditsCash(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{
		Title: "Five dollars", Category: model.CategoryMoney,
		CoinCost: 50, CashValue: 5.0, RequiresApproval: true,
	})

	f.fund(t, f.member.ID, 60)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Approve(ctx, req.ID, f.admin.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	user, _ := f.users.GetByID(f.member.ID)
	if user.CoinBalance != 10 {
		t.Errorf("balance = %d, want 10", user.CoinBalance)
	}
	if user.LifetimeCashEarned != 5.0 {
		t.Errorf("lifetime_cash_earned = %v, want 5.0", user.LifetimeCashEarned)
	}
	if user.RewardsClaimed != 1 {
		t.Errorf("rewards_claimed = %d, want 1", user.RewardsClaimed)
	}
}

func TestSnapshotSurvivesRewardDeletion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Book", CoinCost: 10, RequiresApproval: true})

	f.fund(t, f.member.ID, 30)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := f.rewards.Delete(reward.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}

	approved, err := f.svc.Approve(ctx, req.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("approve after delete: %v", err)
	}
	if approved.RewardTitle != "Book" {
		t.Errorf("reward_title = %q, want snapshotted %q", approved.RewardTitle, "Book")
	}
	balance, _ := f.users.Balance(f.member.ID)
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}
}

func TestFulfillRequiresApprovedState(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	reward := f.createReward(t, &model.Reward{Title: "Lego set", CoinCost: 10, RequiresApproval: true})

	f.fund(t, f.member.ID, 30)

	req, err := f.svc.Request(ctx, f.member.ID, reward.ID)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.Fulfill(req.ID, f.admin.ID); !errors.Is(err, store.ErrAlreadyResolved) {
		t.Fatalf("fulfill pending err = %v, want ErrAlreadyResolved", err)
	}

	if _, err := f.svc.Approve(ctx, req.ID, f.admin.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	fulfilled, err := f.svc.Fulfill(req.ID, f.admin.ID)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if fulfilled.Status != model.RequestFulfilled {
		t.Errorf("status = %q, want fulfilled", fulfilled.Status)
	}
}
