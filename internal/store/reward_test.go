package store

import (
	"errors"
	"testing"
	"time"

	"github.com/mhollis/chorecoin/internal/database"
	"github.com/mhollis/chorecoin/internal/model"
)

func setupRewardTestDB(t *testing.T) (*RewardStore, *model.Household) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h, err := NewHouseholdStore(db).Create("Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	return NewRewardStore(db), h
}

func TestRewardCRUD(t *testing.T) {
	rs, h := setupRewardTestDB(t)

	max := 3
	r, err := rs.Create(&model.Reward{
		HouseholdID:      h.ID,
		Title:            "Movie night",
		Category:         "activity",
		CoinCost:         25,
		Active:           true,
		MaxRedemptions:   &max,
		CooldownHours:    48,
		RequiresApproval: true,
	})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if r.MaxRedemptions == nil || *r.MaxRedemptions != 3 {
		t.Errorf("max_redemptions = %v, want 3", r.MaxRedemptions)
	}

	r.CoinCost = 30
	r.MaxRedemptions = nil
	updated, err := rs.Update(r)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CoinCost != 30 {
		t.Errorf("coin_cost = %d, want 30", updated.CoinCost)
	}
	if updated.MaxRedemptions != nil {
		t.Errorf("max_redemptions = %v, want unlimited", updated.MaxRedemptions)
	}

	active, err := rs.ListActiveByHousehold(h.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("active rewards = %d, want 1", len(active))
	}

	if err := rs.Delete(r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := rs.GetByID(r.ID)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted reward")
	}
}

func TestRecordRedemptionCAS(t *testing.T) {
	rs, h := setupRewardTestDB(t)

	max := 2
	r, err := rs.Create(&model.Reward{
		HouseholdID: h.ID, Title: "Concert", CoinCost: 10, Active: true, MaxRedemptions: &max,
	})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	now := time.Now().UTC()

	if err := rs.RecordRedemption(r.ID, 0, now); err != nil {
		t.Fatalf("first redemption: %v", err)
	}

	// A stale observed counter loses the swap.
	if err := rs.RecordRedemption(r.ID, 0, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale counter err = %v, want ErrConflict", err)
	}

	if err := rs.RecordRedemption(r.ID, 1, now); err != nil {
		t.Fatalf("second redemption: %v", err)
	}

	got, _ := rs.GetByID(r.ID)
	if got.CurrentRedemptions != 2 {
		t.Errorf("current_redemptions = %d, want 2", got.CurrentRedemptions)
	}
	if got.Active {
		t.Error("reward should deactivate at the cap")
	}

	// At the cap the guard blocks further counting regardless of observed.
	if err := rs.RecordRedemption(r.ID, 2, now); !errors.Is(err, ErrConflict) {
		t.Errorf("over-cap err = %v, want ErrConflict", err)
	}
}

func TestIncrementPopularity(t *testing.T) {
	rs, h := setupRewardTestDB(t)

	r, err := rs.Create(&model.Reward{HouseholdID: h.ID, Title: "Pizza", CoinCost: 10, Active: true})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if err := rs.IncrementPopularity(r.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	got, _ := rs.GetByID(r.ID)
	if got.RequestCount != r.RequestCount+1 {
		t.Errorf("request_count = %d, want %d", got.RequestCount, r.RequestCount+1)
	}
}
