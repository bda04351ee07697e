package store

import (
	"testing"

	"github.com/mhollis/chorecoin/internal/database"
	"github.com/mhollis/chorecoin/internal/model"
)

func setupPushTestDB(t *testing.T) (*PushStore, *HouseholdStore, *UserStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPushStore(db), NewHouseholdStore(db), NewUserStore(db)
}

func TestPushUpsertReplacesEndpoint(t *testing.T) {
	ps, hs, us := setupPushTestDB(t)

	h, _ := hs.Create("Test Household")
	u, _ := us.Create("Sam", "sam@example.com")

	if _, err := ps.Upsert(&model.PushSubscription{
		UserID: u.ID, HouseholdID: h.ID,
		Endpoint: "https://push.example/abc", P256dhKey: "p1", AuthKey: "a1",
		DeviceName: "phone",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	again, err := ps.Upsert(&model.PushSubscription{
		UserID: u.ID, HouseholdID: h.ID,
		Endpoint: "https://push.example/abc", P256dhKey: "p2", AuthKey: "a2",
		DeviceName: "phone",
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if again.P256dhKey != "p2" {
		t.Errorf("p256dh = %q, want refreshed p2", again.P256dhKey)
	}

	subs, err := ps.ListByUser(u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("subs = %d, want 1 after upsert", len(subs))
	}
}

func TestListAdminsByHousehold(t *testing.T) {
	ps, hs, us := setupPushTestDB(t)

	h, _ := hs.Create("Test Household")
	admin, _ := us.Create("Alex", "alex@example.com")
	member, _ := us.Create("Sam", "sam@example.com")
	if _, err := hs.AddMember(h.ID, admin.ID, model.RoleAdmin); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if _, err := hs.AddMember(h.ID, member.ID, model.RoleMember); err != nil {
		t.Fatalf("add member: %v", err)
	}

	for _, u := range []*model.User{admin, member} {
		if _, err := ps.Upsert(&model.PushSubscription{
			UserID: u.ID, HouseholdID: h.ID,
			Endpoint: "https://push.example/" + u.Email, P256dhKey: "p", AuthKey: "a",
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	subs, err := ps.ListAdminsByHousehold(h.ID)
	if err != nil {
		t.Fatalf("list admins: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != admin.ID {
		t.Errorf("admin subs = %+v, want only admin's", subs)
	}
}

func TestDeleteByEndpoint(t *testing.T) {
	ps, hs, us := setupPushTestDB(t)

	h, _ := hs.Create("Test Household")
	u, _ := us.Create("Sam", "sam@example.com")
	if _, err := ps.Upsert(&model.PushSubscription{
		UserID: u.ID, HouseholdID: h.ID,
		Endpoint: "https://push.example/gone", P256dhKey: "p", AuthKey: "a",
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := ps.DeleteByEndpoint("https://push.example/gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ := ps.ListByUser(u.ID)
	if len(subs) != 0 {
		t.Errorf("subs = %d, want 0", len(subs))
	}
}
