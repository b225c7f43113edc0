package viewas

import (
	"context"
	"errors"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"boq-portal.kz/internal/roles"
)

var (
	admin      = roles.Identity{UserID: 1, Role: roles.Admin, DisplayName: "Админ"}
	otherAdmin = roles.Identity{UserID: 7, Role: roles.Admin}
	buyer      = roles.Identity{UserID: 2, Role: roles.Buyer}
)

func newSessionContext(t *testing.T) (*scs.SessionManager, context.Context) {
	t.Helper()
	sm := scs.New()
	sm.Store = memstore.New()
	ctx, err := sm.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("session load: %v", err)
	}
	return sm, ctx
}

func TestSetRoleViewAdmin(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	if err := m.SetRoleView(ctx, admin, roles.ProjectManager, 0, "", nil); err != nil {
		t.Fatalf("SetRoleView: %v", err)
	}
	if !m.IsViewingAs(ctx, admin, roles.ProjectManager) {
		t.Error("expected viewing as projectManager")
	}
	if m.IsViewingAs(ctx, admin, roles.Buyer) {
		t.Error("not viewing as buyer")
	}
	if got := m.Effective(ctx, admin); got != roles.ProjectManager {
		t.Errorf("Effective = %q", got)
	}

	ov, ok := m.Current(ctx, admin)
	if !ok {
		t.Fatal("Current: no override")
	}
	if ov.RoleID != 6 || ov.RoleName != "Project Manager" || ov.OwnerID != admin.UserID {
		t.Errorf("override = %+v", ov)
	}
}

func TestSetRoleViewNonAdminIsNoop(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	err := m.SetRoleView(ctx, buyer, roles.Admin, 0, "", nil)
	if !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("err = %v, want ErrNotAdmin", err)
	}
	if sm.Exists(ctx, sessionKey) {
		t.Error("override persisted for non-admin")
	}
	if got := m.Effective(ctx, buyer); got != roles.Buyer {
		t.Errorf("Effective = %q", got)
	}
}

func TestNonAdminNeverViewsAs(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	if err := m.SetRoleView(ctx, admin, roles.Estimator, 0, "", nil); err != nil {
		t.Fatal(err)
	}
	// тот же браузер, но другой пользователь
	if m.IsViewingAs(ctx, buyer, roles.Estimator) {
		t.Error("non-admin must never be viewing as")
	}
	if got := m.Effective(ctx, buyer); got != roles.Buyer {
		t.Errorf("Effective for buyer = %q", got)
	}
	if got := m.Effective(ctx, otherAdmin); got != roles.Admin {
		t.Errorf("Effective for other admin = %q", got)
	}
}

func TestResetAndClear(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	if err := m.SetRoleView(ctx, admin, roles.Buyer, 8, "Buyer", nil); err != nil {
		t.Fatal(err)
	}
	m.ResetToAdminView(ctx)
	if m.IsViewingAs(ctx, admin, roles.Buyer) {
		t.Error("still viewing after reset")
	}
	if got := m.Effective(ctx, admin); got != roles.Admin {
		t.Errorf("Effective after reset = %q", got)
	}

	if err := m.SetRoleView(ctx, admin, roles.Accounts, 0, "", nil); err != nil {
		t.Fatal(err)
	}
	m.ClearViewContext(ctx)
	if _, ok := m.Current(ctx, admin); ok {
		t.Error("override survived ClearViewContext")
	}

	// повторный сброс без оверлея безопасен
	m.ResetToAdminView(ctx)
}

func TestViewAsAdminKeepsAdmin(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	if err := m.SetRoleView(ctx, admin, roles.Buyer, 0, "", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.SetRoleView(ctx, admin, roles.Admin, 0, "", nil); err != nil {
		t.Fatal(err)
	}
	if sm.Exists(ctx, sessionKey) {
		t.Error("override stored for admin role")
	}
	if m.IsViewingAs(ctx, admin, roles.Admin) {
		t.Error("IsViewingAs(admin) must be false")
	}
	if got := m.Effective(ctx, admin); got != roles.Admin {
		t.Errorf("Effective = %q", got)
	}
}

func TestStoredAdminOverlayIsNoPreview(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	sm.Put(ctx, sessionKey, `{"role":"admin","owner_id":1}`)
	ov, ok := m.Current(ctx, admin)
	if !ok {
		t.Fatal("Current: no override")
	}
	if got := ov.EffectiveFor(admin); got != roles.Admin {
		t.Errorf("EffectiveFor = %q", got)
	}
	if m.IsViewingAs(ctx, admin, roles.Admin) {
		t.Error("IsViewingAs(admin) must be false")
	}
}

func TestSetRoleViewForUser(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	target := &roles.Identity{UserID: 5, Role: roles.Estimator, DisplayName: "Айгерим Сапарова"}
	if err := m.SetRoleView(ctx, admin, roles.Estimator, 0, "", target); err != nil {
		t.Fatalf("SetRoleView: %v", err)
	}
	ov, ok := m.Current(ctx, admin)
	if !ok {
		t.Fatal("Current: no override")
	}
	if ov.UserID != 5 || ov.UserName != "Айгерим Сапарова" || ov.Role != roles.Estimator {
		t.Errorf("override = %+v", ov)
	}

	err := m.SetRoleView(ctx, admin, roles.Buyer, 0, "", target)
	if !errors.Is(err, ErrTargetRoleMismatch) {
		t.Fatalf("err = %v, want ErrTargetRoleMismatch", err)
	}
	if got := m.Effective(ctx, admin); got != roles.Estimator {
		t.Errorf("mismatch changed the overlay: Effective = %q", got)
	}
}

func TestCorruptOverlayIsDropped(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	sm.Put(ctx, sessionKey, "{not json")
	if _, ok := m.Current(ctx, admin); ok {
		t.Error("corrupt override accepted")
	}
	if sm.Exists(ctx, sessionKey) {
		t.Error("corrupt override not removed")
	}
}

func TestEmptyRoleRejected(t *testing.T) {
	sm, ctx := newSessionContext(t)
	m := NewManager(sm)

	if err := m.SetRoleView(ctx, admin, "", 0, "", nil); !errors.Is(err, roles.ErrUnknownRole) {
		t.Errorf("err = %v", err)
	}
}
