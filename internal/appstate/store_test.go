package appstate

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/db"
	"github.com/example/washops/backend/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.New("file:"+t.Name()+"?mode=memory&cache=shared", false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(repository.NewSessionRepository(gdb))
}

func TestBeginRequiresCredentials(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Begin(context.Background(), Login{UserID: 1, AccessToken: "  "}); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
	if _, err := store.Begin(context.Background(), Login{AccessToken: "t"}); !errors.Is(err, ErrInvalidLogin) {
		t.Fatalf("expected ErrInvalidLogin, got %v", err)
	}
}

func TestEndRunsTeardowns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var torn []uuid.UUID
	store.OnEnd(func(id uuid.UUID) { torn = append(torn, id) })

	session, err := store.Begin(ctx, Login{UserID: 5, ShopID: 2, AccessToken: "abc", UnreadNotifications: 3})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	got, err := store.Get(ctx, session.ID)
	if err != nil || got.ShopID != 2 || got.UnreadNotifications != 3 {
		t.Fatalf("get: %+v %v", got, err)
	}

	if err := store.End(ctx, session.ID); err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(torn) != 1 || torn[0] != session.ID {
		t.Fatalf("teardown not run: %v", torn)
	}
	if _, err := store.Get(ctx, session.ID); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestGetReloadsPersistedSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	session, err := store.Begin(ctx, Login{UserID: 9, AccessToken: "tok"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	restarted := NewStore(store.repo)
	got, err := restarted.Get(ctx, session.ID)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if got.AccessToken != "tok" || got.UserID != 9 {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := restarted.SetUnreadNotifications(ctx, session.ID, 7); err != nil {
		t.Fatalf("set unread: %v", err)
	}
	got, _ = restarted.Get(ctx, session.ID)
	if got.UnreadNotifications != 7 {
		t.Fatalf("expected 7 unread, got %d", got.UnreadNotifications)
	}
}

func TestIdleSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	session, err := store.Begin(ctx, Login{UserID: 1, AccessToken: "x"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	idle, err := store.Idle(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil || len(idle) != 1 || idle[0] != session.ID {
		t.Fatalf("expected session to be idle: %v %v", idle, err)
	}
	idle, err = store.Idle(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil || len(idle) != 0 {
		t.Fatalf("expected no idle sessions: %v %v", idle, err)
	}
}

func TestContextCarriesSession(t *testing.T) {
	store := newTestStore(t)
	session, err := store.Begin(context.Background(), Login{UserID: 1, AccessToken: "x"})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	ctx := WithSession(context.Background(), session)
	got, ok := FromContext(ctx)
	if !ok || got.ID != session.ID {
		t.Fatalf("session not carried")
	}
	if _, ok := FromContext(context.Background()); ok {
		t.Fatalf("empty context has no session")
	}
}
