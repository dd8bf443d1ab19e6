package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/dcode/internal/model"
	"github.com/hitoshi/dcode/internal/repository"
)

func TestSessionStore_SaveLoadRoundTrip(t *testing.T) {
	kv := repository.NewMemoryKVStore()
	ctx := context.Background()

	want := model.Identity{
		ID:        "12345",
		Login:     "demo_user",
		Name:      "Demo User",
		AvatarURL: "https://avatars.githubusercontent.com/u/12345?v=4",
		Email:     "demo@example.com",
		Role:      model.RoleMaintainer,
	}
	if err := NewSessionStore(kv).Save(ctx, want, "token-1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// 新しいストアから読み込んでも同一であること
	got, err := NewSessionStore(kv).Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	token, ok, err := NewSessionStore(kv).Token(ctx)
	if err != nil || !ok || token != "token-1" {
		t.Errorf("Token() = %q, %v, %v", token, ok, err)
	}
}

func TestSessionStore_RecordLayout(t *testing.T) {
	kv := repository.NewMemoryKVStore()
	ctx := context.Background()

	identity := model.Identity{ID: "1", Login: "a", Name: "A", Email: "a@example.com", Role: model.RoleAdmin}
	if err := NewSessionStore(kv).Save(ctx, identity, "tok"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	raw, ok, _ := kv.Get(ctx, KeyUser)
	want := `{"version":1,"identity":{"id":"1","login":"a","name":"A","email":"a@example.com","role":"admin"}}`
	if !ok || raw != want {
		t.Errorf("stored record = %s, want %s", raw, want)
	}
	if tok, _, _ := kv.Get(ctx, KeyToken); tok != "tok" {
		t.Errorf("stored token = %q, want %q", tok, "tok")
	}
}

func TestSessionStore_LoadAbsent(t *testing.T) {
	got, err := NewSessionStore(repository.NewMemoryKVStore()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() = %+v, want nil", got)
	}
}

func TestSessionStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{not json"},
		{"legacy unversioned identity", `{"id":"1","login":"a","role":"admin"}`},
		{"future version", `{"version":2,"identity":{"id":"1","role":"admin"}}`},
		{"missing identity", `{"version":1}`},
		{"empty id", `{"version":1,"identity":{"id":"","role":"admin"}}`},
		{"unknown role", `{"version":1,"identity":{"id":"1","role":"owner"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := repository.NewMemoryKVStore()
			ctx := context.Background()
			if err := kv.Set(ctx, KeyUser, tt.raw); err != nil {
				t.Fatalf("Set() error = %v", err)
			}

			got, err := NewSessionStore(kv).Load(ctx)
			if !errors.Is(err, ErrCorruptSessionRecord) {
				t.Fatalf("Load() error = %v, want ErrCorruptSessionRecord", err)
			}
			if got != nil {
				t.Errorf("Load() = %+v, want nil", got)
			}
		})
	}
}

func TestSessionStore_ClearIsIdempotent(t *testing.T) {
	kv := repository.NewMemoryKVStore()
	store := NewSessionStore(kv)
	ctx := context.Background()

	if err := store.Save(ctx, model.Identity{ID: "1", Role: model.RoleAdmin}, "tok"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear() #%d error = %v", i+1, err)
		}
	}

	if kv.Len() != 0 {
		t.Errorf("kv.Len() = %d, want 0", kv.Len())
	}
	if _, ok, _ := store.Token(ctx); ok {
		t.Error("token should be removed")
	}
}

func TestSessionStore_PendingRole(t *testing.T) {
	store := NewSessionStore(repository.NewMemoryKVStore())
	ctx := context.Background()

	if _, ok, err := store.TakePendingRole(ctx); ok || err != nil {
		t.Fatalf("TakePendingRole() on empty = %v, %v", ok, err)
	}

	if err := store.SavePendingRole(ctx, model.RoleMaintainer); err != nil {
		t.Fatalf("SavePendingRole() error = %v", err)
	}
	role, ok, err := store.TakePendingRole(ctx)
	if err != nil || !ok || role != model.RoleMaintainer {
		t.Fatalf("TakePendingRole() = %q, %v, %v", role, ok, err)
	}

	// 取り出した役割は削除される
	if _, ok, _ := store.TakePendingRole(ctx); ok {
		t.Error("pending role should be removed after take")
	}
}

func TestSessionStore_PendingRoleInvalidValues(t *testing.T) {
	kv := repository.NewMemoryKVStore()
	store := NewSessionStore(kv)
	ctx := context.Background()

	if err := store.SavePendingRole(ctx, model.Role("owner")); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("SavePendingRole() error = %v, want ErrInvalidRole", err)
	}

	// 改ざんされた値は破棄される
	kv.Set(ctx, KeySelectedRole, "root")
	if _, ok, err := store.TakePendingRole(ctx); ok || err != nil {
		t.Errorf("TakePendingRole() = %v, %v, want false, nil", ok, err)
	}
	if _, found, _ := kv.Get(ctx, KeySelectedRole); found {
		t.Error("invalid pending role should be deleted")
	}
}

func TestSessionStore_PropagatesKVErrors(t *testing.T) {
	errBackend := errors.New("backend down")
	kv := newMockKVStore()
	kv.getFn = func(ctx context.Context, key string) (string, bool, error) {
		return "", false, errBackend
	}
	kv.setFn = func(ctx context.Context, key, value string) error {
		return errBackend
	}
	kv.deleteFn = func(ctx context.Context, keys ...string) error {
		return errBackend
	}
	store := NewSessionStore(kv)
	ctx := context.Background()

	if err := store.Save(ctx, model.Identity{ID: "1", Role: model.RoleAdmin}, "t"); !errors.Is(err, errBackend) {
		t.Errorf("Save() error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, errBackend) || errors.Is(err, ErrCorruptSessionRecord) {
		t.Errorf("Load() error = %v", err)
	}
	if err := store.Clear(ctx); !errors.Is(err, errBackend) {
		t.Errorf("Clear() error = %v", err)
	}
}
