package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// MemoryKVStoreはKVStoreインターフェースを満たすことを検証
func TestMemoryKVStore_ImplementsInterface(t *testing.T) {
	var _ KVStore = (*MemoryKVStore)(nil)
}

func TestMemoryKVStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryKVStore()

	if _, found, err := s.Get(ctx, "user"); err != nil || found {
		t.Fatalf("Get() on empty store = found %v, err %v; want not found", found, err)
	}

	if err := s.Set(ctx, "user", "v1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "user", "v2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, found, err := s.Get(ctx, "user")
	if err != nil || !found {
		t.Fatalf("Get() = found %v, err %v; want found", found, err)
	}
	if v != "v2" {
		t.Errorf("Get() = %q, want %q", v, "v2")
	}

	if err := s.Delete(ctx, "user", "missing"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestPrefixed_IsolatesNamespaces(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryKVStore()
	a := Prefixed(base, "device:a:")
	b := Prefixed(base, "device:b:")

	if err := a.Set(ctx, "user", "alice"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, found, _ := b.Get(ctx, "user"); found {
		t.Error("namespace b should not see namespace a's key")
	}

	raw, found, _ := base.Get(ctx, "device:a:user")
	if !found || raw != "alice" {
		t.Errorf("base key = %q (found %v), want %q", raw, found, "alice")
	}

	if err := a.Delete(ctx, "user"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if base.Len() != 0 {
		t.Errorf("base Len() = %d, want 0", base.Len())
	}
}

func TestFileKVStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.json")

	s1, err := NewFileKVStore(path)
	if err != nil {
		t.Fatalf("NewFileKVStore() error = %v", err)
	}
	if err := s1.Set(ctx, "user", `{"version":1}`); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s1.Set(ctx, "github_token", "tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	s2, err := NewFileKVStore(path)
	if err != nil {
		t.Fatalf("NewFileKVStore() reopen error = %v", err)
	}
	v, found, err := s2.Get(ctx, "github_token")
	if err != nil || !found || v != "tok" {
		t.Errorf("Get() after reopen = %q, found %v, err %v", v, found, err)
	}

	if err := s2.Delete(ctx, "user", "github_token"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	s3, err := NewFileKVStore(path)
	if err != nil {
		t.Fatalf("NewFileKVStore() reopen error = %v", err)
	}
	if _, found, _ := s3.Get(ctx, "user"); found {
		t.Error("deleted key should not survive reopen")
	}
}

func TestFileKVStore_MissingFile_IsEmpty(t *testing.T) {
	s, err := NewFileKVStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewFileKVStore() error = %v", err)
	}
	if _, found, _ := s.Get(context.Background(), "user"); found {
		t.Error("expected empty store")
	}
}

func TestFileKVStore_CorruptFile_ReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileKVStore(path); err == nil {
		t.Fatal("expected error for corrupt kv file")
	}
}

func TestFileKVStore_DeleteMissingKey_DoesNotCreateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := NewFileKVStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(context.Background(), "user"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should not be created by a no-op delete, stat err = %v", err)
	}
}

// touchRecorder はTouchの呼び出しを記録するKVStore。
type touchRecorder struct {
	*MemoryKVStore
	touched []string
}

func (r *touchRecorder) Touch(_ context.Context, keys ...string) error {
	r.touched = append(r.touched, keys...)
	return nil
}

func TestPrefixed_TouchForwardsWithPrefix(t *testing.T) {
	inner := &touchRecorder{MemoryKVStore: NewMemoryKVStore()}
	kv := Prefixed(inner, "device:a:")

	toucher, ok := kv.(Toucher)
	if !ok {
		t.Fatal("Prefixed store should implement Toucher")
	}
	if err := toucher.Touch(context.Background(), "user", "github_token"); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	want := []string{"device:a:user", "device:a:github_token"}
	if len(inner.touched) != len(want) || inner.touched[0] != want[0] || inner.touched[1] != want[1] {
		t.Errorf("touched = %v, want %v", inner.touched, want)
	}
}

func TestPrefixed_TouchWithoutToucherIsNoop(t *testing.T) {
	kv := Prefixed(NewMemoryKVStore(), "device:a:")
	if err := kv.(Toucher).Touch(context.Background(), "user"); err != nil {
		t.Errorf("Touch() error = %v, want nil", err)
	}
}

// breakFileKVStore はストアのファイルを空でないディレクトリに置き換え、以降の書き出しを失敗させる。
func breakFileKVStore(t *testing.T, path string) {
	t.Helper()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(path, "blocker"), 0o700); err != nil {
		t.Fatal(err)
	}
}

func TestFileKVStore_FailedFlush_RollsBackMemory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := NewFileKVStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "user", "alice"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "github_token", "tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	breakFileKVStore(t, path)

	if err := s.Delete(ctx, "user", "github_token"); err == nil {
		t.Fatal("expected Delete() to fail when the file cannot be written")
	}
	for key, want := range map[string]string{"user": "alice", "github_token": "tok"} {
		if got, ok, _ := s.Get(ctx, key); !ok || got != want {
			t.Errorf("after failed Delete, Get(%q) = %q, %v; want %q, true", key, got, ok, want)
		}
	}

	if err := s.Set(ctx, "user", "bob"); err == nil {
		t.Fatal("expected Set() to fail when the file cannot be written")
	}
	if got, _, _ := s.Get(ctx, "user"); got != "alice" {
		t.Errorf("after failed Set, Get(user) = %q, want %q", got, "alice")
	}
}

func TestMemoryChangeNotifier_FanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewMemoryChangeNotifier()
	sub1, err := n.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	sub2, err := n.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	change := Change{Origin: "instance-a", Namespace: "device:1:"}
	if err := n.Publish(ctx, change); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	for i, sub := range []<-chan Change{sub1, sub2} {
		select {
		case got := <-sub:
			if got != change {
				t.Errorf("subscriber %d got %+v, want %+v", i, got, change)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive change", i)
		}
	}
}

func TestMemoryChangeNotifier_CancelClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	n := NewMemoryChangeNotifier()
	sub, err := n.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after cancel")
	}

	// 購読解除後のPublishはパニックしないこと
	if err := n.Publish(context.Background(), Change{Namespace: "x"}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}
