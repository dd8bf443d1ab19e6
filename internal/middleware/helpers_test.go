package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/hitoshi/dcode/internal/model"
)

// --- モック定義 ---

type mockSnapshotResolver struct {
	snapshotFn func(ctx context.Context, deviceID string) (model.SessionSnapshot, error)
}

func (m *mockSnapshotResolver) Snapshot(ctx context.Context, deviceID string) (model.SessionSnapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, deviceID)
	}
	return model.SessionSnapshot{}, nil
}

type guardDecision struct {
	screen   string
	decision string
}

type mockGuardRecorder struct {
	mu        sync.Mutex
	decisions []guardDecision
}

func (m *mockGuardRecorder) RecordGuardDecision(screen, decision string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, guardDecision{screen: screen, decision: decision})
}

type mockStatusRecorder struct {
	mu       sync.Mutex
	statuses []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, statusCode)
}

// --- ヘルパー ---

func withDevice(r *http.Request, deviceID string) *http.Request {
	return r.WithContext(ContextWithDeviceID(r.Context(), deviceID))
}

func withRole(r *http.Request, role model.Role) *http.Request {
	snapshot := model.SessionSnapshot{Identity: &model.Identity{
		ID:    "42",
		Login: "octocat",
		Role:  role,
	}}
	return r.WithContext(ContextWithSnapshot(r.Context(), snapshot))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
