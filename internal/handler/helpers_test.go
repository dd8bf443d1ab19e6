package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/dcode/internal/auth"
	"github.com/hitoshi/dcode/internal/dashboard"
	"github.com/hitoshi/dcode/internal/middleware"
	"github.com/hitoshi/dcode/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	providerName    string
	beginLoginFn    func(ctx context.Context, deviceID string, role model.Role) (string, string, error)
	completeLoginFn func(ctx context.Context, deviceID string, params auth.CallbackParams) (*model.Identity, error)
	demoLoginFn     func(ctx context.Context, deviceID string, role model.Role) (*model.Identity, error)
	logoutFn        func(ctx context.Context, deviceID string) error
}

func (m *mockAuthService) ProviderName() string {
	if m.providerName != "" {
		return m.providerName
	}
	return "mock"
}

func (m *mockAuthService) BeginLogin(ctx context.Context, deviceID string, role model.Role) (string, string, error) {
	if m.beginLoginFn != nil {
		return m.beginLoginFn(ctx, deviceID, role)
	}
	return "", "", nil
}

func (m *mockAuthService) CompleteLogin(ctx context.Context, deviceID string, params auth.CallbackParams) (*model.Identity, error) {
	if m.completeLoginFn != nil {
		return m.completeLoginFn(ctx, deviceID, params)
	}
	return nil, nil
}

func (m *mockAuthService) DemoLogin(ctx context.Context, deviceID string, role model.Role) (*model.Identity, error) {
	if m.demoLoginFn != nil {
		return m.demoLoginFn(ctx, deviceID, role)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, deviceID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, deviceID)
	}
	return nil
}

type mockDashboardService struct {
	myRepositoriesFn           func(ctx context.Context, user *model.Identity) (*dashboard.MyReposView, error)
	contributedRepositoriesFn  func(ctx context.Context, user *model.Identity, query string) (*dashboard.ContributedReposView, error)
	searchRepositoriesFn       func(ctx context.Context, query string) ([]model.Repository, error)
	userRepositoriesFn         func(ctx context.Context) ([]model.Repository, error)
	contributionRepositoriesFn func(ctx context.Context) ([]model.ContributionRepository, error)
}

func (m *mockDashboardService) MyRepositories(ctx context.Context, user *model.Identity) (*dashboard.MyReposView, error) {
	if m.myRepositoriesFn != nil {
		return m.myRepositoriesFn(ctx, user)
	}
	return &dashboard.MyReposView{User: user}, nil
}

func (m *mockDashboardService) ContributedRepositories(ctx context.Context, user *model.Identity, query string) (*dashboard.ContributedReposView, error) {
	if m.contributedRepositoriesFn != nil {
		return m.contributedRepositoriesFn(ctx, user, query)
	}
	return &dashboard.ContributedReposView{User: user, Query: query}, nil
}

func (m *mockDashboardService) SearchRepositories(ctx context.Context, query string) ([]model.Repository, error) {
	if m.searchRepositoriesFn != nil {
		return m.searchRepositoriesFn(ctx, query)
	}
	return []model.Repository{}, nil
}

func (m *mockDashboardService) UserRepositories(ctx context.Context) ([]model.Repository, error) {
	if m.userRepositoriesFn != nil {
		return m.userRepositoriesFn(ctx)
	}
	return []model.Repository{}, nil
}

func (m *mockDashboardService) ContributionRepositories(ctx context.Context) ([]model.ContributionRepository, error) {
	if m.contributionRepositoriesFn != nil {
		return m.contributionRepositoriesFn(ctx)
	}
	return []model.ContributionRepository{}, nil
}

// --- ヘルパー ---

const testDeviceID = "0b6c2f5e-8a3d-4f1e-9c7b-2d4e6f8a0b1c"

func withDevice(r *http.Request, deviceID string) *http.Request {
	return r.WithContext(middleware.ContextWithDeviceID(r.Context(), deviceID))
}

func withUser(r *http.Request, role model.Role) *http.Request {
	snapshot := model.SessionSnapshot{Identity: &model.Identity{
		ID:    "12345",
		Login: "demo_user",
		Name:  "Demo User",
		Role:  role,
	}}
	return r.WithContext(middleware.ContextWithSnapshot(r.Context(), snapshot))
}

// parseAPIErrorResponse はレスポンスボディをAPIエラー形式としてパースする。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
