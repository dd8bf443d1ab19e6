package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/dcode/internal/guard"
	"github.com/hitoshi/dcode/internal/model"
)

func TestGuardMiddleware_Decisions(t *testing.T) {
	tests := []struct {
		name         string
		screen       guard.Screen
		role         model.Role // 空の場合は未認証
		wantStatus   int
		wantLocation string
		wantDecision string
	}{
		{"admin on admin dashboard", guard.AdminDashboardScreen, model.RoleAdmin, http.StatusOK, "", "allow"},
		{"unauthenticated on admin dashboard", guard.AdminDashboardScreen, "", http.StatusFound, "/login", "redirect_to_login"},
		{"contributor on admin dashboard", guard.AdminDashboardScreen, model.RoleContributor, http.StatusFound, "/login", "redirect_to_login"},
		{"unauthenticated on login", guard.LoginScreen, "", http.StatusOK, "", "allow"},
		{"maintainer on login", guard.LoginScreen, model.RoleMaintainer, http.StatusFound, "/maintainer/dashboard", "redirect_to_default_for_role"},
		{"contributor on login", guard.LoginScreen, model.RoleContributor, http.StatusFound, "/contributor/onboarding", "redirect_to_default_for_role"},
		{"any role on leaderboard", guard.LeaderboardScreen, model.RoleMaintainer, http.StatusOK, "", "allow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockGuardRecorder{}
			handler := NewGuardMiddleware(tt.screen, recorder)(okHandler)

			req := httptest.NewRequest(http.MethodGet, tt.screen.Path, nil)
			if tt.role != "" {
				req = withRole(req, tt.role)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if len(recorder.decisions) != 1 {
				t.Fatalf("recorded %d decisions, want 1", len(recorder.decisions))
			}
			got := recorder.decisions[0]
			if got.screen != tt.screen.Name || got.decision != tt.wantDecision {
				t.Errorf("recorded %+v, want {%s %s}", got, tt.screen.Name, tt.wantDecision)
			}
		})
	}
}

func TestGuardMiddleware_NilRecorder(t *testing.T) {
	handler := NewGuardMiddleware(guard.LoginScreen, nil)(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestAPIGuardMiddleware(t *testing.T) {
	required := []model.Role{model.RoleContributor}

	tests := []struct {
		name       string
		role       model.Role
		wantStatus int
		wantCode   string
	}{
		{"allowed", model.RoleContributor, http.StatusOK, ""},
		{"unauthenticated", "", http.StatusUnauthorized, model.ErrCodeUnauthenticated},
		{"wrong role", model.RoleAdmin, http.StatusForbidden, model.ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &mockGuardRecorder{}
			handler := NewAPIGuardMiddleware("api_repositories", required, recorder)(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/repositories", nil)
			if tt.role != "" {
				req = withRole(req, tt.role)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode: %v", err)
				}
				if body.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
				}
			}
			if len(recorder.decisions) != 1 || recorder.decisions[0].screen != "api_repositories" {
				t.Errorf("unexpected recorded decisions: %+v", recorder.decisions)
			}
		})
	}
}
