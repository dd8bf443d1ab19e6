package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dcode/internal/dashboard"
	"github.com/hitoshi/dcode/internal/githubapi"
	"github.com/hitoshi/dcode/internal/middleware"
	"github.com/hitoshi/dcode/internal/model"
)

// DashboardServiceInterface は画面・APIハンドラーが必要とするリポジトリ情報のサービスインターフェース。
type DashboardServiceInterface interface {
	MyRepositories(ctx context.Context, user *model.Identity) (*dashboard.MyReposView, error)
	ContributedRepositories(ctx context.Context, user *model.Identity, query string) (*dashboard.ContributedReposView, error)
	SearchRepositories(ctx context.Context, query string) ([]model.Repository, error)
	UserRepositories(ctx context.Context) ([]model.Repository, error)
	ContributionRepositories(ctx context.Context) ([]model.ContributionRepository, error)
}

// ScreenHandler は役割ごとの画面を返すハンドラー。
// アクセス可否はルーターで画面ごとのガードミドルウェアが判定する。
type ScreenHandler struct {
	service DashboardServiceInterface
}

// NewScreenHandler はScreenHandlerを生成する。
func NewScreenHandler(service DashboardServiceInterface) *ScreenHandler {
	return &ScreenHandler{service: service}
}

// AdminDashboard は管理者ダッシュボードを返す。
// GET /admin/dashboard
func (h *ScreenHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.AdminDashboard(currentUser(r)))
}

// MaintainerDashboard はメンテナーダッシュボードを返す。
// GET /maintainer/dashboard
func (h *ScreenHandler) MaintainerDashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.MaintainerDashboard(currentUser(r)))
}

// Onboarding はコントリビューターのオンボーディング画面を返す。
// GET /contributor/onboarding
func (h *ScreenHandler) Onboarding(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.Onboarding(currentUser(r)))
}

// Profile はコントリビューターのプロフィール画面を返す。
// GET /contributor/profile
func (h *ScreenHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.Profile(currentUser(r)))
}

// Leaderboard はリーダーボード画面を返す。
// GET /leaderboard?q=xxx
func (h *ScreenHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dashboard.Leaderboard(r.URL.Query().Get("q")))
}

// MyRepos は自分のリポジトリ一覧画面を返す。
// GET /contributor/my-repos
func (h *ScreenHandler) MyRepos(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MyRepositories(r.Context(), currentUser(r))
	if err != nil {
		handleFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ContributedRepos はコントリビュートしたリポジトリ一覧画面を返す。
// GET /contributor/contributed-repos?q=xxx
func (h *ScreenHandler) ContributedRepos(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ContributedRepositories(r.Context(), currentUser(r), r.URL.Query().Get("q"))
	if err != nil {
		handleFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// currentUser はガードを通過したリクエストのIdentityを返す。
func currentUser(r *http.Request) *model.Identity {
	return middleware.SnapshotFromContext(r.Context()).Identity
}

// handleFetchError はリポジトリ情報の取得エラーをレスポンスに変換する。
func handleFetchError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, githubapi.ErrEmptyQuery) {
		middleware.WriteAPIError(w, model.NewInvalidQueryError())
		return
	}

	reason := "unknown"
	var fe *githubapi.FetchError
	if errors.As(err, &fe) {
		reason = fe.Op
	}
	slog.WarnContext(r.Context(), "repository fetch failed",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteAPIError(w, model.NewFetchFailedError(reason))
}
