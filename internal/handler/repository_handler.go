package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/dcode/internal/middleware"
	"github.com/hitoshi/dcode/internal/model"
)

// RepositoryHandler はリポジトリ情報のJSON APIハンドラー。
type RepositoryHandler struct {
	service DashboardServiceInterface
}

// NewRepositoryHandler はRepositoryHandlerを生成する。
func NewRepositoryHandler(service DashboardServiceInterface) *RepositoryHandler {
	return &RepositoryHandler{service: service}
}

// ListRepositories は自分のリポジトリ一覧を返す。
// GET /api/repositories
func (h *RepositoryHandler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.service.UserRepositories(r.Context())
	if err != nil {
		handleFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// ListContributions はコントリビュートしたリポジトリ一覧を返す。
// GET /api/contributions
func (h *RepositoryHandler) ListContributions(w http.ResponseWriter, r *http.Request) {
	repos, err := h.service.ContributionRepositories(r.Context())
	if err != nil {
		handleFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// Search はキーワードでリポジトリを検索する。
// GET /api/repositories/search?q=xxx
func (h *RepositoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		middleware.WriteAPIError(w, model.NewInvalidQueryError())
		return
	}

	repos, err := h.service.SearchRepositories(r.Context(), query)
	if err != nil {
		handleFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}
