package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/dcode/internal/guard"
	"github.com/hitoshi/dcode/internal/middleware"
	"github.com/hitoshi/dcode/internal/model"
)

// RouterMetrics はルーターが記録するメトリクスのインターフェース。
type RouterMetrics interface {
	middleware.GuardRecorder
	middleware.StatusRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           RouterMetrics
	Device            middleware.DeviceConfig
	CSRF              middleware.CSRFConfig
	SessionResolver   middleware.SnapshotResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 画面・リポジトリ情報
	DashboardService DashboardServiceInterface

	// 運用
	HealthCheck    func(ctx context.Context) error
	MetricsHandler http.Handler
}

// contributorOnly はコントリビューター向けAPIの役割要件。
var contributorOnly = []model.Role{model.RoleContributor}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Device → Session → Logging → CORS → RateLimit(General) → CSRF
//
// /health と /metrics はデバイスの発行対象外とし、Recoveryのみを適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 末尾スラッシュ付きの画面パスは正規のパスへ、それ以外はログイン画面へ。
	// APIはJSONで404を返す。
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			middleware.WriteAPIError(w, model.NewNotFoundError())
			return
		}
		s, _ := guard.Resolve(r.URL.Path)
		http.Redirect(w, r, s.Path, http.StatusFound)
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	screenHandler := NewScreenHandler(deps.DashboardService)
	repoHandler := NewRepositoryHandler(deps.DashboardService)

	var guardRecorder middleware.GuardRecorder
	var statusRecorder middleware.StatusRecorder
	if deps.Metrics != nil {
		guardRecorder = deps.Metrics
		statusRecorder = deps.Metrics
	}
	screen := func(s guard.Screen) func(http.Handler) http.Handler {
		return middleware.NewGuardMiddleware(s, guardRecorder)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewDeviceMiddleware(deps.Device))
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		r.Use(middleware.NewLoggingMiddleware(logger, statusRecorder))
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, guard.LoginPath, http.StatusFound)
		})

		// ログイン画面とOAuthフロー
		r.With(screen(guard.LoginScreen)).Get(guard.LoginPath, authHandler.LoginPage)
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.LoginMiddleware())
				r.Post("/login", authHandler.DemoLogin)
				r.Get("/github/login", authHandler.GitHubLogin)
				r.With(screen(guard.CallbackScreen)).Get("/callback", authHandler.Callback)
			})
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// 役割ごとの画面
		r.With(screen(guard.AdminDashboardScreen)).Get(guard.AdminDashboardScreen.Path, screenHandler.AdminDashboard)
		r.With(screen(guard.MaintainerDashboardScreen)).Get(guard.MaintainerDashboardScreen.Path, screenHandler.MaintainerDashboard)
		r.With(screen(guard.OnboardingScreen)).Get(guard.OnboardingScreen.Path, screenHandler.Onboarding)
		r.With(screen(guard.MyReposScreen)).Get(guard.MyReposScreen.Path, screenHandler.MyRepos)
		r.With(screen(guard.ProfileScreen)).Get(guard.ProfileScreen.Path, screenHandler.Profile)
		r.With(screen(guard.ContributedReposScreen)).Get(guard.ContributedReposScreen.Path, screenHandler.ContributedRepos)
		r.With(screen(guard.LeaderboardScreen)).Get(guard.LeaderboardScreen.Path, screenHandler.Leaderboard)

		// JSON API
		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

			r.Group(func(r chi.Router) {
				r.Use(middleware.NewAPIGuardMiddleware("api_repositories", contributorOnly, guardRecorder))
				r.Get("/repositories", repoHandler.ListRepositories)
				r.Get("/repositories/search", repoHandler.Search)
				r.Get("/contributions", repoHandler.ListContributions)
			})
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// GET /health
func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
