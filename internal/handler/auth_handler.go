// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/dcode/internal/auth"
	"github.com/hitoshi/dcode/internal/guard"
	"github.com/hitoshi/dcode/internal/middleware"
	"github.com/hitoshi/dcode/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	ProviderName() string
	BeginLogin(ctx context.Context, deviceID string, role model.Role) (authURL, state string, err error)
	CompleteLogin(ctx context.Context, deviceID string, params auth.CallbackParams) (*model.Identity, error)
	DemoLogin(ctx context.Context, deviceID string, role model.Role) (*model.Identity, error)
	Logout(ctx context.Context, deviceID string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginErrorMessages はログイン画面に表示するエラーメッセージ。
var loginErrorMessages = map[string]string{
	"oauth_failed": "GitHubでの認証が完了しませんでした。",
	"no_code":      "認可コードを受け取れませんでした。",
	"login_failed": "ログインに失敗しました。",
}

type loginError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type loginView struct {
	Roles         []model.Role `json:"roles"`
	Provider      string       `json:"provider"`
	AuthorizePath string       `json:"authorize_path"`
	Error         *loginError  `json:"error,omitempty"`
}

// LoginPage はログイン画面を返す。
// GET /login
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	view := loginView{
		Roles:         model.AllRoles,
		Provider:      h.service.ProviderName(),
		AuthorizePath: "/auth/github/login",
	}
	code := r.URL.Query().Get("error")
	if msg, ok := loginErrorMessages[code]; ok {
		view.Error = &loginError{Code: code, Message: msg}
	}
	writeJSON(w, http.StatusOK, view)
}

type demoLoginRequest struct {
	Role string `json:"role"`
}

type loginResponse struct {
	User     *model.Identity `json:"user"`
	Redirect string          `json:"redirect"`
}

// DemoLogin はIdPへ遷移せずに選択した役割でログインする。
// POST /auth/login
func (h *AuthHandler) DemoLogin(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDOrFail(w, r)
	if !ok {
		return
	}

	var req demoLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRoleError(""))
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRoleError(req.Role))
		return
	}

	user, err := h.service.DemoLogin(r.Context(), deviceID, role)
	if err != nil {
		reason, _ := auth.ReasonOf(err)
		slog.WarnContext(r.Context(), "demo login failed",
			slog.String("device_id", deviceID),
			slog.String("reason", reason.String()),
			slog.String("error", err.Error()),
		)
		middleware.WriteAPIError(w, model.NewLoginFailedError(reason.String()))
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{User: user, Redirect: guard.LandingPath(user.Role)})
}

// GitHubLogin は選択された役割を保存し、OAuthフローを開始する。
// デバイスIDをこのリクエストで発行した場合は何も保存せずログイン画面へ戻す。
// GET /auth/github/login?role=xxx
func (h *AuthHandler) GitHubLogin(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDOrFail(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("role")
	role, err := model.ParseRole(raw)
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRoleError(raw))
		return
	}

	if middleware.IsNewDevice(r.Context()) {
		http.Redirect(w, r, guard.LoginPath, http.StatusFound)
		return
	}

	authURL, state, err := h.service.BeginLogin(r.Context(), deviceID, role)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to begin login",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDOrFail(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	// 検証結果はサービスに渡し、errorやcodeの欠落より後に評価させる
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	h.clearStateCookie(w)
	stateVerified := err == nil && state != "" && stateCookie.Value == state
	if !stateVerified {
		slog.WarnContext(r.Context(), "oauth state mismatch",
			slog.String("device_id", deviceID),
			slog.String("query_state", state),
		)
	}

	// 2. ログインの完了
	user, err := h.service.CompleteLogin(r.Context(), deviceID, auth.CallbackParams{
		Code:             query.Get("code"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
		StateVerified:    stateVerified,
	})
	if err != nil {
		reason, _ := auth.ReasonOf(err)
		slog.WarnContext(r.Context(), "oauth callback failed",
			slog.String("device_id", deviceID),
			slog.String("reason", reason.String()),
			slog.String("error", err.Error()),
		)
		redirectToLoginWithError(w, r, reason.LoginErrorCode())
		return
	}

	// 3. 役割ごとの初期画面へリダイレクト
	http.Redirect(w, r, guard.LandingPath(user.Role), http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDOrFail(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), deviceID); err != nil {
		// ログアウト失敗でも画面はログインへ戻す
		slog.ErrorContext(r.Context(), "failed to logout",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, map[string]string{"redirect": guard.LoginPath})
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	snapshot := middleware.SnapshotFromContext(r.Context())
	if !snapshot.IsAuthenticated() {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, snapshot.Identity)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirectToLoginWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, guard.LoginPath+"?error="+url.QueryEscape(code), http.StatusFound)
}

// deviceIDOrFail はデバイスIDを取得する。取得できない場合は500を書き込みfalseを返す。
func deviceIDOrFail(w http.ResponseWriter, r *http.Request) (string, bool) {
	deviceID, err := middleware.DeviceIDFromContext(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "handler requires device ID", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return "", false
	}
	return deviceID, true
}
