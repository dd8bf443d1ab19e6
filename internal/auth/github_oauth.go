package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/dcode/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const defaultGitHubAPIURL = "https://api.github.com"

// defaultGitHubScopes はメールアドレスとリポジトリ情報の参照に必要なスコープ。
var defaultGitHubScopes = []string{"user:email", "repo"}

// GitHubOAuthConfig はGitHub OAuth Appの設定。
type GitHubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	APIURL   string

	HTTPClient *http.Client
}

// GitHubOAuthProvider はGitHub OAuth 2.0による認証を提供する。
type GitHubOAuthProvider struct {
	oauth      *oauth2.Config
	apiURL     string
	httpClient *http.Client
}

// NewGitHubOAuthProvider はGitHubOAuthProviderを生成する。
func NewGitHubOAuthProvider(config GitHubOAuthConfig) *GitHubOAuthProvider {
	endpoint := github.Endpoint
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	// GitHubはclient_secretをボディで受け付ける。自動判定の試行リクエストを避ける。
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = defaultGitHubScopes
	}

	apiURL := strings.TrimSuffix(config.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultGitHubAPIURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &GitHubOAuthProvider{
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		apiURL:     apiURL,
		httpClient: httpClient,
	}
}

// Name はプロバイダー名を返す。
func (p *GitHubOAuthProvider) Name() string {
	return "github"
}

// AuthorizationURL はGitHub OAuthの認可URLを生成する。
func (p *GitHubOAuthProvider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// githubUser はGitHubの /user エンドポイントのレスポンス。
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
}

// githubEmail はGitHubの /user/emails エンドポイントのレスポンス要素。
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *GitHubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, &AuthError{Reason: ReasonMissingCode, Err: errors.New("authorization code is empty")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	// 1. 認可コードをアクセストークンに交換
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			// IdPがコードを拒否した。使い捨てのコードのため再試行不可。
			return nil, exchangeFailed(false, "token exchange rejected: %w", err)
		}
		return nil, exchangeFailed(true, "token request failed: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	client := p.oauth.Client(ctx, token)

	var user githubUser
	if err := p.getJSON(ctx, client, "/user", &user); err != nil {
		return nil, err
	}
	if user.ID == 0 || user.Login == "" {
		return nil, exchangeFailed(false, "empty id or login in user response")
	}

	// 3. メールアドレスが非公開の場合は /user/emails から主アドレスを取得
	email := user.Email
	if email == "" {
		var emails []githubEmail
		if err := p.getJSON(ctx, client, "/user/emails", &emails); err != nil {
			return nil, err
		}
		email = primaryEmail(emails)
	}

	return &Grant{
		Identity: model.Identity{
			ID:        strconv.FormatInt(user.ID, 10),
			Login:     user.Login,
			Name:      user.Name,
			AvatarURL: user.AvatarURL,
			Email:     email,
		},
		Token: token.AccessToken,
	}, nil
}

// getJSON はGitHub APIのGETリクエストを送り、レスポンスをdstにデコードする。
func (p *GitHubOAuthProvider) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+path, nil)
	if err != nil {
		return exchangeFailed(false, "failed to create %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return exchangeFailed(true, "%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return exchangeFailed(true, "failed to read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return exchangeFailed(resp.StatusCode >= 500,
			"%s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return exchangeFailed(false, "failed to parse %s response: %w", path, err)
	}
	return nil
}

// primaryEmail は検証済みの主アドレスを返す。なければ最初の検証済みアドレスを返す。
func primaryEmail(emails []githubEmail) string {
	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	return fallback
}

// compile-time interface check
var _ IdentityProvider = (*GitHubOAuthProvider)(nil)
