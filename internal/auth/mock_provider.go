package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hitoshi/dcode/internal/model"
)

const defaultMockAuthorizeURL = "https://github.com/login/oauth/authorize"

// MockProviderConfig はMockProviderの設定。
type MockProviderConfig struct {
	ClientID    string
	RedirectURL string
	// Delay は交換処理の擬似的な待ち時間。
	Delay time.Duration
	// Now はトークン生成に使う現在時刻。nilの場合はtime.Now。
	Now func() time.Time
}

// MockProvider は常に固定のIdentityを返す開発用のIdentityProvider。
// 実際のIdPとは通信しない。
type MockProvider struct {
	config   MockProviderConfig
	identity model.Identity
}

// NewMockProvider はMockProviderを生成する。
func NewMockProvider(config MockProviderConfig) *MockProvider {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MockProvider{
		config: config,
		identity: model.Identity{
			ID:        "12345",
			Login:     "demo_user",
			Name:      "Demo User",
			AvatarURL: "https://avatars.githubusercontent.com/u/12345?v=4",
			Email:     "demo@example.com",
			// ログイン時に選択された役割で上書きされる
			Role: model.RoleContributor,
		},
	}
}

// Name はプロバイダー名を返す。
func (p *MockProvider) Name() string {
	return "mock"
}

// AuthorizationURL はGitHubの認可URLを生成する。
func (p *MockProvider) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {"user:email,repo"},
		"state":        {state},
	}
	return defaultMockAuthorizeURL + "?" + params.Encode()
}

// ExchangeCode はDelayだけ待ってから固定のIdentityを返す。
// 待機中にctxがキャンセルされた場合はexchange_failedを返す。
func (p *MockProvider) ExchangeCode(ctx context.Context, code string) (*Grant, error) {
	if code == "" {
		return nil, &AuthError{Reason: ReasonMissingCode, Err: errors.New("authorization code is empty")}
	}

	if p.config.Delay > 0 {
		timer := time.NewTimer(p.config.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, exchangeFailed(true, "exchange aborted: %w", ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return nil, exchangeFailed(true, "exchange aborted: %w", err)
	}

	return &Grant{
		Identity: p.identity,
		Token:    fmt.Sprintf("mock_github_token_%d", p.config.Now().UnixMilli()),
	}, nil
}

// compile-time interface check
var _ IdentityProvider = (*MockProvider)(nil)
