// Package auth はOAuth認証フロー、セッションストア、セッションコンテキストを提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/hitoshi/dcode/internal/model"
)

// Grant は認可コード交換の結果。
// TokenはIdPへのアクセスを表す不透明な文字列で、存在以外は参照しない。
type Grant struct {
	Identity model.Identity
	Token    string
}

// IdentityProvider は外部IdPから Identity を取得するインターフェース。
type IdentityProvider interface {
	// Name はプロバイダー名を返す（ログ・メトリクス用）。
	Name() string
	// AuthorizationURL はstateを埋め込んだ認可リクエストURLを生成する。副作用はない。
	AuthorizationURL(state string) string
	// ExchangeCode は認可コードをIdentityとトークンに交換する。
	// 失敗時は*AuthErrorを返す。認可コードは使い捨てのため、自動での再試行は行わない。
	ExchangeCode(ctx context.Context, code string) (*Grant, error)
}

// BuildAuthorizationURL は新しいstateを生成し、認可リクエストURLとともに返す。
// 呼び出しのたびに異なるstateを生成する。
func BuildAuthorizationURL(p IdentityProvider) (authURL string, state string, err error) {
	state, err = generateState()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return p.AuthorizationURL(state), state, nil
}

// generateState はCSRF対策用の暗号的に安全なstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
