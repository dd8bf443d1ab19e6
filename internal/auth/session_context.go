package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/dcode/internal/model"
)

// DefaultLoginTimeout は認可コード交換の既定のタイムアウト。
const DefaultLoginTimeout = 10 * time.Second

// ProfileSanitizer はIdPから受け取ったIdentityを保存前に無害化する。
type ProfileSanitizer interface {
	Sanitize(identity model.Identity) model.Identity
}

// SessionContextConfig はSessionContextの設定。
type SessionContextConfig struct {
	// LoginTimeout はLoginでの認可コード交換の上限時間。0以下の場合はDefaultLoginTimeout。
	LoginTimeout time.Duration
	// Sanitizer はnilの場合は無害化を行わない。
	Sanitizer ProfileSanitizer
	Logger    *slog.Logger
	// OnChange はログイン・ログアウトによる状態遷移の後に呼ばれる。
	OnChange func(ctx context.Context)
}

// SessionContext は1デバイスについて「誰がログインしているか」を保持する。
//
// 状態はUnauthenticatedとAuthenticated(identity)の2つで、Loginで前者から後者へ、
// Logoutで後者から前者へ遷移する。認証済みでのLoginはセッションを置き換える。
// 状態遷移はミューテックスで直列化される。Loginは交換処理中にロックを保持しないため、
// 並行したLoginは最後に完了したものが勝つ。読み取りはストアを参照しない。
type SessionContext struct {
	store    *SessionStore
	provider IdentityProvider
	config   SessionContextConfig
	logger   *slog.Logger

	mu       sync.RWMutex
	identity *model.Identity
}

// NewSessionContext はUnauthenticated状態のSessionContextを生成する。
// 永続化された状態を読み込むにはRestoreを呼ぶ。
func NewSessionContext(store *SessionStore, provider IdentityProvider, config SessionContextConfig) *SessionContext {
	if config.LoginTimeout <= 0 {
		config.LoginTimeout = DefaultLoginTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionContext{
		store:    store,
		provider: provider,
		config:   config,
		logger:   logger,
	}
}

// Restore はセッションストアから状態を読み込む。
// レコードが壊れている場合はErrCorruptSessionRecordを返し、Unauthenticatedのままとなる。
func (c *SessionContext) Restore(ctx context.Context) error {
	identity, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()
	return nil
}

// Login は認可コードをIdentityに交換し、選択された役割を付与して認証済みにする。
// 失敗した場合、状態と永続化データは変更されない。
func (c *SessionContext) Login(ctx context.Context, code string, role model.Role) (*model.Identity, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, c.config.LoginTimeout)
	defer cancel()

	grant, err := c.provider.ExchangeCode(exchangeCtx, code)
	if err != nil {
		var ae *AuthError
		if errors.As(err, &ae) {
			return nil, err
		}
		// プロバイダーが分類しなかった失敗は交換失敗として扱う
		return nil, exchangeFailed(exchangeCtx.Err() != nil, "%w", err)
	}

	identity := grant.Identity
	if c.config.Sanitizer != nil {
		identity = c.config.Sanitizer.Sanitize(identity)
	}
	identity.Role = role

	c.mu.Lock()
	if err := c.store.Save(ctx, identity, grant.Token); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	c.identity = &identity
	c.mu.Unlock()

	c.notify(ctx)

	out := identity
	return &out, nil
}

// Logout はセッションを破棄する。現在の状態に関わらず常にUnauthenticatedになる。
// ストアの削除に失敗した場合もメモリ上の状態はクリアし、エラーはログに記録する。
func (c *SessionContext) Logout(ctx context.Context) {
	// リクエストが切断されても削除は完了させる
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	c.identity = nil
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("failed to clear persisted session",
			slog.String("error", err.Error()),
		)
	}
	c.mu.Unlock()

	c.notify(ctx)
}

// CurrentIdentity は現在のIdentityのコピーを返す。未認証の場合はnilを返す。
func (c *SessionContext) CurrentIdentity() *model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	out := *c.identity
	return &out
}

// IsAuthenticated は認証済みかどうかを返す。
func (c *SessionContext) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity != nil
}

// Snapshot は現在の状態のスナップショットを返す。
func (c *SessionContext) Snapshot() model.SessionSnapshot {
	return model.SessionSnapshot{Identity: c.CurrentIdentity()}
}

// Store はこのコンテキストが使用するセッションストアを返す。
func (c *SessionContext) Store() *SessionStore {
	return c.store
}

func (c *SessionContext) notify(ctx context.Context) {
	if c.config.OnChange != nil {
		c.config.OnChange(ctx)
	}
}
