package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/dcode/internal/repository"
	"golang.org/x/sync/singleflight"
)

// RegistryConfig はSessionRegistryの設定。
type RegistryConfig struct {
	// InstanceID はこのプロセスを識別するID。自身が発行した変更通知を無視するために使う。
	InstanceID string
	// IdleTTL を超えてアクセスのないコンテキストはメモリから破棄される。永続化データは残る。
	IdleTTL time.Duration
	// SweepInterval はアイドルなコンテキストを掃除する間隔。
	SweepInterval time.Duration
	// TouchInterval ごとに使用中のセッションの永続化データを延長する。
	TouchInterval time.Duration
	Session       SessionContextConfig
	Logger        *slog.Logger
}

// registryEntry はキャッシュされたSessionContextと最終アクセス時刻、最終延長時刻。
type registryEntry struct {
	session   *SessionContext
	lastSeen  atomic.Int64
	touchedAt atomic.Int64
}

// SessionRegistry はデバイスごとのSessionContextを所有する。
// コンテキストは初回アクセス時に生成され、永続化された状態から一度だけ復元される。
type SessionRegistry struct {
	kv       repository.KVStore
	provider IdentityProvider
	notifier repository.ChangeNotifier
	config   RegistryConfig
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]*registryEntry
	group   singleflight.Group
}

// NewSessionRegistry はSessionRegistryを生成する。notifierはnilでもよい。
func NewSessionRegistry(
	kv repository.KVStore,
	provider IdentityProvider,
	notifier repository.ChangeNotifier,
	config RegistryConfig,
) *SessionRegistry {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 30 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Minute
	}
	if config.TouchInterval <= 0 {
		config.TouchInterval = time.Hour
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionRegistry{
		kv:       kv,
		provider: provider,
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
		entries:  make(map[string]*registryEntry),
	}
}

// Namespace はデバイスの永続化データに付与するキー接頭辞を返す。
func Namespace(deviceID string) string {
	return "device:" + deviceID + ":"
}

// Store はデバイスのセッションストアを返す。
func (r *SessionRegistry) Store(deviceID string) *SessionStore {
	return NewSessionStore(repository.Prefixed(r.kv, Namespace(deviceID)))
}

// For はデバイスのSessionContextを返す。未生成の場合は生成して永続化された状態を復元する。
// 同一デバイスへの同時アクセスでも復元は一度しか行われない。
func (r *SessionRegistry) For(ctx context.Context, deviceID string) (*SessionContext, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	if sc, ok := r.lookup(ctx, deviceID); ok {
		return sc, nil
	}

	v, err, _ := r.group.Do(deviceID, func() (any, error) {
		if sc, ok := r.lookup(ctx, deviceID); ok {
			return sc, nil
		}

		sc := r.newSessionContext(deviceID)
		if err := sc.Restore(ctx); err != nil {
			if !errors.Is(err, ErrCorruptSessionRecord) {
				return nil, fmt.Errorf("failed to restore session: %w", err)
			}
			// 壊れたレコードは破棄して未認証として続行する
			r.logger.Warn("discarding corrupt session record",
				slog.String("device_id", deviceID),
				slog.String("error", err.Error()),
			)
			if err := sc.Store().Clear(ctx); err != nil {
				return nil, fmt.Errorf("failed to clear corrupt session: %w", err)
			}
		}

		entry := &registryEntry{session: sc}
		entry.lastSeen.Store(r.now().UnixNano())
		r.touch(ctx, deviceID, entry)

		r.mu.Lock()
		r.entries[deviceID] = entry
		r.mu.Unlock()
		return sc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*SessionContext), nil
}

// Evict はデバイスのSessionContextをメモリから破棄する。
// 次回のForで永続化された状態から再度復元される。
func (r *SessionRegistry) Evict(deviceID string) {
	r.mu.Lock()
	delete(r.entries, deviceID)
	r.mu.Unlock()
}

// Len はメモリ上に保持しているSessionContextの数を返す。
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Run は他インスタンスからの変更通知の購読とアイドルなコンテキストの掃除を行う。
// ctxがキャンセルされるまでブロックする。
func (r *SessionRegistry) Run(ctx context.Context) error {
	var changes <-chan repository.Change
	if r.notifier != nil {
		ch, err := r.notifier.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("failed to subscribe session changes: %w", err)
		}
		changes = ch
	}

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("session change subscription closed")
			}
			if change.Origin == r.config.InstanceID {
				continue
			}
			r.Evict(change.Namespace)
			r.logger.Debug("evicted session changed by another instance",
				slog.String("device_id", change.Namespace),
				slog.String("origin", change.Origin),
			)
		case <-ticker.C:
			if n := r.sweep(); n > 0 {
				r.logger.Debug("swept idle sessions", slog.Int("count", n))
			}
		}
	}
}

// sweep はIdleTTLを超えてアクセスのないコンテキストを破棄し、破棄した数を返す。
func (r *SessionRegistry) sweep() int {
	cutoff := r.now().Add(-r.config.IdleTTL).UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, entry := range r.entries {
		if entry.lastSeen.Load() < cutoff {
			delete(r.entries, id)
			n++
		}
	}
	return n
}

func (r *SessionRegistry) lookup(ctx context.Context, deviceID string) (*SessionContext, bool) {
	r.mu.RLock()
	entry, ok := r.entries[deviceID]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := r.now().UnixNano()
	entry.lastSeen.Store(now)
	if last := entry.touchedAt.Load(); now-last >= int64(r.config.TouchInterval) &&
		entry.touchedAt.CompareAndSwap(last, now) {
		r.touch(ctx, deviceID, entry)
	}
	return entry.session, true
}

// touch は認証済みのセッションの永続化データを延長する。
// 失敗してもリクエストは継続する。
func (r *SessionRegistry) touch(ctx context.Context, deviceID string, entry *registryEntry) {
	entry.touchedAt.Store(r.now().UnixNano())
	if !entry.session.IsAuthenticated() {
		return
	}
	if err := entry.session.Store().Touch(ctx); err != nil {
		r.logger.Warn("failed to touch session",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
	}
}

func (r *SessionRegistry) newSessionContext(deviceID string) *SessionContext {
	cfg := r.config.Session
	if cfg.Logger == nil {
		cfg.Logger = r.logger.With(slog.String("device_id", deviceID))
	}
	onChange := cfg.OnChange
	cfg.OnChange = func(ctx context.Context) {
		r.publish(ctx, deviceID)
		if onChange != nil {
			onChange(ctx)
		}
	}
	return NewSessionContext(r.Store(deviceID), r.provider, cfg)
}

func (r *SessionRegistry) publish(ctx context.Context, deviceID string) {
	if r.notifier == nil {
		return
	}
	change := repository.Change{Origin: r.config.InstanceID, Namespace: deviceID}
	if err := r.notifier.Publish(ctx, change); err != nil {
		r.logger.Warn("failed to publish session change",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
	}
}
