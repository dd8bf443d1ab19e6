// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"
)

// KVStore は文字列キーと文字列値の永続化インターフェース。
// セッションストアはデバイスごとにPrefixedで名前空間を切って利用する。
type KVStore interface {
	// Get は指定キーの値を取得する。存在しない場合はfoundがfalseになる。
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set は指定キーに値を書き込む。既存の値は上書きする。
	Set(ctx context.Context, key, value string) error

	// Delete は指定キーを削除する。存在しないキーの削除はエラーにならない。
	Delete(ctx context.Context, keys ...string) error
}

// ChangeNotifier は名前空間の変更を他のインスタンスへ通知するインターフェース。
// 同じストアを共有する複数プロセス間で、メモリ上のセッション状態を失効させるために使う。
type ChangeNotifier interface {
	// Publish は名前空間が変更されたことを通知する。
	Publish(ctx context.Context, change Change) error

	// Subscribe は変更通知を受け取るチャネルを返す。
	// ctxがキャンセルされるとチャネルはクローズされる。
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// Change は名前空間の変更通知。
// Originは通知元インスタンスのIDで、自身の通知を無視するために使う。
type Change struct {
	Origin    string `json:"origin"`
	Namespace string `json:"namespace"`
}

// StaleEntryPurger は一定期間更新されていないエントリを削除するインターフェース。
// クリーンアップジョブから利用する。
type StaleEntryPurger interface {
	// PurgeStale はolderThanより古いエントリを削除し、削除件数を返す。
	PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Toucher はエントリの値を変えずに最終利用時刻を進めるインターフェース。
// 利用中のセッションがStaleEntryPurgerや有効期限で消えないようにするために使う。
type Toucher interface {
	// Touch は存在するキーの最終利用時刻を現在時刻にする。存在しないキーは無視する。
	Touch(ctx context.Context, keys ...string) error
}

// prefixedKVStore はキーに接頭辞を付与して委譲するKVStore。
type prefixedKVStore struct {
	inner  KVStore
	prefix string
}

// Prefixed はすべてのキーにprefixを付与するKVStoreを返す。
func Prefixed(inner KVStore, prefix string) KVStore {
	return &prefixedKVStore{inner: inner, prefix: prefix}
}

func (s *prefixedKVStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *prefixedKVStore) Set(ctx context.Context, key, value string) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *prefixedKVStore) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, s.prefixAll(keys)...)
}

// Touch は内側のストアがToucherを実装していれば委譲し、そうでなければ何もしない。
func (s *prefixedKVStore) Touch(ctx context.Context, keys ...string) error {
	t, ok := s.inner.(Toucher)
	if !ok {
		return nil
	}
	return t.Touch(ctx, s.prefixAll(keys)...)
}

func (s *prefixedKVStore) prefixAll(keys []string) []string {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.prefix + k
	}
	return prefixed
}
