package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/dcode/internal/model"
)

// SnapshotResolver はデバイスのセッション状態を解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type SnapshotResolver interface {
	Snapshot(ctx context.Context, deviceID string) (model.SessionSnapshot, error)
}

// NewSessionMiddleware はデバイスのセッションスナップショットをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは通過させる。アクセス可否の判定はガードミドルウェアが行う。
// デバイスミドルウェアの後に配置すること。
func NewSessionMiddleware(resolver SnapshotResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID, err := DeviceIDFromContext(r.Context())
			if err != nil {
				slog.ErrorContext(r.Context(), "session middleware requires device ID")
				WriteInternalServerError(w)
				return
			}

			// 発行したばかりのデバイスにセッションは存在しない
			if IsNewDevice(r.Context()) {
				next.ServeHTTP(w, r.WithContext(ContextWithSnapshot(r.Context(), model.SessionSnapshot{})))
				return
			}

			snapshot, err := resolver.Snapshot(r.Context(), deviceID)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to resolve session",
					slog.String("device_id", deviceID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSnapshot(r.Context(), snapshot)))
		})
	}
}

// SnapshotFromContext はリクエストコンテキストからセッションスナップショットを取得する。
// 注入されていない場合は未認証のスナップショットを返す。
func SnapshotFromContext(ctx context.Context) model.SessionSnapshot {
	s, _ := ctx.Value(snapshotContextKey).(model.SessionSnapshot)
	return s
}

// ContextWithSnapshot はコンテキストにセッションスナップショットを注入する。
func ContextWithSnapshot(ctx context.Context, snapshot model.SessionSnapshot) context.Context {
	return context.WithValue(ctx, snapshotContextKey, snapshot)
}
