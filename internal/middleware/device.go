// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// DeviceCookieName はデバイスIDを保持するCookieの名前。
const DeviceCookieName = "device_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	deviceIDContextKey     = contextKey("device_id")
	deviceIssuedContextKey = contextKey("device_issued")
	snapshotContextKey     = contextKey("session_snapshot")
)

// ErrNoDeviceID はコンテキストにデバイスIDが含まれていないことを示す。
var ErrNoDeviceID = errors.New("device ID not found in context")

// DeviceConfig はデバイスCookieの設定。
type DeviceConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // 秒
}

// NewDeviceMiddleware はHTTP Only CookieからデバイスIDを読み取り、コンテキストに注入するミドルウェアを返す。
// Cookieが無い、またはUUIDとして不正な場合は新しいIDを発行してCookieに設定する。
// 発行したリクエストではIsNewDeviceがtrueを返す。
func NewDeviceMiddleware(config DeviceConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var deviceID string
			if c, err := r.Cookie(DeviceCookieName); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					deviceID = id.String()
				}
			}

			ctx := r.Context()
			if deviceID == "" {
				deviceID = uuid.NewString()
				ctx = MarkDeviceIssued(ctx)
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookieName,
					Value:    deviceID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithDeviceID(ctx, deviceID)))
		})
	}
}

// DeviceIDFromContext はリクエストコンテキストからデバイスIDを取得する。
// デバイスミドルウェアを通過したリクエストでのみ有効。
func DeviceIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(deviceIDContextKey).(string)
	if !ok || id == "" {
		return "", ErrNoDeviceID
	}
	return id, nil
}

// IsNewDevice はデバイスIDがこのリクエストで発行されたものかを返す。
// クライアントはCookieを送らないだけで新しいIDを得られるため、
// 発行直後のIDはレート制限やセッションデータの保存のキーとして信用しない。
func IsNewDevice(ctx context.Context) bool {
	issued, _ := ctx.Value(deviceIssuedContextKey).(bool)
	return issued
}

// MarkDeviceIssued はデバイスIDをこのリクエストで発行したことをコンテキストに記録する。
func MarkDeviceIssued(ctx context.Context) context.Context {
	return context.WithValue(ctx, deviceIssuedContextKey, true)
}

// ContextWithDeviceID はコンテキストにデバイスIDを注入する。
func ContextWithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey, deviceID)
}
