package auth

import (
	"errors"
	"fmt"
)

// Reason は認証失敗の機械可読な理由。
type Reason string

const (
	// ReasonProviderDenied はIdPが明示的にエラーを返したことを示す（ユーザーの拒否、設定誤りなど）。
	ReasonProviderDenied Reason = "provider_denied"
	// ReasonMissingCode はコールバックに認可コードもエラーも含まれていなかったことを示す。
	ReasonMissingCode Reason = "missing_code"
	// ReasonExchangeFailed は認可コードの交換中に通信またはIdP側で失敗したことを示す。
	ReasonExchangeFailed Reason = "exchange_failed"
	// ReasonCorruptSessionRecord は永続化されたセッションが読み取れないことを示す。
	ReasonCorruptSessionRecord Reason = "corrupt_session_record"
)

// String はfmt.Stringerを実装する。
func (r Reason) String() string {
	return string(r)
}

// LoginErrorCode はログイン画面へのリダイレクトに付与するerrorクエリの値を返す。
func (r Reason) LoginErrorCode() string {
	switch r {
	case ReasonProviderDenied:
		return "oauth_failed"
	case ReasonMissingCode:
		return "no_code"
	default:
		return "login_failed"
	}
}

// AuthError は理由付きの認証エラー。
// Transientがtrueの場合は通信障害などの一時的な失敗で、呼び出し側は別のコードで再試行できる。
// IdPが拒否した認可コードは使い捨てのため、同じコードで再試行してはならない。
type AuthError struct {
	Reason    Reason
	Transient bool
	Err       error
}

// Error はerrorインターフェースを実装する。
func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is は理由が一致するAuthErrorを同一とみなす。
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// errors.Isで理由を判定するための番兵値。
var (
	ErrProviderDenied       = &AuthError{Reason: ReasonProviderDenied}
	ErrMissingCode          = &AuthError{Reason: ReasonMissingCode}
	ErrExchangeFailed       = &AuthError{Reason: ReasonExchangeFailed}
	ErrCorruptSessionRecord = &AuthError{Reason: ReasonCorruptSessionRecord}
	ErrInvalidRole          = errors.New("invalid role")
	ErrDeviceIDRequired     = errors.New("device ID is required")
)

// errStateMismatch はコールバックのstateが検証されなかった場合の原因エラー。
var errStateMismatch = errors.New("oauth state mismatch")

// ReasonOf はエラーに含まれるAuthErrorの理由を返す。
// AuthErrorを含まない場合はReasonExchangeFailedとfalseを返す。
func ReasonOf(err error) (Reason, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}
	return ReasonExchangeFailed, false
}

// IsTransient はエラーが一時的な失敗で再試行可能かどうかを返す。
func IsTransient(err error) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return false
}

func exchangeFailed(transient bool, format string, args ...any) *AuthError {
	return &AuthError{
		Reason:    ReasonExchangeFailed,
		Transient: transient,
		Err:       fmt.Errorf(format, args...),
	}
}
