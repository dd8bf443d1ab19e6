package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/dcode/internal/model"
)

// LoginRecorder はログイン結果を記録するメトリクスのインターフェース。
type LoginRecorder interface {
	RecordLogin(provider, outcome string, duration time.Duration)
	RecordLogout()
}

// CallbackParams はIdPからのコールバックで受け取るクエリパラメータ。
type CallbackParams struct {
	Code             string
	Error            string
	ErrorDescription string
	// StateVerified はstateパラメータがログイン開始時の値と一致したことを示す。
	// 呼び出し側（ハンドラー）が検証する。
	StateVerified bool
}

// Service は認証フローのビジネスロジックを提供する。
// ハンドラーはデバイスIDのみを渡し、SessionContextの取得はServiceが行う。
type Service struct {
	registry *SessionRegistry
	provider IdentityProvider
	metrics  LoginRecorder
	now      func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(registry *SessionRegistry, provider IdentityProvider, metrics LoginRecorder) *Service {
	return &Service{
		registry: registry,
		provider: provider,
		metrics:  metrics,
		now:      time.Now,
	}
}

// ProviderName はIdPの名前を返す。
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// BeginLogin は選択された役割を保存し、IdPの認可URLとstateを返す。
func (s *Service) BeginLogin(ctx context.Context, deviceID string, role model.Role) (authURL, state string, err error) {
	if deviceID == "" {
		return "", "", ErrDeviceIDRequired
	}
	if err := s.registry.Store(deviceID).SavePendingRole(ctx, role); err != nil {
		return "", "", err
	}
	return BuildAuthorizationURL(s.provider)
}

// CompleteLogin はIdPからのコールバックを処理してログインを完了する。
// errorパラメータがあればErrProviderDenied、codeがなければErrMissingCodeを返し、
// セッションは作成しない。stateが未検証の場合は認可コードを交換せずErrProviderDeniedを返す。
// 保存された役割がない場合はcontributorとしてログインする。
func (s *Service) CompleteLogin(ctx context.Context, deviceID string, params CallbackParams) (*model.Identity, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}

	// 保存された役割は結果に関わらず一度きりで破棄する
	role, ok, err := s.registry.Store(deviceID).TakePendingRole(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		role = model.RoleContributor
	}

	if params.Error != "" {
		err := &AuthError{
			Reason: ReasonProviderDenied,
			Err:    fmt.Errorf("%s: %s", params.Error, params.ErrorDescription),
		}
		s.recordLogin(ReasonProviderDenied.String(), 0)
		return nil, err
	}
	if params.Code == "" {
		s.recordLogin(ReasonMissingCode.String(), 0)
		return nil, ErrMissingCode
	}
	if !params.StateVerified {
		s.recordLogin(ReasonProviderDenied.String(), 0)
		return nil, &AuthError{Reason: ReasonProviderDenied, Err: errStateMismatch}
	}

	return s.login(ctx, deviceID, params.Code, role)
}

// DemoLogin はIdPへ遷移せずに合成した認可コードでログインする。
func (s *Service) DemoLogin(ctx context.Context, deviceID string, role model.Role) (*model.Identity, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	code := fmt.Sprintf("demo_auth_code_%d", s.now().UnixMilli())
	return s.login(ctx, deviceID, code, role)
}

// Logout はデバイスのセッションを破棄する。
func (s *Service) Logout(ctx context.Context, deviceID string) error {
	sc, err := s.registry.For(ctx, deviceID)
	if err != nil {
		return err
	}
	sc.Logout(ctx)

	if s.metrics != nil {
		s.metrics.RecordLogout()
	}
	slog.InfoContext(ctx, "user logged out", slog.String("device_id", deviceID))
	return nil
}

// Snapshot はデバイスの現在のセッション状態を返す。
func (s *Service) Snapshot(ctx context.Context, deviceID string) (model.SessionSnapshot, error) {
	sc, err := s.registry.For(ctx, deviceID)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	return sc.Snapshot(), nil
}

func (s *Service) login(ctx context.Context, deviceID, code string, role model.Role) (*model.Identity, error) {
	sc, err := s.registry.For(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	identity, err := sc.Login(ctx, code, role)
	elapsed := s.now().Sub(start)
	if err != nil {
		outcome := "invalid_role"
		if !errors.Is(err, ErrInvalidRole) {
			reason, _ := ReasonOf(err)
			outcome = reason.String()
		}
		s.recordLogin(outcome, elapsed)
		slog.WarnContext(ctx, "login failed",
			slog.String("device_id", deviceID),
			slog.String("provider", s.provider.Name()),
			slog.String("reason", outcome),
			slog.Bool("transient", IsTransient(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.recordLogin("success", elapsed)
	slog.InfoContext(ctx, "user logged in",
		slog.String("device_id", deviceID),
		slog.String("provider", s.provider.Name()),
		slog.String("login", identity.Login),
		slog.String("role", identity.Role.String()),
	)
	return identity, nil
}

func (s *Service) recordLogin(outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordLogin(s.provider.Name(), outcome, d)
	}
}
