package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/dcode/internal/model"
	"github.com/hitoshi/dcode/internal/repository"
)

// 永続化に使うキー。デバイスごとの名前空間内で一意。
const (
	KeyUser         = "user"
	KeyToken        = "github_token"
	KeySelectedRole = "selected_role"
)

// sessionRecordVersion は永続化レコードの現在のスキーマバージョン。
const sessionRecordVersion = 1

// sessionRecord は永続化されるセッションレコード。
type sessionRecord struct {
	Version  int             `json:"version"`
	Identity *model.Identity `json:"identity"`
}

// SessionStore は1デバイス分のIdentityとトークンを永続化する。
type SessionStore struct {
	kv repository.KVStore
}

// NewSessionStore はSessionStoreを生成する。
// kvはデバイスごとに名前空間が分けられている必要がある（repository.Prefixed）。
func NewSessionStore(kv repository.KVStore) *SessionStore {
	return &SessionStore{kv: kv}
}

// Save はIdentityとトークンを保存する。既存の値は上書きされる。
func (s *SessionStore) Save(ctx context.Context, identity model.Identity, token string) error {
	payload, err := json.Marshal(sessionRecord{
		Version:  sessionRecordVersion,
		Identity: &identity,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session record: %w", err)
	}

	if err := s.kv.Set(ctx, KeyUser, string(payload)); err != nil {
		return fmt.Errorf("failed to save session record: %w", err)
	}
	if err := s.kv.Set(ctx, KeyToken, token); err != nil {
		return fmt.Errorf("failed to save credential token: %w", err)
	}
	return nil
}

// Load は保存されたIdentityを読み込む。
// レコードが存在しない場合はnil, nilを返す。
// 存在するが解釈できない場合はErrCorruptSessionRecordを返す。
func (s *SessionStore) Load(ctx context.Context) (*model.Identity, error) {
	raw, ok, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to load session record: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, corruptRecord("unparseable payload: %v", err)
	}
	if rec.Version != sessionRecordVersion {
		return nil, corruptRecord("unsupported version %d", rec.Version)
	}
	if rec.Identity == nil || rec.Identity.ID == "" {
		return nil, corruptRecord("missing identity")
	}
	if !rec.Identity.Role.Valid() {
		return nil, corruptRecord("invalid role %q", rec.Identity.Role)
	}

	return rec.Identity, nil
}

// Clear はIdentityとトークンを削除する。空のストアに対しても成功する。
func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyUser, KeyToken); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Touch は使用中のIdentityとトークンの最終更新時刻または有効期限を延長する。
// ストアが延長に対応していない場合は何もしない。
func (s *SessionStore) Touch(ctx context.Context) error {
	toucher, ok := s.kv.(repository.Toucher)
	if !ok {
		return nil
	}
	if err := toucher.Touch(ctx, KeyUser, KeyToken); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Token は保存されたトークンを返す。
func (s *SessionStore) Token(ctx context.Context) (string, bool, error) {
	token, ok, err := s.kv.Get(ctx, KeyToken)
	if err != nil {
		return "", false, fmt.Errorf("failed to load credential token: %w", err)
	}
	return token, ok, nil
}

// SavePendingRole はIdPへのリダイレクト前に選択された役割を保存する。
func (s *SessionStore) SavePendingRole(ctx context.Context, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.kv.Set(ctx, KeySelectedRole, string(role)); err != nil {
		return fmt.Errorf("failed to save pending role: %w", err)
	}
	return nil
}

// TakePendingRole は保存された役割を取り出して削除する。
// 未保存または不正な値の場合はfalseを返す。
func (s *SessionStore) TakePendingRole(ctx context.Context) (model.Role, bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeySelectedRole)
	if err != nil {
		return "", false, fmt.Errorf("failed to load pending role: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	if err := s.kv.Delete(ctx, KeySelectedRole); err != nil {
		return "", false, fmt.Errorf("failed to delete pending role: %w", err)
	}

	role, err := model.ParseRole(raw)
	if err != nil {
		return "", false, nil
	}
	return role, true, nil
}

func corruptRecord(format string, args ...any) *AuthError {
	return &AuthError{
		Reason: ReasonCorruptSessionRecord,
		Err:    fmt.Errorf(format, args...),
	}
}
