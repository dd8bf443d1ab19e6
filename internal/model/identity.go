// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// Role はダッシュボードの画面アクセスを決める役割。
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleMaintainer  Role = "maintainer"
	RoleContributor Role = "contributor"
)

// AllRoles はログイン画面で選択可能な役割の一覧。
var AllRoles = []Role{RoleAdmin, RoleMaintainer, RoleContributor}

// Valid は役割が定義済みの3種類のいずれかであるかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMaintainer, RoleContributor:
		return true
	default:
		return false
	}
}

// String はfmt.Stringerを実装する。
func (r Role) String() string {
	return string(r)
}

// ParseRole は文字列を役割に変換する。前後の空白と大文字小文字は無視する。
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

// Identity は認証済みのプリンシパルを表す。
// Roleはログイン時にユーザーの選択から付与され、IdPからは取得しない。
type Identity struct {
	ID        string `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// DisplayName は表示名を返す。Nameが空の場合はLoginを使う。
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Login
}

// SessionSnapshot はある時点のセッション状態のコピー。
// Route Guardはこのスナップショットのみを参照して判定する。
type SessionSnapshot struct {
	Identity *Identity
}

// IsAuthenticated はIdentityが存在する場合にのみtrueを返す。
func (s SessionSnapshot) IsAuthenticated() bool {
	return s.Identity != nil
}

// Role は認証済みの場合にその役割を返す。未認証の場合は空文字を返す。
func (s SessionSnapshot) Role() Role {
	if s.Identity == nil {
		return ""
	}
	return s.Identity.Role
}
