// Package guard は画面ごとの役割要件に基づいてアクセス可否を判定する。
// 判定はセッションのスナップショットと画面定義のみに依存する純粋関数で、状態もI/Oも持たない。
package guard

import (
	"slices"
	"strings"

	"github.com/hitoshi/dcode/internal/model"
)

// LoginPath はログイン画面のパス。
const LoginPath = "/login"

// Kind は判定の種類。
type Kind int

const (
	// Allow は画面の表示を許可する。
	Allow Kind = iota
	// RedirectToLogin はログイン画面へリダイレクトする。
	RedirectToLogin
	// RedirectToDefaultForRole は役割ごとの初期画面へリダイレクトする。
	RedirectToDefaultForRole
)

// String はメトリクスのラベルとログに使う名前を返す。
func (k Kind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect_to_login"
	case RedirectToDefaultForRole:
		return "redirect_to_default_for_role"
	default:
		return "unknown"
	}
}

// Decision は判定結果。Locationはリダイレクト先で、Allowの場合は空。
type Decision struct {
	Kind     Kind
	Location string
}

// Allowed は表示が許可されたかを返す。
func (d Decision) Allowed() bool {
	return d.Kind == Allow
}

var (
	allow           = Decision{Kind: Allow}
	redirectToLogin = Decision{Kind: RedirectToLogin, Location: LoginPath}
)

// Authorize は保護された画面へのアクセスを判定する。
// 未認証の場合、またはrequiredが指定されていて役割が含まれない場合はログイン画面へリダイレクトする。
func Authorize(snapshot model.SessionSnapshot, required []model.Role) Decision {
	if !snapshot.IsAuthenticated() {
		return redirectToLogin
	}
	if len(required) > 0 && !slices.Contains(required, snapshot.Role()) {
		return redirectToLogin
	}
	return allow
}

// AuthorizePublic はログイン画面など未認証者向けの画面へのアクセスを判定する。
// 認証済みの場合は役割ごとの初期画面へリダイレクトする。
func AuthorizePublic(snapshot model.SessionSnapshot) Decision {
	if !snapshot.IsAuthenticated() {
		return allow
	}
	return Decision{Kind: RedirectToDefaultForRole, Location: LandingPath(snapshot.Role())}
}

// LandingPath はログイン後に表示する役割ごとの初期画面のパスを返す。
func LandingPath(role model.Role) string {
	if role == model.RoleContributor {
		return "/contributor/onboarding"
	}
	return "/" + string(role) + "/dashboard"
}

// Access は画面のアクセス区分。
type Access int

const (
	// Public は誰でも表示できる。
	Public Access = iota
	// PublicOnly は未認証者のみ表示でき、認証済みの場合は初期画面へリダイレクトする。
	PublicOnly
	// Protected は認証が必要で、Rolesが空でなければ役割も一致する必要がある。
	Protected
)

// Screen は画面の定義。
type Screen struct {
	Name   string
	Path   string
	Access Access
	Roles  []model.Role
}

// Decide はスナップショットに対するこの画面の判定を返す。
func (s Screen) Decide(snapshot model.SessionSnapshot) Decision {
	switch s.Access {
	case Public:
		return allow
	case PublicOnly:
		return AuthorizePublic(snapshot)
	default:
		return Authorize(snapshot, s.Roles)
	}
}

// 画面の一覧。
var (
	LoginScreen               = Screen{Name: "login", Path: LoginPath, Access: PublicOnly}
	CallbackScreen            = Screen{Name: "auth_callback", Path: "/auth/callback", Access: Public}
	OnboardingScreen          = Screen{Name: "contributor_onboarding", Path: "/contributor/onboarding", Access: Protected, Roles: []model.Role{model.RoleContributor}}
	MyReposScreen             = Screen{Name: "contributor_my_repos", Path: "/contributor/my-repos", Access: Protected, Roles: []model.Role{model.RoleContributor}}
	ProfileScreen             = Screen{Name: "contributor_profile", Path: "/contributor/profile", Access: Protected, Roles: []model.Role{model.RoleContributor}}
	ContributedReposScreen    = Screen{Name: "contributor_contributed_repos", Path: "/contributor/contributed-repos", Access: Protected, Roles: []model.Role{model.RoleContributor}}
	AdminDashboardScreen      = Screen{Name: "admin_dashboard", Path: "/admin/dashboard", Access: Protected, Roles: []model.Role{model.RoleAdmin}}
	MaintainerDashboardScreen = Screen{Name: "maintainer_dashboard", Path: "/maintainer/dashboard", Access: Protected, Roles: []model.Role{model.RoleMaintainer}}
	LeaderboardScreen         = Screen{Name: "leaderboard", Path: "/leaderboard", Access: Protected}
)

// Screens はすべての画面の定義。
var Screens = []Screen{
	LoginScreen,
	CallbackScreen,
	OnboardingScreen,
	MyReposScreen,
	ProfileScreen,
	ContributedReposScreen,
	AdminDashboardScreen,
	MaintainerDashboardScreen,
	LeaderboardScreen,
}

var screensByPath = func() map[string]Screen {
	m := make(map[string]Screen, len(Screens))
	for _, s := range Screens {
		m[s.Path] = s
	}
	return m
}()

// Resolve はパスに対応する画面を返す。
// 一致する画面がない場合はログイン画面とfalseを返す。
func Resolve(path string) (Screen, bool) {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if s, ok := screensByPath[path]; ok {
		return s, true
	}
	return LoginScreen, false
}
