package security

import (
	"html"
	"strings"

	"github.com/hitoshi/dcode/internal/model"
	"github.com/microcosm-cc/bluemonday"
)

// IdentitySanitizer はIdPから受け取ったプロフィール項目を画面表示前に無害化する。
// 表示名などの自由入力項目からHTMLを除去し、アバターURLは公開HTTPSのもののみ残す。
// bluemondayのポリシーはスレッドセーフなため、複数のゴルーチンから共有できる。
type IdentitySanitizer struct {
	policy *bluemonday.Policy
}

// NewIdentitySanitizer はIdentitySanitizerを生成する。
func NewIdentitySanitizer() *IdentitySanitizer {
	return &IdentitySanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は無害化したIdentityのコピーを返す。IDとRoleは変更しない。
func (s *IdentitySanitizer) Sanitize(identity model.Identity) model.Identity {
	identity.Login = s.text(identity.Login)
	identity.Name = s.text(identity.Name)
	identity.Email = s.text(identity.Email)
	if err := ValidatePublicURL(identity.AvatarURL); err != nil {
		identity.AvatarURL = ""
	}
	return identity
}

// maxSanitizeRounds は多重にエスケープされた入力を展開する回数の上限。
const maxSanitizeRounds = 8

// text はタグを除去したプレーンテキストを返す。
// StrictPolicyはエスケープ済みHTMLを返すため元の文字へ戻すが、
// 戻した結果がタグになり得るので、除去しても変化しなくなるまで繰り返す。
// 上限回数で収束しない値は空文字にする。
func (s *IdentitySanitizer) text(v string) string {
	for i := 0; i < maxSanitizeRounds; i++ {
		next := html.UnescapeString(s.policy.Sanitize(v))
		if next == v {
			return strings.TrimSpace(v)
		}
		v = next
	}
	return ""
}
