package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/dcode/internal/guard"
	"github.com/hitoshi/dcode/internal/model"
)

// GuardRecorder はガード判定を記録するインターフェース。
type GuardRecorder interface {
	RecordGuardDecision(screen, decision string)
}

// NewGuardMiddleware は画面のアクセス判定を行い、許可されない場合はリダイレクトするミドルウェアを返す。
// recorderがnilの場合はメトリクスを記録しない。
func NewGuardMiddleware(screen guard.Screen, recorder GuardRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snapshot := SnapshotFromContext(r.Context())
			decision := screen.Decide(snapshot)
			if recorder != nil {
				recorder.RecordGuardDecision(screen.Name, decision.Kind.String())
			}

			if !decision.Allowed() {
				slog.DebugContext(r.Context(), "screen access redirected",
					slog.String("screen", screen.Name),
					slog.String("decision", decision.Kind.String()),
					slog.String("location", decision.Location),
				)
				http.Redirect(w, r, decision.Location, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// NewAPIGuardMiddleware はAPIエンドポイント向けのガードミドルウェアを返す。
// 画面と異なりリダイレクトせず、未認証は401、役割不一致は403を返す。
func NewAPIGuardMiddleware(name string, required []model.Role, recorder GuardRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snapshot := SnapshotFromContext(r.Context())
			decision := guard.Authorize(snapshot, required)
			if recorder != nil {
				recorder.RecordGuardDecision(name, decision.Kind.String())
			}

			switch {
			case decision.Allowed():
				next.ServeHTTP(w, r)
			case !snapshot.IsAuthenticated():
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
			default:
				WriteErrorResponse(w, http.StatusForbidden, model.NewUnauthorizedError(snapshot.Role()))
			}
		})
	}
}
