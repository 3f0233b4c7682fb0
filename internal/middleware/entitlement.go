package middleware

import (
	"net/http"
	"strings"

	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/services/entitlement"
	"go.uber.org/zap"
)

// Entitlement inspects the Authorization header for a premium token and
// marks the request context accordingly. It never rejects: free requests
// pass through unflagged, and the handlers decide what is gated.
func Entitlement(svc *entitlement.Service, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := svc.VerifyPremium(token); err != nil {
				// An invalid token downgrades to free rather than failing
				// the request
				logger.Debug("entitlement token rejected",
					zap.String("session_id", request.SessionIDFromContext(r)),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(request.WithPremium(r.Context(), true)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequirePremium rejects requests without a verified premium entitlement.
// Used on the endpoints the monetization gate protects outright.
func RequirePremium() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !request.IsPremium(r) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusPaymentRequired)
				_, _ = w.Write([]byte(`{"error":"premium required","code":"PREMIUM_REQUIRED"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
