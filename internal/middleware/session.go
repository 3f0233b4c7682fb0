package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/studygenius/studygenius/internal/request"
)

const (
	// SessionHeader carries the client's session identifier
	SessionHeader = "X-Session-ID"
	// SessionCookie is the fallback cookie for browsers that do not set
	// the header
	SessionCookie = "studygenius_session"
)

// SessionID attaches the caller's session ID to the request context. A
// request without one gets a fresh ID, echoed back in the response header
// so the client can keep it.
func SessionID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(SessionHeader)
			if id == "" {
				if cookie, err := r.Cookie(SessionCookie); err == nil {
					id = cookie.Value
				}
			}
			if id == "" || uuid.Validate(id) != nil {
				id = uuid.NewString()
			}

			w.Header().Set(SessionHeader, id)
			next.ServeHTTP(w, r.WithContext(request.WithSessionID(r.Context(), id)))
		})
	}
}
