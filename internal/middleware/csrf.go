package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"mollik/internal/session"
)

const (
	csrfTokenLength = 32

	// CSRFCookieName is the cookie that holds the CSRF token. It is
	// readable by scripts so clients can echo it back in CSRFHeaderName.
	CSRFCookieName = "mollik_csrf"

	// CSRFHeaderName is the header state-changing requests must carry.
	CSRFHeaderName = "X-CSRF-Token"
)

// CSRF provides double-submit cookie protection. Every response gets a
// token cookie; unsafe requests that carry a session cookie must echo the
// token in CSRFHeaderName. Requests without a session cookie have no
// ambient credential and pass through.
func CSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(CSRFCookieName)
			if err != nil || cookie.Value == "" {
				token, err := generateCSRFToken()
				if err != nil {
					writeError(w, r, http.StatusInternalServerError, errorBody{Error: "internal error"})
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false,
					Secure:   secure,
					SameSite: http.SameSiteStrictMode,
				})
				cookie = &http.Cookie{Value: token}
			}

			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if _, err := r.Cookie(session.CookieName); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			submitted := r.Header.Get(CSRFHeaderName)
			if submitted == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
				writeError(w, r, http.StatusForbidden, errorBody{Error: "CSRF token mismatch"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetCSRFToken returns the CSRF token from the request cookie, or "".
func GetCSRFToken(r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
