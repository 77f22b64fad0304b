package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jason-s-yu/durak/internal/auth"
)

// tokenCookie is the cookie browsers may carry the session token in.
const tokenCookie = "durak_token"

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// requestToken finds a session token in the Authorization header, falling back to the cookie.
// An empty string means the request is anonymous.
func requestToken(r *http.Request) string {
	if tok, err := auth.BearerToken(r.Header.Get("Authorization")); err == nil {
		return tok
	}
	return extractCookieToken(r.Header.Get("Cookie"), tokenCookie)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
