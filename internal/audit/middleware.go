package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/maziggy/bambusy/internal/auth"
)

// Middleware records mutating API requests to the audit log.
// Read requests pass through untouched.
func Middleware(next http.Handler, logger Logger, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		if logger == nil || !isMutation(r) {
			return
		}
		entry := entryFromRequest(r)
		if err := logger.Log(r.Context(), entry); err != nil {
			log.Warn().Err(err).Str("action", entry.Action).Msg("audit write failed")
		}
	})
}

func isMutation(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func entryFromRequest(r *http.Request) Entry {
	entry := Entry{
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    r.Method + " " + r.URL.Path,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		CreatedAt: time.Now().UTC(),
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/")
	parts := strings.Split(rest, "/")
	if len(parts) >= 2 {
		entry.ResourceType = strings.TrimSuffix(parts[0], "s")
		entry.ResourceID = parts[1]
		if parts[0] == "printers" {
			entry.DeviceID = parts[1]
		}
	} else if len(parts) == 1 && parts[0] != "" {
		entry.ResourceType = strings.TrimSuffix(parts[0], "s")
	}
	return entry
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.Index(forwarded, ","); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	return host
}
