package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/artistcal/libs/config"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// CORSRoute overrides the default policy for requests Match accepts.
type CORSRoute struct {
	Match  func(*http.Request) bool
	Policy CORSPolicy
}

// PathSuffix matches request paths ending in suffix, such as "/events" or ".ics".
func PathSuffix(suffix string) func(*http.Request) bool {
	return func(r *http.Request) bool { return strings.HasSuffix(r.URL.Path, suffix) }
}

// CORSPolicyFromEnv reads CORS_ALLOWED_ORIGINS (comma separated) and allows the schedule API's
// methods and headers for them.
func CORSPolicyFromEnv() CORSPolicy {
	return CORSPolicy{
		AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "Retry-After"},
		AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		MaxAge:           config.Duration("CORS_MAX_AGE_SECONDS", 10*time.Minute, time.Second),
	}
}

// StreamCORSPolicy narrows base to what an EventSource needs: GET only, resumable via
// Last-Event-ID.
func StreamCORSPolicy(base CORSPolicy) CORSPolicy {
	return CORSPolicy{
		AllowedOrigins:   base.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Last-Event-ID", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: base.AllowCredentials,
		MaxAge:           base.MaxAge,
	}
}

// CalendarCORSPolicy serves iCalendar exports. Calendar clients subscribe from anywhere, so
// CORS_CALENDAR_ALLOWED_ORIGINS defaults to "*" and credentials are never sent.
func CalendarCORSPolicy(base CORSPolicy) CORSPolicy {
	return CORSPolicy{
		AllowedOrigins: config.List("CORS_CALENDAR_ALLOWED_ORIGINS", "*"),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", RequestIDHeader},
		MaxAge:         base.MaxAge,
	}
}

// WithCORS adds basic CORS handling. If AllowedOrigins is empty, it is a no-op.
func WithCORS(cfg CORSPolicy) Middleware {
	return WithCORSRoutes(cfg)
}

// WithCORSRoutes applies the first route whose Match accepts the request, else def. A policy
// without origins emits no CORS headers.
func WithCORSRoutes(def CORSPolicy, routes ...CORSRoute) Middleware {
	fallback := compileCORS(def)
	compiled := make([]compiledCORS, len(routes))
	for i, rt := range routes {
		compiled[i] = compileCORS(rt.Policy)
	}
	if len(fallback.origins) == 0 && !anyOrigins(compiled) {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			policy := fallback
			for i, rt := range routes {
				if rt.Match != nil && rt.Match(r) {
					policy = compiled[i]
					break
				}
			}
			if policy.apply(w, r, origin) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type compiledCORS struct {
	origins     []string
	methods     string
	headers     string
	exposed     string
	credentials bool
	maxAge      int
}

func compileCORS(cfg CORSPolicy) compiledCORS {
	return compiledCORS{
		origins:     normalizeList(cfg.AllowedOrigins),
		methods:     strings.Join(normalizeList(cfg.AllowedMethods), ", "),
		headers:     strings.Join(normalizeList(cfg.AllowedHeaders), ", "),
		exposed:     strings.Join(normalizeList(cfg.ExposedHeaders), ", "),
		credentials: cfg.AllowCredentials,
		maxAge:      int(cfg.MaxAge.Seconds()),
	}
}

func anyOrigins(policies []compiledCORS) bool {
	for _, p := range policies {
		if len(p.origins) > 0 {
			return true
		}
	}
	return false
}

// apply writes the CORS headers for an allowed origin and reports whether the request was a
// preflight that is now answered.
func (c compiledCORS) apply(w http.ResponseWriter, r *http.Request, origin string) bool {
	allowOrigin, ok := matchOrigin(origin, c.origins, c.credentials)
	if !ok {
		return false
	}
	headers := w.Header()
	headers.Set("Access-Control-Allow-Origin", allowOrigin)
	if c.credentials {
		headers.Set("Access-Control-Allow-Credentials", "true")
	}
	if c.exposed != "" {
		headers.Set("Access-Control-Expose-Headers", c.exposed)
	}
	headers.Add("Vary", "Origin")

	if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
		return false
	}
	if c.methods != "" {
		headers.Set("Access-Control-Allow-Methods", c.methods)
	}
	if c.headers != "" {
		headers.Set("Access-Control-Allow-Headers", c.headers)
	}
	if c.maxAge > 0 {
		headers.Set("Access-Control-Max-Age", strconv.Itoa(c.maxAge))
	}
	headers.Add("Vary", "Access-Control-Request-Method")
	headers.Add("Vary", "Access-Control-Request-Headers")
	return true
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

func matchOrigin(origin string, allowed []string, allowCredentials bool) (string, bool) {
	for _, candidate := range allowed {
		if candidate == "*" {
			if allowCredentials {
				return origin, true
			}
			return "*", true
		}
		if strings.EqualFold(candidate, origin) {
			return origin, true
		}
	}
	return "", false
}
