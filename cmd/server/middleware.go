package main

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/lychee-technology/tabula"
	"go.uber.org/zap"
)

type principalKey struct{}

// principalFrom returns the authenticated admin stored by requireAuth.
func principalFrom(ctx context.Context) *tabula.Principal {
	p, _ := ctx.Value(principalKey{}).(*tabula.Principal)
	return p
}

// admin wraps an admin API handler: version header, then rate limit, then auth.
func (s *Server) admin(h http.HandlerFunc) http.Handler {
	return s.withAPIVersion(s.withRateLimit(s.requireAuth(h)))
}

func (s *Server) withAPIVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", s.config.Server.APIVersion)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || !s.config.RateLimit.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		origin := clientOrigin(r, s.config.RateLimit.TrustForwardedFor)
		ok, err := s.limiter.Allow(r.Context(), origin)
		if err != nil {
			zap.S().Warnw("rate limiter error; allowing request", "origin", origin, "error", err)
			ok = true
		}
		if !ok {
			zap.S().Infow("request rate limited", "origin", origin, "path", r.URL.Path)
			writeTabulaError(w, r, tabula.NewRateLimitedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.auth.Verify(r.Context(), sessionToken(r, s.config.Auth.CookieName))
		if err != nil {
			writeTabulaError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, principal)))
	})
}

// sessionToken reads the session cookie, falling back to a Bearer header.
func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// clientOrigin identifies the caller for rate limiting: the first
// X-Forwarded-For hop when trusted, else the remote address.
func clientOrigin(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
