package api

import (
	"context"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"
)

func (s *Server) authRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			return
		}
		claims, err := s.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 4*time.Second)
		defer cancel()

		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Error("revocation check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session check unavailable"})
			return
		}
		if revoked {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "token revoked"})
			return
		}

		user, err := s.store.UserByID(ctx, claims.UserID)
		if err != nil || user.Status != "active" {
			respondJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid user session"})
			return
		}

		authCtx := context.WithValue(r.Context(), userIDContextKey, user.ID)
		authCtx = context.WithValue(authCtx, userRoleContextKey, normalizeRole(user.Role))
		authCtx = context.WithValue(authCtx, tokenContextKey, claims)
		next.ServeHTTP(w, r.WithContext(authCtx))
	})
}

func (s *Server) roleRequired(next http.Handler, roles ...string) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[normalizeRole(role)] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, ok := r.Context().Value(userRoleContextKey).(string)
		if !ok {
			respondJSON(w, http.StatusForbidden, map[string]string{"error": "missing role in auth context"})
			return
		}
		if _, permitted := allowed[role]; !permitted {
			respondJSON(w, http.StatusForbidden, map[string]string{"error": "insufficient permissions"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and counts it by the matched route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, rec.code)
		}
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.code),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func currentUserID(r *http.Request) (int64, error) {
	id, ok := r.Context().Value(userIDContextKey).(int64)
	if !ok || id <= 0 {
		return 0, errors.New("invalid auth context")
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		if candidate := strings.TrimSpace(strings.Split(forwarded, ",")[0]); candidate != "" {
			return candidate
		}
	}

	hostPort := strings.TrimSpace(r.RemoteAddr)
	if hostPort == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(hostPort); err == nil {
		return addr.Addr().String()
	}
	if addr, err := netip.ParseAddr(hostPort); err == nil {
		return addr.String()
	}
	return hostPort
}
