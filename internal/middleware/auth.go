// Package middleware содержит HTTP middleware сервиса корпоративных скидок.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/session"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	claimsKey    contextKey = "claims"
)

const authCookieName = "session"

// Sessions описывает выпуск и проверку токенов сессий.
type Sessions interface {
	Issue(p model.Principal) (string, time.Time, error)
	Parse(ctx context.Context, token string) (*session.Claims, error)
	Revoke(ctx context.Context, c *session.Claims) error
}

// AuthMiddleware выполняет проверку аутентификации по токену сессии из cookie или заголовка Authorization.
type AuthMiddleware struct {
	sessions Sessions
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware.
func NewAuthMiddleware(sessions Sessions) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
	}
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": strings.ToLower(http.StatusText(status))})
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware проверяет токен сессии и добавляет субъекта в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized)
			return
		}

		claims, err := a.sessions.Parse(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized)
			return
		}

		p, err := claims.Principal()
		if err != nil {
			writeError(w, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireKind пропускает только субъектов указанных типов. Используется после Middleware.
func RequireKind(kinds ...model.AccountKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := GetPrincipalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized)
				return
			}
			if !slices.Contains(kinds, p.Kind) {
				writeError(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetAuthCookie выпускает токен для субъекта p и устанавливает cookie сессии.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, p model.Principal) (string, time.Time, error) {
	token, expiresAt, err := a.sessions.Issue(p)
	if err != nil {
		return "", time.Time{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token, expiresAt, nil
}

// ClearAuthCookie удаляет cookie сессии.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Revoke отзывает токен текущей сессии.
func (a *AuthMiddleware) Revoke(ctx context.Context) error {
	claims, ok := ctx.Value(claimsKey).(*session.Claims)
	if !ok {
		return nil
	}
	return a.sessions.Revoke(ctx, claims)
}

// GetPrincipalFromContext извлекает субъекта из контекста запроса.
func GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(model.Principal)
	return p, ok
}

// WithPrincipal возвращает контекст с субъектом p.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}
