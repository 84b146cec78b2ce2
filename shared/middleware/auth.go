package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/itchan-dev/blog/shared/domain"
	"github.com/itchan-dev/blog/shared/logger"
	"github.com/itchan-dev/blog/shared/utils"
)

// Key to store the user claims in the request context
type key int

const UserClaimsKey key = 0

const AccessTokenCookie = "accessToken"

type TokenDecoder interface {
	User(jwtStr string) (*domain.User, error)
}

type Auth struct {
	jwt TokenDecoder
}

func NewAuth(jwt TokenDecoder) *Auth {
	return &Auth{jwt: jwt}
}

// AdminOnly lets through requests carrying a valid admin token,
// either as the accessToken cookie or an Authorization bearer header.
func (a *Auth) AdminOnly() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractToken(r)
			if tokenString == "" {
				http.Error(w, "Please sign-in", http.StatusUnauthorized)
				return
			}

			user, err := a.jwt.User(tokenString)
			if err != nil {
				utils.WriteErrorAndStatusCode(w, err)
				return
			}
			if !user.Admin {
				logger.Log.Warn("non-admin token on admin route", "uid", user.Id, "path", r.URL.Path)
				http.Error(w, "Access denied. Only for admin", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), UserClaimsKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth populates the user when a valid token is present and never rejects.
func (a *Auth) OptionalAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := extractToken(r); tokenString != "" {
				if user, err := a.jwt.User(tokenString); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), UserClaimsKey, user))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return ""
}

// GetUserFromContext retrieves the user from the context
func GetUserFromContext(r *http.Request) *domain.User {
	user, ok := r.Context().Value(UserClaimsKey).(*domain.User)
	if !ok {
		return nil
	}
	return user
}
