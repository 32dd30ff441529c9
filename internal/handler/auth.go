package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/unclebandit/smscampaigns/internal/controller"
	"github.com/unclebandit/smscampaigns/internal/logger"
)

const accessTokenType = "access"

// RequireAuth checks the bearer access token and stores the owner id from its
// "id" claim in the request context.
func RequireAuth(secret string, l *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Token not provided")
				return
			}
			if secret == "" {
				l.Error("JWT_ACCESS_SECRET_KEY not configured")
				unauthorized(w, "Authentication not configured")
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil {
				l.Debug("Rejected token", zap.Error(err))
				unauthorized(w, "Invalid token")
				return
			}

			if _, ok := claims["exp"].(float64); !ok {
				unauthorized(w, "Invalid token claims")
				return
			}
			if t, _ := claims["type"].(string); t != accessTokenType {
				unauthorized(w, "Token type mismatch")
				return
			}

			ownerID, ok := ownerFromClaims(claims)
			if !ok {
				unauthorized(w, "Invalid user ID in token")
				return
			}

			next.ServeHTTP(w, r.WithContext(controller.WithOwner(r.Context(), ownerID)))
		})
	}
}

// ownerFromClaims accepts both numeric and string user ids.
func ownerFromClaims(claims jwt.MapClaims) (string, bool) {
	switch v := claims["id"].(type) {
	case string:
		return v, v != ""
	case float64:
		return fmt.Sprintf("%.0f", v), true
	}
	return "", false
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":%q}\n", msg)
}
