package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/leasingborsen/listing-reconciler/internal/platform/ctxutil"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

// ReviewerClaims identifies the admin acting on a session. Name falls back to Subject.
type ReviewerClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c ReviewerClaims) Reviewer() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return strings.TrimSpace(c.Subject)
}

type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

// NewAuthMiddleware returns nil when secret is empty; the router then skips auth.
func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), secret: []byte(secret)}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractBearer(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		claims, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": err.Error(), "code": "unauthorized"},
			})
			return
		}
		reviewer := claims.Reviewer()
		if reviewer == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "token carries no reviewer identity", "code": "forbidden"},
			})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithReviewer(c.Request.Context(), reviewer, tokenString))
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*ReviewerClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &ReviewerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return am.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*ReviewerClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

// IssueToken signs an HS256 reviewer token; used by tooling and tests.
func IssueToken(secret, reviewer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ReviewerClaims{
		Name: reviewer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   reviewer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}
