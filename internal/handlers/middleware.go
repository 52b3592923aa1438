package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cyphera/settlement-engine/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// userIDKey is the gin context key the auth middleware stores the caller's
// user id under (spec §6 "HMAC-auth-required via headers X-User-ID and
// cookie access_token").
const userIDKey = "user_id"

// RequireUser enforces the X-User-ID header / access_token cookie pair.
// Verifying access_token against the identity provider happens upstream of
// this service; this middleware only requires both be present and that
// X-User-ID parses as a uuid, mirroring the teacher's X-Account-ID trust
// boundary.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDHeader := c.GetHeader("X-User-ID")
		if userIDHeader == "" {
			sendError(c, http.StatusUnauthorized, "missing X-User-ID header", nil)
			c.Abort()
			return
		}
		if _, err := c.Cookie("access_token"); err != nil {
			sendError(c, http.StatusUnauthorized, "missing access_token cookie", err)
			c.Abort()
			return
		}
		userID, err := uuid.Parse(userIDHeader)
		if err != nil {
			sendError(c, http.StatusUnauthorized, "X-User-ID is not a valid identifier", err)
			c.Abort()
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// currentUser reads the authenticated caller set by RequireUser.
func currentUser(c *gin.Context) uuid.UUID {
	return c.MustGet(userIDKey).(uuid.UUID)
}

// adminClaims is the engine's own internally-issued admin token, the
// settlement-engine analogue of the teacher's Supabase JWT claims — signed
// with a shared HMAC secret rather than fetched from an identity provider's
// JWKS endpoint, since admin tokens here are minted by an internal tool, not
// a third-party auth provider (spec §4.8 "UpdateTransactionStatus (admin)").
type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAdmin verifies a bearer JWT signed with secret and carrying
// role=admin, gating the manual-withdrawal resolution endpoint.
func RequireAdmin(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			sendError(c, http.StatusUnauthorized, "missing authorization header", nil)
			c.Abort()
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			sendError(c, http.StatusUnauthorized, "invalid admin token", err)
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*adminClaims)
		if !ok || claims.Role != "admin" {
			sendError(c, http.StatusForbidden, "token does not grant admin access", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// LogRequest logs each request's outcome, mirroring the teacher's
// development-mode request logger.
func LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debug("request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
