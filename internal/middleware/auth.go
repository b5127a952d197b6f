package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminAuth guards admin routes with a pre-shared key sent as "Bearer <key>".
// An empty key disables authentication, which keeps local development simple.
type AdminAuth struct {
	key string
}

// NewAdminAuth creates the guard for key (ADMIN_KEY).
func NewAdminAuth(key string) *AdminAuth {
	return &AdminAuth{key: key}
}

// Enabled reports whether a key is configured.
func (a *AdminAuth) Enabled() bool {
	return a.key != ""
}

type authFailure struct {
	code    string
	message string
}

// check validates the Authorization header against the configured key.
func (a *AdminAuth) check(c *gin.Context) *authFailure {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return &authFailure{code: "AUTH_REQUIRED", message: "Authorization header required"}
	}

	// Expect "Bearer <token>" format
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return &authFailure{code: "AUTH_INVALID_FORMAT", message: "Invalid authorization format. Use: Bearer <admin_key>"}
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(a.key)) != 1 {
		return &authFailure{code: "AUTH_INVALID_KEY", message: "Invalid admin key"}
	}
	return nil
}

// Middleware rejects requests without a valid admin key.
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		if failure := a.check(c); failure != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": failure.message,
				"code":  failure.code,
			})
			return
		}

		c.Next()
	}
}

// Verify is a handler that verifies if the provided admin key is valid.
// Used by clients to check if their stored key is still valid.
func (a *AdminAuth) Verify(c *gin.Context) {
	if !a.Enabled() {
		c.JSON(http.StatusOK, gin.H{
			"valid":        true,
			"auth_enabled": false,
			"message":      "Authentication is not configured",
		})
		return
	}

	if failure := a.check(c); failure != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"valid": false,
			"error": failure.message,
			"code":  failure.code,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"auth_enabled": true,
	})
}

// Status reports whether authentication is enabled.
// This is a public endpoint that doesn't require authentication.
func (a *AdminAuth) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"auth_enabled": a.Enabled(),
	})
}
