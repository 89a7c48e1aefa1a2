// middleware/auth.go

package middleware

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flowgate/api/config"
	logger "github.com/flowgate/api/logging"
)

// AccessClaims are the token claims this service reads. Signature verification
// happens at the API gateway in front of this service; here the token is
// parsed for its identity claims only.
type AccessClaims struct {
	jwt.StandardClaims
	Groups   []string `json:"groups"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
}

// AuthMiddleware extracts the caller's identity from the bearer token and
// places it on the request context for the controllers and DAOs.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := parseClaims(c.GetHeader("Authorization"))
		if err != nil {
			logger.Warn("Rejected request with missing or malformed token", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("requestingUserID", claims.Subject)
		c.Set("requestingUserEmail", claims.Email)
		c.Set("requestingUser", claims.Username)
		c.Set("requestingGroups", claims.Groups)

		c.Next()
	}
}

// AdminRequired gates administrative routes on the configured admin group.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminGroup := config.GetString("auth.adminGroup")
		groups, _ := c.Get("requestingGroups")
		userGroups, _ := groups.([]string)

		for _, group := range userGroups {
			if group == adminGroup {
				c.Next()
				return
			}
		}

		userID, _ := c.Get("requestingUserID")
		logger.Warn("Non-admin attempted administrative route",
			zap.Any("userID", userID),
			zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		c.Abort()
	}
}

func parseClaims(tokenString string) (*AccessClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return nil, jwt.NewValidationError("missing token", jwt.ValidationErrorMalformed)
	}

	claims := &AccessClaims{}
	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.NewValidationError("token has no subject", jwt.ValidationErrorClaimsInvalid)
	}
	return claims, nil
}
