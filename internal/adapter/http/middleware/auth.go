package middleware

import (
	"fmt"
	"strings"
	"time"

	"student-wallet-service/pkg/apperror"
	"student-wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ServiceAuth validates HS256 service-to-service JWTs on internal
// endpoints (fee charges, job triggers, wallet reads). The subject claim
// names the calling service for audit logs.
func ServiceAuth(secret, issuer string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Error(c, apperror.ErrInvalidServiceToken())
			c.Abort()
			return
		}

		token, err := jwt.Parse(authHeader[7:], func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("service token rejected")
			response.Error(c, apperror.ErrInvalidServiceToken())
			c.Abort()
			return
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if sub, _ := claims["sub"].(string); sub != "" {
				c.Set(CtxServiceName, sub)
			}
		}

		c.Next()
	}
}

// IssueServiceToken signs a short-lived HS256 token for a calling
// service. Used by tests and by operators minting tokens for external
// schedulers.
func IssueServiceToken(secret, issuer, serviceName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": serviceName,
		"iss": issuer,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing service token: %w", err)
	}
	return signed, nil
}
