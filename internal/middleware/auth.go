package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// Locals keys set by JWTAuth.
const (
	LocalUserID = "user_id"
	LocalRole   = "role"
)

var errInvalidToken = apperr.New(apperr.KindUnauthorized, "invalid_token", "invalid or expired token")

// JWTAuth verifies an HS256 bearer token and stores its subject and role in
// the request locals.
func JWTAuth(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
			return apperr.ErrUnauthorized
		}
		tokenStr := strings.TrimSpace(authz[7:])

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			return errInvalidToken
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return errInvalidToken
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			return errInvalidToken
		}
		role, _ := claims["role"].(string)

		c.Locals(LocalUserID, sub)
		c.Locals(LocalRole, role)
		return c.Next()
	}
}
