package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// userIDContextKey is the echo context key holding the authenticated user id.
const userIDContextKey = "user-id"

// jwtMiddleware authenticates bearer tokens signed with the instance secret
// (HS256, user id in the subject claim) and stores the user id on the
// request context. Session issuance lives outside this service.
func (s *APIV1Service) jwtMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || token == authHeader {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing authorization token"})
		}

		claims := &jwt.RegisteredClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errUnexpectedSigningMethod
			}
			return []byte(s.Secret), nil
		})
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 32)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid or expired token"})
		}

		c.Set(userIDContextKey, int32(userID))
		return next(c)
	}
}

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

func getUserID(c echo.Context) int32 {
	userID, _ := c.Get(userIDContextKey).(int32)
	return userID
}
