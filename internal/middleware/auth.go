package middleware

import (
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"paygate_app_echo/internal/models"
	"paygate_app_echo/internal/services"
)

const userCacheTTL = 5 * time.Minute

// RequireAuth returns a middleware that verifies Firebase ID tokens from the
// Authorization header and resolves the local user row. Downstream handlers
// read userID / isAdmin / userEmail from the context.
func RequireAuth(authClient *auth.Client, db *gorm.DB, cache *services.RedisCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Check if Firebase is initialized
			if authClient == nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Authentication is not configured")
			}

			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing bearer token")
			}

			decodedToken, err := authClient.VerifyIDToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			lookup := func() (models.User, error) {
				var u models.User
				err := db.WithContext(c.Request().Context()).
					First(&u, "firebase_uid = ?", decodedToken.UID).Error
				return u, err
			}

			var user models.User
			if cache != nil {
				user, err = services.GetOrSet(cache, c.Request().Context(), "users:uid:"+decodedToken.UID, userCacheTTL, lookup)
			} else {
				user, err = lookup()
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unknown user")
			}

			// Set user info in context for downstream handlers
			c.Set("userID", user.ID)
			c.Set("isAdmin", user.IsAdmin())
			c.Set("userEmail", user.Email)

			return next(c)
		}
	}
}
