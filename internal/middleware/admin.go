package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/polycopy/ftsync/internal/config"
	"github.com/polycopy/ftsync/internal/pkg/apperrors"
)

const HeaderAdminKey = "X-Admin-Key"

// CronOrAdmin lets a request through when it carries the scheduler's bearer
// secret or the admin key. With neither configured every request is refused.
func CronOrAdmin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || (cfg.Auth.CronSecret == "" && cfg.Auth.AdminKey == "") {
			abortWith(c, apperrors.New(apperrors.ErrAuthFailed, "no cron secret or admin key configured", nil))
			return
		}
		if secret := cfg.Auth.CronSecret; secret != "" {
			if token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && equal(token, secret) {
				c.Next()
				return
			}
		}
		if key := cfg.Auth.AdminKey; key != "" && equal(c.GetHeader(HeaderAdminKey), key) {
			c.Next()
			return
		}
		abortWith(c, apperrors.New(apperrors.ErrAuthFailed, "invalid cron secret or admin key", nil))
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.HTTPStatus, err)
}
