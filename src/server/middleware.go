package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "storefront/src/app"
	db "storefront/src/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	ctxPrincipal   = "principal"
	ctxAccessToken = "access_token"
	bearerPrefix   = "Bearer "

	msgUnauthenticated = "Unauthenticated"
	msgForbidden       = "Forbidden"
)

// Authenticate resolves the caller from a bearer token or the access cookie.
// It never rejects a request; RequireAuth and RequireAbility do that.
func Authenticate(store db.TokenStore, cookieName string, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		plain := bearerToken(c)
		if plain == "" && cookieName != "" {
			plain, _ = c.Cookie(cookieName)
		}
		if plain == "" {
			c.Next()
			return
		}

		principal, token, err := store.FindToken(c.Request.Context(), plain)
		switch {
		case err == nil:
			c.Set(ctxPrincipal, principal)
			c.Set(ctxAccessToken, &token)
		case errors.Is(err, db.ErrTokenNotFound):
			logger.WithField("path", c.Request.URL.Path).Debug("unknown access token")
		default:
			logger.WithError(err).Error("token lookup failed")
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a principal.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			deny(c, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		c.Next()
	}
}

// RequireAbility lets the request through only when the caller's current
// access token carries ability.
func RequireAbility(ability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			deny(c, http.StatusUnauthorized, msgUnauthenticated)
			return
		}
		if !CurrentAccessToken(c).Can(ability) {
			deny(c, http.StatusForbidden, msgForbidden)
			return
		}
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (app.Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return app.Principal{}, false
	}
	p, ok := v.(app.Principal)
	return p, ok
}

// CurrentAccessToken returns nil when the caller has no token.
func CurrentAccessToken(c *gin.Context) *app.AccessToken {
	v, ok := c.Get(ctxAccessToken)
	if !ok {
		return nil
	}
	token, _ := v.(*app.AccessToken)
	return token
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
}

// deny rejects a request at the gate and counts the denial.
func deny(c *gin.Context, status int, message string) {
	gateDenials.WithLabelValues(strconv.Itoa(status)).Inc()
	abortWithMessage(c, status, message)
}

func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

// RequestLogger logs one line per request.
func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      path,
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if p, ok := CurrentPrincipal(c); ok {
			entry = entry.WithField("principal", p.ID)
		}
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			entry.Error("http_request")
		case status >= 400:
			entry.Warn("http_request")
		default:
			entry.Info("http_request")
		}
	}
}
