package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"time"

	app "storefront/src/app"
	cfg "storefront/src/configuration"
	db "storefront/src/repository"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type (
	AuthHandler struct {
		oidcProvider           *oidc.Provider
		verifier               *oidc.IDTokenVerifier
		AuthConfig             *oauth2.Config
		tokens                 db.TokenStore
		logger                 logrus.FieldLogger
		AccessTokenCookieName  string
		RefreshTokenCookieName string
		IDTokenCookieName      string
		defaultAbilities       []string
		tokenTTL               time.Duration
	}

	CreateTokenBody struct {
		Name      string   `json:"name" binding:"required"`
		Abilities []string `json:"abilities"`
		// ExpiresIn is a Go duration string; empty uses the configured TTL.
		ExpiresIn string `json:"expires_in"`
	}

	AccountResponse struct {
		Principal app.Principal    `json:"principal"`
		Token     *app.AccessToken `json:"token"`
	}
)

const (
	stateCookieName    = "sf_oauth_state"
	callbackCookieName = "callback"
	webTokenName       = "web"
)

func randString(nByte int) (string, error) {
	b := make([]byte, nByte)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewAuthHandler discovers the OIDC provider. When discovery fails the
// handler still serves token endpoints; the login flow answers 503.
func NewAuthHandler(config *cfg.Properties, tokens db.TokenStore, logger logrus.FieldLogger) *AuthHandler {
	handler := &AuthHandler{
		tokens:                 tokens,
		logger:                 logger,
		AccessTokenCookieName:  config.Auth.AccessTokenCookieName,
		RefreshTokenCookieName: config.Auth.RefreshTokenCookieName,
		IDTokenCookieName:      config.Auth.IDTokenCookieName,
		defaultAbilities:       config.Auth.DefaultAbilities,
		tokenTTL:               config.Auth.TokenTTL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Auth.ReadTimeout)
	defer cancel()
	provider, err := oidc.NewProvider(ctx, config.Auth.Host)
	if err != nil {
		logger.WithError(err).WithField("issuer", config.Auth.Host).Error("can not create OIDC provider")
		return handler
	}
	logger.WithField("endpoint", provider.Endpoint().AuthURL).Debug("OIDC provider discovered")

	handler.oidcProvider = provider
	handler.verifier = provider.Verifier(&oidc.Config{ClientID: config.Auth.ID})
	handler.AuthConfig = &oauth2.Config{
		ClientID:     config.Auth.ID,
		ClientSecret: config.Auth.Secret,
		RedirectURL:  config.Auth.Redirect,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return handler
}

func (a *AuthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (a *AuthHandler) providerReady(c *gin.Context) bool {
	if a.oidcProvider == nil {
		abortWithMessage(c, http.StatusServiceUnavailable, "Login is unavailable")
		return false
	}
	return true
}

func (a *AuthHandler) newState(c *gin.Context) (string, bool) {
	state, err := randString(16)
	if err != nil {
		a.logger.WithError(err).Error("can not generate oauth state")
		abortWithMessage(c, http.StatusInternalServerError, "Server Error")
		return "", false
	}
	c.SetCookie(stateCookieName, state, 600, "/", "", false, true)
	return state, true
}

// Login returns the provider url for front ends that redirect themselves.
func (a *AuthHandler) Login(c *gin.Context) {
	if !a.providerReady(c) {
		return
	}
	state, ok := a.newState(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"ref": a.AuthConfig.AuthCodeURL(state)})
}

func (a *AuthHandler) Signin(c *gin.Context) {
	if !a.providerReady(c) {
		return
	}
	state, ok := a.newState(c)
	if !ok {
		return
	}
	c.Redirect(http.StatusFound, a.AuthConfig.AuthCodeURL(state))
}

func (a *AuthHandler) Callback(c *gin.Context) {
	if !a.providerReady(c) {
		return
	}
	expected, err := c.Cookie(stateCookieName)
	if err != nil || expected == "" || c.Query("state") != expected {
		abortWithMessage(c, http.StatusBadRequest, "Invalid state")
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	ctx := c.Request.Context()
	token, err := a.AuthConfig.Exchange(ctx, c.Query("code"))
	if err != nil {
		a.logger.WithError(err).Warn("code exchange failed")
		abortWithMessage(c, http.StatusBadRequest, "Error getting access token")
		return
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		abortWithMessage(c, http.StatusBadRequest, "No ID token found")
		return
	}
	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		a.logger.WithError(err).Warn("ID token verification failed")
		abortWithMessage(c, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	var claims struct {
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
		Picture  string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		a.logger.WithError(err).Warn("can not parse ID token claims")
		abortWithMessage(c, http.StatusUnauthorized, msgUnauthenticated)
		return
	}
	principal := app.Principal{
		ID:      idToken.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
		Picture: claims.Picture,
	}
	if principal.Name == "" {
		principal.Name = claims.Nickname
	}

	if err := a.tokens.SavePrincipal(ctx, principal); err != nil {
		a.serverError(c, err)
		return
	}
	plain, _, err := a.tokens.IssueToken(ctx, principal.ID, webTokenName, a.defaultAbilities, a.tokenTTL)
	if err != nil {
		a.serverError(c, err)
		return
	}

	maxAge := int(a.tokenTTL.Seconds())
	c.SetCookie(a.AccessTokenCookieName, plain, maxAge, "/", "", false, true)
	c.SetCookie(a.RefreshTokenCookieName, token.RefreshToken, maxAge, "/", "", false, true)
	c.SetCookie(a.IDTokenCookieName, rawIDToken, maxAge, "/", "", false, true)
	a.logger.WithField("principal", principal.ID).Info("signed in")

	redirect, err := c.Cookie(callbackCookieName)
	if err != nil || redirect == "" || !isLocalPath(redirect) {
		redirect = "/"
	}
	c.Redirect(http.StatusFound, redirect)
}

func (a *AuthHandler) Logout(c *gin.Context) {
	if token := CurrentAccessToken(c); token != nil {
		if err := a.tokens.RevokeToken(c.Request.Context(), token.ID); err != nil && !errors.Is(err, db.ErrTokenNotFound) {
			a.logger.WithError(err).Warn("can not revoke token on logout")
		}
	}
	c.SetCookie(a.AccessTokenCookieName, "", -1, "/", "", false, true)
	c.SetCookie(a.RefreshTokenCookieName, "", -1, "/", "", false, true)
	c.SetCookie(a.IDTokenCookieName, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

func (a *AuthHandler) Account(c *gin.Context) {
	principal, _ := CurrentPrincipal(c)
	c.JSON(http.StatusOK, AccountResponse{Principal: principal, Token: CurrentAccessToken(c)})
}

// CreateToken issues a new token for the caller. It may only carry abilities
// the caller's own token has.
func (a *AuthHandler) CreateToken(c *gin.Context) {
	var body CreateTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithMessage(c, http.StatusUnprocessableEntity, "The name field is required.")
		return
	}
	ttl := a.tokenTTL
	if body.ExpiresIn != "" {
		parsed, err := time.ParseDuration(body.ExpiresIn)
		if err != nil || parsed <= 0 {
			abortWithMessage(c, http.StatusUnprocessableEntity, "The expires_in field must be a positive duration.")
			return
		}
		ttl = parsed
	}
	current := CurrentAccessToken(c)
	for _, ability := range body.Abilities {
		if !current.Can(ability) {
			abortWithMessage(c, http.StatusForbidden, msgForbidden)
			return
		}
	}

	principal, _ := CurrentPrincipal(c)
	plain, token, err := a.tokens.IssueToken(c.Request.Context(), principal.ID, body.Name, body.Abilities, ttl)
	if err != nil {
		a.serverError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"plain_text_token": plain, "access_token": token})
}

func (a *AuthHandler) RevokeCurrentToken(c *gin.Context) {
	token := CurrentAccessToken(c)
	if err := a.tokens.RevokeToken(c.Request.Context(), token.ID); err != nil {
		a.serverError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *AuthHandler) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	a.logger.WithError(err).Error("token store failed")
	abortWithMessage(c, http.StatusInternalServerError, "Server Error")
}

func isLocalPath(p string) bool {
	return len(p) > 0 && p[0] == '/' && (len(p) == 1 || (p[1] != '/' && p[1] != '\\'))
}
