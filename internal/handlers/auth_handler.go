package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/users"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
	"github.com/imrishuroy/go-vinyl-storefront/internal/verification"
)

type publicUser struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

type tokenResponse struct {
	Token     string     `json:"token"`
	Type      string     `json:"type"`
	ExpiresAt int64      `json:"expiresAt"`
	User      publicUser `json:"user"`
}

func (a *api) registerAuthRoutes(g *gin.RouterGroup) {
	g.POST("/login", a.login)
	g.GET("/verify-email", a.verifyEmail)
	g.POST("/verify-email", a.verifyEmail)
	g.POST("/change-password", a.changePassword)
}

func (a *api) login(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.LoginRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	log := logging.FromContext(ctx).With(zap.String("email", req.Email))

	u, err := a.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		internalError(c, "load user for login", err)
		return
	}
	if u == nil || auth.CheckPassword(u.PasswordHash, req.Password) != nil {
		log.Warn("bad credentials")
		respond(c, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}

	token, exp, err := a.Issuer.Issue(u.Email, u.ID, u.Name, u.Roles)
	if err != nil {
		internalError(c, "issue token", err)
		return
	}
	log.Info("login succeeded", zap.String("user_id", u.ID))
	respond(c, http.StatusOK, "success", tokenResponse{
		Token:     token,
		Type:      "Bearer",
		ExpiresAt: exp.Unix(),
		User:      toPublicUser(u),
	})
}

// tokenFromRequest reads the token from the query string first, then from an
// optional JSON body.
func tokenFromRequest(c *gin.Context) (string, validation.ChangePasswordRequest, error) {
	var body validation.ChangePasswordRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			return "", body, err
		}
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(body.Token)
	}
	return token, body, nil
}

func (a *api) verifyEmail(c *gin.Context) {
	token, _, err := tokenFromRequest(c)
	if err != nil {
		respond(c, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	if token == "" {
		respond(c, http.StatusBadRequest, "error", "token_required")
		return
	}
	a.redeemVerification(c, token)
}

func (a *api) redeemVerification(c *gin.Context, token string) {
	st, err := a.Verification.Verify(c.Request.Context(), token)
	if err != nil {
		internalError(c, "verify email", err)
		return
	}
	switch st {
	case verification.StatusSuccess:
		respond(c, http.StatusOK, "success", "verified")
	case verification.StatusExpired:
		respond(c, http.StatusGone, "error", "expired")
	default:
		respond(c, http.StatusNotFound, "error", "invalid_or_not_found")
	}
}

func (a *api) changePassword(c *gin.Context) {
	token, body, err := tokenFromRequest(c)
	if err != nil {
		respond(c, http.StatusBadRequest, "invalid_request_body", err.Error())
		return
	}
	if token == "" {
		respond(c, http.StatusBadRequest, "error", "token_required")
		return
	}
	if strings.TrimSpace(body.NewPassword) == "" {
		respond(c, http.StatusBadRequest, "error", "password_required")
		return
	}

	st, err := a.Verification.ChangePassword(c.Request.Context(), token, body.NewPassword)
	switch {
	case errors.Is(err, verification.ErrUserNotFound):
		respond(c, http.StatusNotFound, "error", "user_not_found")
	case err != nil:
		internalError(c, "change password", err)
	case st == verification.StatusSuccess:
		respond(c, http.StatusOK, "success", "password_changed")
	case st == verification.StatusExpired:
		respond(c, http.StatusGone, "error", "expired")
	default:
		respond(c, http.StatusNotFound, "error", "invalid_or_not_found")
	}
}

func toPublicUser(u *users.User) publicUser {
	return publicUser{ID: u.ID, Email: u.Email, Name: u.Name, Roles: u.Roles}
}
