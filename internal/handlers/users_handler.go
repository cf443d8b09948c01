package handlers

import (
	"errors"
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

func (a *api) registerUserRoutes(g *gin.RouterGroup) {
	g.POST("", a.createUser)
	g.GET("/verify", a.verifyUser)

	admin := g.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.GET("", a.listUsers)
	admin.GET("/:id", a.getUser)
	admin.PATCH("/:id", a.updateUser)
	admin.DELETE("/:id", a.deleteUser)
	admin.POST("/resend-verification/:userId", a.resendVerification)
}

func (a *api) createUser(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.CreateUserRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, "hash password", err)
		return
	}
	u := &users.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Roles:        users.ChooseRoles(req.Roles),
	}
	if err := a.Users.Create(ctx, u); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			respond(c, http.StatusConflict, "error", "Email already in use")
			return
		}
		internalError(c, "create user", err)
		return
	}

	if err := a.Verification.IssueVerification(ctx, u); err != nil {
		logging.FromContext(ctx).Error("send verification email", zap.String("user_id", u.ID), zap.Error(err))
		respond(c, http.StatusInternalServerError, "error", "Failed to send verification email")
		return
	}
	respond(c, http.StatusCreated, "Created Successfully", u)
}

func (a *api) verifyUser(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		respond(c, http.StatusBadRequest, "error", "token_required")
		return
	}
	a.redeemVerification(c, token)
}

func (a *api) listUsers(c *gin.Context) {
	list, err := a.Users.List(c.Request.Context())
	if err != nil {
		internalError(c, "list users", err)
		return
	}
	respond(c, http.StatusOK, "Listed successfully", list)
}

func (a *api) getUser(c *gin.Context) {
	u, err := a.Users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		internalError(c, "get user", err)
		return
	}
	if u == nil {
		notFound(c, "User")
		return
	}
	respond(c, http.StatusOK, "Listed one successfully", u)
}

func (a *api) updateUser(c *gin.Context) {
	ctx := c.Request.Context()
	var req validation.UpdateUserRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	u, err := a.Users.Get(ctx, c.Param("id"))
	if err != nil {
		internalError(c, "get user", err)
		return
	}
	if u == nil {
		notFound(c, "User")
		return
	}

	previousEmail := u.Email
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		u.Email = users.NormalizeEmail(*req.Email)
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			internalError(c, "hash password", err)
			return
		}
		u.PasswordHash = hash
	}
	if req.Roles != nil {
		u.Roles = users.ChooseRoles(req.Roles)
	}
	if req.EmailVerified != nil {
		u.EmailVerified = *req.EmailVerified
	}

	if err := a.Users.Save(ctx, u, previousEmail); err != nil {
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			respond(c, http.StatusConflict, "error", "Email already in use")
		case errors.Is(err, users.ErrNotFound):
			notFound(c, "User")
		default:
			internalError(c, "save user", err)
		}
		return
	}
	respond(c, http.StatusOK, "Edited Successfully", u)
}

func (a *api) deleteUser(c *gin.Context) {
	id := c.Param("id")
	ok, err := a.Users.Delete(c.Request.Context(), id)
	if err != nil {
		internalError(c, "delete user", err)
		return
	}
	if !ok {
		notFound(c, "User")
		return
	}
	respond(c, http.StatusOK, "Deleted Successfully", id)
}

func (a *api) resendVerification(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := a.Users.Get(ctx, c.Param("userId"))
	if err != nil {
		internalError(c, "get user", err)
		return
	}
	if u == nil {
		notFound(c, "User")
		return
	}
	if err := a.Verification.IssueVerification(ctx, u); err != nil {
		if errors.Is(err, verification.ErrAlreadyVerified) {
			respond(c, http.StatusBadRequest, "error", "already_verified")
			return
		}
		internalError(c, "resend verification", err)
		return
	}
	respond(c, http.StatusOK, "success", "sent")
}
