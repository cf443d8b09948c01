package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
	"github.com/imrishuroy/go-vinyl-storefront/internal/verification"
)

func (a *api) registerMailRoutes(g *gin.RouterGroup) {
	g.POST("/change-password", a.requestPasswordReset)
	g.POST("/send", auth.RequireRole(auth.RoleAdmin), a.sendMail)
}

// requestPasswordReset mails a reset link to the account named by ?to=.
func (a *api) requestPasswordReset(c *gin.Context) {
	to := strings.TrimSpace(c.Query("to"))
	if to == "" {
		respond(c, http.StatusBadRequest, "error", "to_required")
		return
	}
	err := a.Verification.RequestPasswordReset(c.Request.Context(), to)
	switch {
	case errors.Is(err, verification.ErrUserNotFound):
		respond(c, http.StatusNotFound, "error", "User not found")
	case err != nil:
		internalError(c, "request password reset", err)
	default:
		respond(c, http.StatusOK, "success", "sent")
	}
}

func (a *api) sendMail(c *gin.Context) {
	var req validation.SendMailRequest
	if err := validation.BindAndValidate(c, &req, a.v); err != nil {
		return
	}
	msg := mail.Message{From: a.MailFrom, To: req.To, Subject: req.Subject, Body: req.Body, Kind: "manual"}
	if err := a.Mailer.Send(c.Request.Context(), msg); err != nil {
		internalError(c, "send mail", err)
		return
	}
	respond(c, http.StatusOK, "success", nil)
}
