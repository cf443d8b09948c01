package verification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/logging"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
	"github.com/imrishuroy/go-vinyl-storefront/internal/users"
)

// Status is the outcome of redeeming a token.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusExpired  Status = "EXPIRED"
	StatusNotFound Status = "NOT_FOUND"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyVerified = errors.New("email already verified")
	ErrPasswordEmpty   = errors.New("password is required")
)

// TokenStore persists tokens.
type TokenStore interface {
	Put(ctx context.Context, t *Token) error
	Get(ctx context.Context, token string) (*Token, error)
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID, purpose string) error
}

// UserStore is the slice of users.Store the service needs.
type UserStore interface {
	Get(ctx context.Context, id string) (*users.User, error)
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	SetEmailVerified(ctx context.Context, id string) error
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// Options holds the link bases and token lifetimes.
type Options struct {
	VerifyURL       string
	ResetURL        string
	VerificationTTL time.Duration
	ResetTTL        time.Duration
}

type Service struct {
	tokens TokenStore
	users  UserStore
	mailer mail.Sender
	opts   Options

	nowFunc   func() time.Time
	tokenFunc func() string
}

func NewService(tokens TokenStore, us UserStore, mailer mail.Sender, opts Options) *Service {
	return &Service{
		tokens:    tokens,
		users:     us,
		mailer:    mailer,
		opts:      opts,
		nowFunc:   time.Now,
		tokenFunc: uuid.NewString,
	}
}

// IssueVerification replaces any outstanding verification token for u and
// mails a fresh link.
func (s *Service) IssueVerification(ctx context.Context, u *users.User) error {
	if u.EmailVerified {
		return ErrAlreadyVerified
	}
	t, err := s.issue(ctx, u.ID, PurposeVerifyEmail, s.opts.VerificationTTL)
	if err != nil {
		return err
	}
	link := s.opts.VerifyURL + "?token=" + url.QueryEscape(t.Token)
	body := fmt.Sprintf("Hi %s,\n\nPlease confirm your email address by opening the link below:\n%s\n\nThe link expires in %s.\n",
		u.Name, link, s.opts.VerificationTTL)
	return s.mailer.Send(ctx, mail.Message{To: u.Email, Subject: "Confirm your email", Body: body, Kind: "verify"})
}

// Verify redeems a verification token. A consumed or unknown token is
// NOT_FOUND; an expired one is deleted and reported as EXPIRED.
func (s *Service) Verify(ctx context.Context, token string) (Status, error) {
	t, err := s.tokens.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if t == nil || t.Purpose != PurposeVerifyEmail {
		return StatusNotFound, nil
	}
	if t.Expired(s.nowFunc()) {
		if err := s.tokens.Delete(ctx, t.Token); err != nil {
			return "", err
		}
		return StatusExpired, nil
	}
	if err := s.users.SetEmailVerified(ctx, t.UserID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.dropOrphan(ctx, t)
			return StatusNotFound, nil
		}
		return "", err
	}
	if err := s.tokens.DeleteForUser(ctx, t.UserID, PurposeVerifyEmail); err != nil {
		logging.FromContext(ctx).Warn("delete verification tokens", zap.String("user_id", t.UserID), zap.Error(err))
	}
	return StatusSuccess, nil
}

// RequestPasswordReset mails a reset link to the account registered under email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrUserNotFound
	}
	t, err := s.issue(ctx, u.ID, PurposePasswordReset, s.opts.ResetTTL)
	if err != nil {
		return err
	}
	link := s.opts.ResetURL + "?token=" + url.QueryEscape(t.Token)
	body := fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password:\n%s\n\nThe link expires in %s. If you did not ask for this, ignore this email.\n",
		u.Name, link, s.opts.ResetTTL)
	return s.mailer.Send(ctx, mail.Message{To: u.Email, Subject: "Password change", Body: body, Kind: "reset"})
}

// ChangePassword redeems a reset token and stores the new password hash.
func (s *Service) ChangePassword(ctx context.Context, token, newPassword string) (Status, error) {
	if newPassword == "" {
		return "", ErrPasswordEmpty
	}
	t, err := s.tokens.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if t == nil || t.Purpose != PurposePasswordReset {
		return StatusNotFound, nil
	}
	if t.Expired(s.nowFunc()) {
		if err := s.tokens.Delete(ctx, t.Token); err != nil {
			return "", err
		}
		return StatusExpired, nil
	}
	u, err := s.users.Get(ctx, t.UserID)
	if err != nil {
		return "", err
	}
	if u == nil {
		s.dropOrphan(ctx, t)
		return "", ErrUserNotFound
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.users.SetPasswordHash(ctx, u.ID, hash); err != nil {
		return "", err
	}
	if err := s.tokens.DeleteForUser(ctx, u.ID, PurposePasswordReset); err != nil {
		logging.FromContext(ctx).Warn("delete reset tokens", zap.String("user_id", u.ID), zap.Error(err))
	}
	return StatusSuccess, nil
}

func (s *Service) issue(ctx context.Context, userID, purpose string, ttl time.Duration) (*Token, error) {
	if err := s.tokens.DeleteForUser(ctx, userID, purpose); err != nil {
		return nil, err
	}
	now := s.nowFunc().UTC()
	t := &Token{
		Token:     s.tokenFunc(),
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.tokens.Put(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// dropOrphan removes a token whose user is gone.
func (s *Service) dropOrphan(ctx context.Context, t *Token) {
	if err := s.tokens.Delete(ctx, t.Token); err != nil {
		logging.FromContext(ctx).Warn("delete orphaned token",
			zap.String("user_id", t.UserID), zap.String("purpose", t.Purpose), zap.Error(err))
	}
}
