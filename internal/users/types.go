// Package users stores accounts. Email uniqueness is enforced through a
// separate email -> user_id table written in the same transaction as the user.
package users

import (
	"strings"
	"time"
)

// Roles
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is the item stored in the users DynamoDB table.
type User struct {
	ID            string    `dynamodbav:"user_id" json:"id"` // PK
	Name          string    `dynamodbav:"name" json:"name"`
	Email         string    `dynamodbav:"email" json:"email"`
	PasswordHash  string    `dynamodbav:"password_hash" json:"-"`
	Roles         []string  `dynamodbav:"roles,stringset,omitempty" json:"roles"`
	EmailVerified bool      `dynamodbav:"email_verified" json:"emailVerified"`
	CreatedAt     time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ChooseRoles grants ADMIN only when it is explicitly requested; anything else is USER.
func ChooseRoles(requested []string) []string {
	for _, r := range requested {
		if strings.EqualFold(strings.TrimSpace(r), RoleAdmin) {
			return []string{RoleAdmin}
		}
	}
	return []string{RoleUser}
}

// NormalizeEmail is the form used as the uniqueness key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type emailRef struct {
	Email  string `dynamodbav:"email"` // PK
	UserID string `dynamodbav:"user_id"`
}
