package auth

import "github.com/gin-gonic/gin"

// Role names carried in tokens.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const principalKey = "auth.principal"

// Principal is the authenticated caller of one request.
type Principal struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (p *Principal) IsAdmin() bool { return p.HasRole(RoleAdmin) }

// CanActFor reports whether the caller may access userID's resources.
func (p *Principal) CanActFor(userID string) bool {
	return p.UserID == userID || p.IsAdmin()
}

func principalFromClaims(c *Claims) *Principal {
	return &Principal{UserID: c.UserID, Email: c.Subject, Name: c.Name, Roles: c.Roles}
}

// SetPrincipal stores p on the request context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the request's principal, if any.
func PrincipalFrom(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}
