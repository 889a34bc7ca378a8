// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Role is a closed set of user roles. Authorization sites switch on the
// typed value rather than comparing raw strings scattered across handlers.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a raw claim to a Role; unknown values come back as citizen
// with ok=false so callers can reject them.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleCitizen, RoleAgent, RoleAdmin, RoleSuperAdmin:
		return Role(raw), true
	default:
		return RoleCitizen, false
	}
}

// IsAdmin reports whether the role carries administrative rights.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Identity represents the authenticated user's identity.
// This interface abstracts identity extraction from the web framework,
// allowing services to access actor information without depending on Gin.
type Identity interface {
	// UserID returns the authenticated user's ID.
	UserID() uuid.UUID
	// Role returns the user's role.
	Role() Role
	// CommuneID returns the agent's commune, or uuid.Nil for non-agents.
	CommuneID() uuid.UUID
	// IsAuthenticated returns true if the user is authenticated.
	IsAuthenticated() bool
}

// identity is the concrete implementation of Identity.
type identity struct {
	userID        uuid.UUID
	role          Role
	communeID     uuid.UUID
	authenticated bool
}

func (i *identity) UserID() uuid.UUID    { return i.userID }
func (i *identity) Role() Role           { return i.role }
func (i *identity) CommuneID() uuid.UUID { return i.communeID }
func (i *identity) IsAuthenticated() bool {
	return i.authenticated
}

// NewIdentity builds an Identity directly; used by tests and non-HTTP callers.
func NewIdentity(userID uuid.UUID, role Role, communeID uuid.UUID) Identity {
	return &identity{userID: userID, role: role, communeID: communeID, authenticated: true}
}

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if user info is not present.
func GetIdentity(c *gin.Context) Identity {
	userID, userOK := c.Get(ContextUserIDKey)
	if !userOK {
		return &identity{authenticated: false}
	}

	uid, ok := userID.(uuid.UUID)
	if !ok {
		return &identity{authenticated: false}
	}

	role := RoleCitizen
	if raw, ok := c.Get(ContextRoleKey); ok {
		if r, ok := raw.(Role); ok {
			role = r
		}
	}

	communeID := uuid.Nil
	if raw, ok := c.Get(ContextCommuneIDKey); ok {
		if cid, ok := raw.(uuid.UUID); ok {
			communeID = cid
		}
	}

	return &identity{
		userID:        uid,
		role:          role,
		communeID:     communeID,
		authenticated: true,
	}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the user is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
