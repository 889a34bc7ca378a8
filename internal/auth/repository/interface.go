package repository

import (
	"context"

	"github.com/google/uuid"
)

// User represents an account row. Agent quota columns live on the same
// table and are managed by the agents module.
type User struct {
	ID           uuid.UUID  `db:"id"`
	FirstName    string     `db:"first_name"`
	LastName     string     `db:"last_name"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash"`
	Role         string     `db:"role"`
	PhoneNumber  *string    `db:"phone_number"`
	Address      *string    `db:"address"`
	CommuneID    *uuid.UUID `db:"commune_id"`
	IsActive     bool       `db:"is_active"`
	CreatedAt    string     `db:"created_at"`
	UpdatedAt    string     `db:"updated_at"`
}

// CreateCitizenParams contains parameters for citizen self-registration.
type CreateCitizenParams struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	PhoneNumber  *string
	Address      *string
}

// UpdateProfileParams contains parameters for profile updates.
// Nil fields keep their current value.
type UpdateProfileParams struct {
	ID          uuid.UUID
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	Address     *string
}

// Repository defines account persistence operations for the auth module.
type Repository interface {
	CreateCitizen(ctx context.Context, params CreateCitizenParams) (User, error)
	CreateWithRole(ctx context.Context, params CreateCitizenParams, role string, communeID *uuid.UUID) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, params UpdateProfileParams) (User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}
