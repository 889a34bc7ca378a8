package transport

import "github.com/google/uuid"

// RegisterRequest contains data for citizen self-registration.
type RegisterRequest struct {
	FirstName   string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName    string  `json:"lastName" validate:"required,min=1,max=100"`
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8,max=72"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,min=6,max=20"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=300"`
}

// LoginRequest contains login credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest contains mutable profile fields.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName,omitempty" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"lastName,omitempty" validate:"omitempty,min=1,max=100"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,min=6,max=20"`
	Address     *string `json:"address,omitempty" validate:"omitempty,max=300"`
}

// ChangePasswordRequest carries a password rotation.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// UserResponse represents an account in API responses. The password hash
// never leaves the repository layer.
type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	PhoneNumber *string    `json:"phoneNumber,omitempty"`
	Address     *string    `json:"address,omitempty"`
	CommuneID   *uuid.UUID `json:"communeId,omitempty"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   string     `json:"createdAt"`
}

// LoginResponse bundles the access token with the authenticated user.
type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        UserResponse `json:"user"`
}
