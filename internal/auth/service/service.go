package service

import (
	"context"

	"github.com/google/uuid"

	"civildocs_backend/internal/auth/password"
	"civildocs_backend/internal/auth/repository"
	"civildocs_backend/internal/auth/token"
	"civildocs_backend/internal/auth/transport"
	"civildocs_backend/internal/events"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/phone"
)

const invalidCredentialsMessage = "invalid email or password"

// Service provides authentication and account management.
type Service struct {
	repo repository.Repository
	cfg  config.AuthServiceConfig
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new auth service.
func New(repo repository.Repository, cfg config.AuthServiceConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, bus: bus, log: log}
}

// Register creates a citizen account. Agents and admins are provisioned
// through the agents module, never through self-registration.
func (s *Service) Register(ctx context.Context, req transport.RegisterRequest) (transport.UserResponse, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.UserResponse{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	params := repository.CreateCitizenParams{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Address:      req.Address,
	}
	if req.PhoneNumber != nil {
		normalized := phone.NormalizeE164(*req.PhoneNumber)
		params.PhoneNumber = &normalized
	}

	u, err := s.repo.CreateCitizen(ctx, params)
	if err != nil {
		s.log.AuthEvent("register", req.Email, false, err.Error())
		return transport.UserResponse{}, err
	}

	s.log.AuthEvent("register", u.Email, true, "")
	s.bus.Publish(ctx, events.UserRegistered{
		BaseEvent: events.NewBaseEvent(),
		UserID:    u.ID,
		Email:     u.Email,
	})

	return toUserResponse(u), nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.LoginResponse, error) {
	u, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		// Same response for unknown email and bad password.
		s.log.AuthEvent("login", req.Email, false, "unknown email")
		return transport.LoginResponse{}, apperr.Unauthorized(invalidCredentialsMessage)
	}

	if !u.IsActive {
		s.log.AuthEvent("login", req.Email, false, "account disabled")
		return transport.LoginResponse{}, apperr.Forbidden("account is disabled")
	}

	if !password.Verify(u.PasswordHash, req.Password) {
		s.log.AuthEvent("login", req.Email, false, "bad password")
		return transport.LoginResponse{}, apperr.Unauthorized(invalidCredentialsMessage)
	}

	communeID := uuid.Nil
	if u.CommuneID != nil {
		communeID = *u.CommuneID
	}

	accessToken, err := token.SignAccessToken(u.ID, u.Role, communeID, s.cfg.GetAccessTokenTTL(), s.cfg.GetJWTSecret())
	if err != nil {
		return transport.LoginResponse{}, apperr.Wrap(apperr.KindInternal, "sign token", err)
	}

	s.log.AuthEvent("login", u.Email, true, "")
	return transport.LoginResponse{
		AccessToken: accessToken,
		User:        toUserResponse(u),
	}, nil
}

// Me returns the authenticated user's account.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return transport.UserResponse{}, err
	}
	return toUserResponse(u), nil
}

// UpdateProfile updates the authenticated user's profile fields.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, req transport.UpdateProfileRequest) (transport.UserResponse, error) {
	params := repository.UpdateProfileParams{
		ID:        userID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Address:   req.Address,
	}
	if req.PhoneNumber != nil {
		normalized := phone.NormalizeE164(*req.PhoneNumber)
		params.PhoneNumber = &normalized
	}

	u, err := s.repo.UpdateProfile(ctx, params)
	if err != nil {
		return transport.UserResponse{}, err
	}

	s.log.Info("profile updated", "userId", userID)
	return toUserResponse(u), nil
}

// ChangePassword rotates the password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req transport.ChangePasswordRequest) error {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if !password.Verify(u.PasswordHash, req.CurrentPassword) {
		return apperr.Unauthorized("current password is incorrect")
	}

	hash, err := password.Hash(req.NewPassword)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	if err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.log.AuthEvent("password_change", u.Email, true, "")
	return nil
}

// toUserResponse converts a repository User to a transport response.
func toUserResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:          u.ID,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Role:        u.Role,
		PhoneNumber: u.PhoneNumber,
		Address:     u.Address,
		CommuneID:   u.CommuneID,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
	}
}
