package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/tabsync/tabsync/internal/auth"
	"github.com/tabsync/tabsync/internal/models"
)

// RegisterInput carries the signup fields. PaymentHandle is optional
// but required later for anyone who wants to be settled with.
type RegisterInput struct {
	Username      string `json:"username" validate:"required,min=3,max=32,alphanum"`
	DisplayName   string `json:"display_name" validate:"required,max=80"`
	PaymentHandle string `json:"payment_handle" validate:"omitempty,max=80"`
	Password      string `json:"password" validate:"required,min=8"`
}

// AuthService registers and authenticates users, issuing session
// tokens on success.
type AuthService struct {
	authenticator auth.Authenticator
	jwt           *auth.JWTManager
	validate      *validator.Validate
}

func NewAuthService(authenticator auth.Authenticator, jwt *auth.JWTManager) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwt:           jwt,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register creates an account and returns the user with a fresh token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, "", fmt.Errorf("invalid registration: %w", err)
	}
	user, err := s.authenticator.Register(ctx, in.Username, in.DisplayName, in.PaymentHandle, in.Password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and returns the user with a fresh token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	user, err := s.authenticator.Authenticate(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}
