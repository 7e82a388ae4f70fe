package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string `json:"id"`

	// Username is the unique login and display handle. Group membership
	// lists reference this value.
	Username string `json:"username"`

	// DisplayName is the user's full display name.
	DisplayName string `json:"display_name"`

	// PaymentHandle is the user's handle on the external payment
	// provider (e.g., a Venmo username). Settlement deep links are
	// addressed to this handle; settling against a counterparty without
	// one is blocked.
	PaymentHandle string `json:"payment_handle,omitempty"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Never serialized.
	PasswordHash string `json:"-"`

	// CreatedAt is the Unix timestamp when the account was created.
	CreatedAt int64 `json:"created_at"`
}

// NewUser creates a user with a generated ID and creation timestamp.
func NewUser(username, displayName, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().Unix(),
	}
}
