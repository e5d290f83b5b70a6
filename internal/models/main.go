// Package models defines the data structures shared by the maintenance
// backend and its client: accounts, sessions, defects and their activity log.
package models

import "time"

// User is an account known to the auth service.
type User struct {
	// ID is the unique identifier for the user.
	ID string `json:"id"`
	// Email is the login name of the user.
	Email string `json:"email"`
	// Aud is the audience the account belongs to ("authenticated").
	Aud string `json:"aud"`
	// PasswordHash is the bcrypt hash of the password. Never serialized.
	PasswordHash []byte `json:"-"`
	// EmailConfirmedAt is set once the sign-up link has been followed.
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	// InvitedAt is set for accounts created through an invitation.
	InvitedAt *time.Time `json:"invited_at,omitempty"`
	// RecoverySentAt is set when a password recovery e-mail was last requested.
	RecoverySentAt *time.Time `json:"recovery_sent_at,omitempty"`
	// LastSignInAt is the time of the last successful sign-in.
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
	// PasswordUpdatedAt is the time of the last password change.
	PasswordUpdatedAt *time.Time `json:"password_updated_at,omitempty"`
	// Metadata is free-form data the user attached to the account.
	Metadata map[string]any `json:"user_metadata,omitempty"`
	// CreatedAt is the time the account was created.
	CreatedAt time.Time `json:"created_at"`
}

// UserUpdate carries the fields a signed-in user may change on their account.
type UserUpdate struct {
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// Session is an authenticated session issued by the auth service.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`
	// ExpiresAt is the access token expiry as a unix timestamp.
	ExpiresAt int64 `json:"expires_at"`
	User      User  `json:"user"`
}

// Expired reports whether the access token is expired at now.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != 0 && now.Unix() >= s.ExpiresAt
}

// AuthEvent names a change of the authentication state.
type AuthEvent string

const (
	// SignedIn is emitted after a session is established.
	SignedIn AuthEvent = "SIGNED_IN"
	// SignedOut is emitted after the session is dropped.
	SignedOut AuthEvent = "SIGNED_OUT"
	// TokenRefreshed is emitted after the access token was renewed.
	TokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	// UserUpdated is emitted after the account was changed.
	UserUpdated AuthEvent = "USER_UPDATED"
	// PasswordRecovery is emitted when a session was established from a recovery link.
	PasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// TokenKind distinguishes the tokens stored by the auth service.
type TokenKind string

const (
	// RefreshToken renews an access token.
	RefreshToken TokenKind = "refresh"
	// SignupToken confirms an e-mail address.
	SignupToken TokenKind = "signup"
	// RecoveryToken starts a password recovery session.
	RecoveryToken TokenKind = "recovery"
	// InviteToken starts the first session of an invited user.
	InviteToken TokenKind = "invite"
)
