// Package service provides the backend business logic for accounts,
// defects and photo storage, delegating persistence to repository
// interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitebatch/maintenance/internal/auth"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted on sign-up and change.
const MinPasswordLength = 6

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// CreateUser inserts a user; a taken e-mail yields models.ErrUserExists.
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error
	MergeMetadata(ctx context.Context, id string, data map[string]any) error
	MarkSignedIn(ctx context.Context, id string, at time.Time) error
	MarkRecoverySent(ctx context.Context, id string, at time.Time) error
	ConfirmEmail(ctx context.Context, id string, at time.Time) error
	StoreToken(ctx context.Context, hash, userID string, kind models.TokenKind, expiresAt time.Time) error
	// ConsumeToken removes a token and returns its owner, or models.ErrInvalidToken.
	ConsumeToken(ctx context.Context, hash string, kind models.TokenKind, now time.Time) (string, error)
	RevokeTokens(ctx context.Context, userID string, kind models.TokenKind) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	GenerateAccessToken(id auth.Identity) (string, time.Time, error)
}

// Mailer delivers account e-mails carrying a verification link.
type Mailer interface {
	Send(ctx context.Context, to, subject, link string) error
}

// AuthConfig holds the lifetimes and URLs used by AuthService.
type AuthConfig struct {
	RefreshTTL time.Duration
	LinkTTL    time.Duration
	// SiteURL is the redirect target used when a request names none.
	SiteURL string
	// PublicURL is the externally reachable base of the backend.
	PublicURL string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// AuthService implements sign-up, sign-in, session refresh, password
// recovery and invitations.
type AuthService struct {
	repo   AuthRepository
	tokens TokenIssuer
	mailer Mailer
	cfg    AuthConfig
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(repo AuthRepository, tokens TokenIssuer, mailer Mailer, cfg AuthConfig, log *zap.Logger) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email address", models.ErrInvalidInput)
	}
	return email, nil
}

func (s *AuthService) hashPassword(password string) ([]byte, error) {
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password should be at least %d characters", models.ErrInvalidInput, MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// SignUp registers an unconfirmed account and mails a confirmation link
// that returns the user to redirectTo.
func (s *AuthService) SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Aud:          "authenticated",
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.sendLink(ctx, u, models.SignupToken, redirectTo, "Confirm your signup"); err != nil {
		return nil, err
	}
	s.log.Info("user signed up", zap.String("user_id", u.ID))
	return u, nil
}

// SignInWithPassword checks the credentials and starts a session.
func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if len(u.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, models.ErrInvalidCredentials
	}
	if u.EmailConfirmedAt == nil {
		return nil, models.ErrEmailNotConfirmed
	}
	return s.startSession(ctx, u)
}

// Refresh exchanges a refresh token for a new session. The presented token
// is consumed; the returned session carries its replacement.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, models.ErrInvalidToken
	}
	userID, err := s.repo.ConsumeToken(ctx, auth.HashToken(refreshToken), models.RefreshToken, s.now())
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.issueSession(ctx, u)
}

// SignOut revokes every refresh token of the user.
func (s *AuthService) SignOut(ctx context.Context, userID string) error {
	return s.repo.RevokeTokens(ctx, userID, models.RefreshToken)
}

// GetUser returns the account of the given user.
func (s *AuthService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateUser changes the password and merges metadata of the given user.
func (s *AuthService) UpdateUser(ctx context.Context, userID string, upd models.UserUpdate) (*models.User, error) {
	if upd.Password == "" && len(upd.Data) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}
	if upd.Password != "" {
		hash, err := s.hashPassword(upd.Password)
		if err != nil {
			return nil, err
		}
		if err := s.repo.UpdatePassword(ctx, userID, hash, s.now().UTC()); err != nil {
			return nil, err
		}
	}
	if len(upd.Data) > 0 {
		if err := s.repo.MergeMetadata(ctx, userID, upd.Data); err != nil {
			return nil, err
		}
	}
	return s.repo.GetUserByID(ctx, userID)
}

// Recover mails a password recovery link. Unknown addresses are not
// reported to the caller.
func (s *AuthService) Recover(ctx context.Context, email, redirectTo string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("%w: email is required", models.ErrInvalidInput)
	}
	u, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		s.log.Info("recovery requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.repo.MarkRecoverySent(ctx, u.ID, s.now().UTC()); err != nil {
		return err
	}
	return s.sendLink(ctx, u, models.RecoveryToken, redirectTo, "Reset your password")
}

// Invite creates a passwordless account and mails an invitation link.
func (s *AuthService) Invite(ctx context.Context, email, redirectTo string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		Aud:       "authenticated",
		InvitedAt: &now,
		CreatedAt: now,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	if err := s.sendLink(ctx, u, models.InviteToken, redirectTo, "You have been invited"); err != nil {
		return nil, err
	}
	return u, nil
}

// Verify consumes a one-time link token and starts a session for its owner.
// Sign-up and invite links also confirm the e-mail address.
func (s *AuthService) Verify(ctx context.Context, token string, kind models.TokenKind) (*models.Session, error) {
	switch kind {
	case models.SignupToken, models.RecoveryToken, models.InviteToken:
	default:
		return nil, fmt.Errorf("%w: unsupported verification type %q", models.ErrInvalidInput, kind)
	}
	userID, err := s.repo.ConsumeToken(ctx, auth.HashToken(token), kind, s.now())
	if err != nil {
		return nil, err
	}
	if kind != models.RecoveryToken {
		if err := s.repo.ConfirmEmail(ctx, userID, s.now().UTC()); err != nil {
			return nil, err
		}
	}
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, u)
}

// RedirectTarget returns redirectTo, or the site URL when it is empty.
func (s *AuthService) RedirectTarget(redirectTo string) string {
	if redirectTo == "" {
		return s.cfg.SiteURL
	}
	return redirectTo
}

func (s *AuthService) startSession(ctx context.Context, u *models.User) (*models.Session, error) {
	now := s.now().UTC()
	if err := s.repo.MarkSignedIn(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastSignInAt = &now
	return s.issueSession(ctx, u)
}

func (s *AuthService) issueSession(ctx context.Context, u *models.User) (*models.Session, error) {
	access, exp, err := s.tokens.GenerateAccessToken(auth.Identity{UserID: u.ID, Email: u.Email})
	if err != nil {
		return nil, err
	}
	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.StoreToken(ctx, hash, u.ID, models.RefreshToken, s.now().Add(s.cfg.RefreshTTL)); err != nil {
		return nil, err
	}
	return &models.Session{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "bearer",
		ExpiresIn:    int64(exp.Sub(s.now()).Round(time.Second) / time.Second),
		ExpiresAt:    exp.Unix(),
		User:         *u,
	}, nil
}

func (s *AuthService) sendLink(ctx context.Context, u *models.User, kind models.TokenKind, redirectTo, subject string) error {
	raw, hash, err := auth.GenerateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.repo.StoreToken(ctx, hash, u.ID, kind, s.now().Add(s.cfg.LinkTTL)); err != nil {
		return err
	}

	q := url.Values{}
	q.Set("token", raw)
	q.Set("type", string(kind))
	q.Set("redirect_to", s.RedirectTarget(redirectTo))
	link := strings.TrimRight(s.cfg.PublicURL, "/") + "/auth/v1/verify?" + q.Encode()

	if err := s.mailer.Send(ctx, u.Email, subject, link); err != nil {
		return fmt.Errorf("send %s mail: %w", kind, err)
	}
	return nil
}

// LogMailer is a development Mailer that writes the message to the log.
type LogMailer struct {
	Log *zap.Logger
}

// Send logs the link instead of delivering it.
func (m LogMailer) Send(_ context.Context, to, subject, link string) error {
	m.Log.Info("mail", zap.String("to", to), zap.String("subject", subject), zap.String("link", link))
	return nil
}
