// Package session owns the authenticated session of the client process and
// notifies subscribers of auth state changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// ErrNoSession is returned by operations that need a signed-in user.
var ErrNoSession = errors.New("no active session")

// expiryMargin renews an access token shortly before it expires.
const expiryMargin = 10 * time.Second

// AuthClient is the auth half of the backend client.
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error)
	SignOut(ctx context.Context, accessToken string) error
	RefreshSession(ctx context.Context, refreshToken string) (*models.Session, error)
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	UpdateUser(ctx context.Context, accessToken string, upd models.UserUpdate) (*models.User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
}

// Listener receives auth state changes. sess is nil after SignedOut.
type Listener = func(event models.AuthEvent, sess *models.Session)

// Provider is the single owner of the process session.
type Provider struct {
	client AuthClient
	log    *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	session *models.Session
	subs    map[int]Listener
	nextID  int

	// refreshMu serializes token renewal; refresh tokens are single use.
	refreshMu sync.Mutex
}

// New returns a Provider without a session.
func New(client AuthClient, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		client: client,
		log:    log,
		now:    time.Now,
		subs:   make(map[int]Listener),
	}
}

// Subscribe registers fn for auth events and returns the function removing it.
// Calling the returned function more than once is harmless.
func (p *Provider) Subscribe(fn Listener) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// emit calls the subscribers outside the lock so they may call back into p.
func (p *Provider) emit(event models.AuthEvent, sess *models.Session) {
	p.mu.Lock()
	listeners := make([]Listener, 0, len(p.subs))
	for _, id := range slices.Sorted(maps.Keys(p.subs)) {
		listeners = append(listeners, p.subs[id])
	}
	p.mu.Unlock()

	var snapshot *models.Session
	if sess != nil {
		cp := *sess
		snapshot = &cp
	}
	for _, fn := range listeners {
		fn(event, snapshot)
	}
}

func (p *Provider) set(sess *models.Session) {
	p.mu.Lock()
	p.session = sess
	p.mu.Unlock()
}

func (p *Provider) current() *models.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	cp := *p.session
	return &cp
}

// SignIn starts a session with email and password.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	sess, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.set(sess)
	p.emit(models.SignedIn, sess)
	return p.current(), nil
}

// SignUp registers an account. No session starts until the e-mail is confirmed.
func (p *Provider) SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error) {
	return p.client.SignUp(ctx, email, password, redirectTo)
}

// SignOut drops the session. The local session is cleared even when the
// backend call fails; that error is returned.
func (p *Provider) SignOut(ctx context.Context) error {
	sess := p.current()
	p.set(nil)
	if sess == nil {
		return nil
	}

	err := p.client.SignOut(ctx, sess.AccessToken)
	if err != nil {
		p.log.Warn("sign out failed", zap.Error(err))
	}
	p.emit(models.SignedOut, nil)
	return err
}

// GetSession returns the current session, renewing an expired access token
// through the refresh token. It returns nil without error when there is no
// session or the renewal failed.
func (p *Provider) GetSession(ctx context.Context) (*models.Session, error) {
	sess := p.current()
	if sess == nil {
		return nil, nil
	}
	if !sess.Expired(p.now().Add(expiryMargin)) {
		return sess, nil
	}
	return p.refresh(ctx, sess.RefreshToken)
}

func (p *Provider) refresh(ctx context.Context, stale string) (*models.Session, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	// Another caller may have renewed the session meanwhile.
	sess := p.current()
	if sess == nil {
		return nil, nil
	}
	if sess.RefreshToken != stale && !sess.Expired(p.now().Add(expiryMargin)) {
		return sess, nil
	}

	renewed, err := p.client.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		p.log.Warn("session refresh failed", zap.Error(err))
		p.set(nil)
		p.emit(models.SignedOut, nil)
		return nil, nil
	}
	if renewed.User.ID == "" {
		renewed.User = sess.User
	}
	p.set(renewed)
	p.emit(models.TokenRefreshed, renewed)
	return p.current(), nil
}

// SetSession establishes a session from tokens carried by an app link. A
// recovery session is announced as PasswordRecovery instead of SignedIn.
func (p *Provider) SetSession(ctx context.Context, accessToken, refreshToken string, recovery bool) (*models.Session, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%w: missing access token", models.ErrInvalidToken)
	}

	sess := &models.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
	}
	if exp, ok := tokenExpiry(accessToken); ok {
		sess.ExpiresAt = exp.Unix()
		sess.ExpiresIn = int64(exp.Sub(p.now()) / time.Second)
	}

	if sess.Expired(p.now().Add(expiryMargin)) && refreshToken != "" {
		renewed, err := p.client.RefreshSession(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		sess = renewed
	}

	user, err := p.client.GetUser(ctx, sess.AccessToken)
	if err != nil {
		return nil, err
	}
	sess.User = *user
	p.set(sess)

	event := models.SignedIn
	if recovery {
		event = models.PasswordRecovery
	}
	p.emit(event, sess)
	return p.current(), nil
}

// UpdatePassword changes the password of the signed-in user and merges data
// into the account metadata.
func (p *Provider) UpdatePassword(ctx context.Context, password string, data map[string]any) (*models.User, error) {
	sess, err := p.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}

	user, err := p.client.UpdateUser(ctx, sess.AccessToken, models.UserUpdate{Password: password, Data: data})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.session != nil {
		p.session.User = *user
		cp := *p.session
		sess = &cp
	}
	p.mu.Unlock()
	p.emit(models.UserUpdated, sess)
	return user, nil
}

// ResetPasswordForEmail requests a recovery e-mail leading to redirectTo.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return p.client.ResetPasswordForEmail(ctx, email, redirectTo)
}

// AccessToken returns a current access token. It implements the backend
// client's TokenSource.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	sess, err := p.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNoSession
	}
	return sess.AccessToken, nil
}

// CurrentUser returns the signed-in user, or nil.
func (p *Provider) CurrentUser() *models.User {
	sess := p.current()
	if sess == nil {
		return nil
	}
	return &sess.User
}

// tokenExpiry reads the exp claim of a JWT without verifying it; the
// backend verifies the token on every call.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
