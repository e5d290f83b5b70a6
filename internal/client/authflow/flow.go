package authflow

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sitebatch/maintenance/internal/client/storage"
	"github.com/sitebatch/maintenance/internal/models"
	"go.uber.org/zap"
)

// Screen is a step of the sign-in flow.
type Screen string

const (
	ScreenSplash        Screen = "Splash"
	ScreenLogin         Screen = "Login"
	ScreenSignUp        Screen = "SignUp"
	ScreenResetPassword Screen = "ResetPassword"
	ScreenHome          Screen = "Home"
)

// Form and session errors shown to the user.
var (
	ErrSessionExpired    = errors.New("the password reset link has expired, please request a new one")
	ErrEmailRequired     = errors.New("enter your email first")
	ErrPasswordsRequired = errors.New("please fill in both password fields")
	ErrPasswordMismatch  = errors.New("passwords do not match")
)

// Notices shown after successful steps.
const (
	NoticeAccountCreated  = "Account created! Please verify your email."
	NoticePasswordUpdated = "Password updated successfully"
	NoticeResetSent       = "Password reset email sent. Check your email and click the link. The app will now close."
)

// DefaultSplashDelay is how long the splash screen is shown on a normal launch.
const DefaultSplashDelay = 2 * time.Second

// Auth is the session provider as seen by the flow.
type Auth interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (*models.User, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*models.Session, error)
	SetSession(ctx context.Context, accessToken, refreshToken string, recovery bool) (*models.Session, error)
	UpdatePassword(ctx context.Context, password string, data map[string]any) (*models.User, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	Subscribe(fn func(models.AuthEvent, *models.Session)) (unsubscribe func())
}

// Credentials is the remembered login store.
type Credentials interface {
	Remember(email, password string) error
	Recall() (storage.Credentials, bool, error)
	Forget() error
}

// Exiter ends the process after a reset e-mail was requested, so the
// recovery link starts a fresh launch.
type Exiter interface {
	Exit()
}

// Options configures a Flow.
type Options struct {
	// RedirectURL is the app link that e-mailed links lead back to.
	RedirectURL string
	SplashDelay time.Duration
	// Exiter is optional.
	Exiter Exiter
}

// Flow tracks the current screen of the sign-in flow.
type Flow struct {
	auth  Auth
	creds Credentials
	opts  Options
	log   *zap.Logger
	sleep func(ctx context.Context, d time.Duration) error

	mu          sync.Mutex
	screen      Screen
	notice      string
	prefill     storage.Credentials
	remembered  bool
	unsubscribe func()
}

// New returns a Flow on the splash screen.
func New(auth Auth, creds Credentials, opts Options, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.SplashDelay <= 0 {
		opts.SplashDelay = DefaultSplashDelay
	}
	return &Flow{
		auth:   auth,
		creds:  creds,
		opts:   opts,
		log:    log,
		sleep:  sleepContext,
		screen: ScreenSplash,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start subscribes the flow to auth events. A recovery session or the
// sign-in of an invited user leads to the reset screen while the user is on
// the splash or login screen.
func (f *Flow) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsubscribe != nil {
		return
	}
	f.unsubscribe = f.auth.Subscribe(f.onAuthEvent)
}

// Close removes the subscription made by Start.
func (f *Flow) Close() {
	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (f *Flow) onAuthEvent(event models.AuthEvent, sess *models.Session) {
	redirect := event == models.PasswordRecovery ||
		(event == models.SignedIn && sess != nil && sess.User.InvitedAt != nil &&
			pending(sess.User.InvitedAt, sess.User.PasswordUpdatedAt))
	if !redirect {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screen == ScreenSplash || f.screen == ScreenLogin {
		f.log.Debug("auth event leads to password reset", zap.String("event", string(event)))
		f.screen = ScreenResetPassword
	}
}

// Screen returns the current screen.
func (f *Flow) Screen() Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.screen
}

// Notice returns and clears the message of the last step.
func (f *Flow) Notice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.notice
	f.notice = ""
	return n
}

// Prefill returns the remembered login shown on the login screen.
func (f *Flow) Prefill() (storage.Credentials, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefill, f.remembered
}

func (f *Flow) goTo(s Screen, notice string) {
	f.mu.Lock()
	f.screen = s
	if notice != "" {
		f.notice = notice
	}
	f.mu.Unlock()
}

// Launch routes the splash screen. A recovery or invite link establishes
// the session it carries and leads to the reset screen; otherwise the
// splash is shown for the configured delay and the login screen follows.
func (f *Flow) Launch(ctx context.Context, link string) (Screen, error) {
	f.goTo(ScreenSplash, "")

	sess, err := f.auth.GetSession(ctx)
	if err != nil {
		f.log.Warn("reading session failed", zap.Error(err))
	}
	intent := ClassifyLaunchIntent(link, sess)

	if intent.Kind != IntentNormal {
		if intent.AccessToken != "" {
			if _, err := f.auth.SetSession(ctx, intent.AccessToken, intent.RefreshToken, intent.Kind == IntentRecovery); err != nil {
				f.log.Warn("session from link rejected", zap.Error(err))
				return f.EnterLogin(ctx, ErrSessionExpired.Error())
			}
		} else if sess == nil {
			return f.EnterLogin(ctx, cmp.Or(intent.Error, ErrSessionExpired.Error()))
		}
		f.goTo(ScreenResetPassword, "")
		return ScreenResetPassword, nil
	}

	if err := f.sleep(ctx, f.opts.SplashDelay); err != nil {
		return f.Screen(), err
	}
	return f.EnterLogin(ctx, intent.Error)
}

// EnterLogin shows the login screen with the remembered credentials filled
// in. A session carrying a recovery or invite marker leads on to the reset
// screen instead.
func (f *Flow) EnterLogin(ctx context.Context, notice string) (Screen, error) {
	creds, ok, err := f.creds.Recall()
	if err != nil {
		f.log.Warn("reading remembered login failed", zap.Error(err))
	}
	f.mu.Lock()
	f.prefill, f.remembered = creds, ok
	f.mu.Unlock()

	sess, err := f.auth.GetSession(ctx)
	if err != nil {
		f.log.Warn("reading session failed", zap.Error(err))
	}
	if ClassifyLaunchIntent("", sess).Kind != IntentNormal {
		f.goTo(ScreenResetPassword, notice)
		return ScreenResetPassword, nil
	}
	f.goTo(ScreenLogin, notice)
	return ScreenLogin, nil
}

// EnterSignUp moves from the login to the sign-up screen.
func (f *Flow) EnterSignUp() {
	f.goTo(ScreenSignUp, "")
}

// SignIn signs in, remembers or forgets the credentials and opens Home.
func (f *Flow) SignIn(ctx context.Context, email, password string, remember bool) error {
	if _, err := f.auth.SignIn(ctx, email, password); err != nil {
		return err
	}

	var err error
	if remember {
		err = f.creds.Remember(email, password)
	} else {
		err = f.creds.Forget()
	}
	if err != nil {
		f.log.Warn("updating remembered login failed", zap.Error(err))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screen != ScreenResetPassword {
		f.screen = ScreenHome
	}
	return nil
}

// SignUp registers an account and returns to the login screen.
func (f *Flow) SignUp(ctx context.Context, email, password string) error {
	if _, err := f.auth.SignUp(ctx, email, password, f.opts.RedirectURL); err != nil {
		return err
	}
	_, err := f.EnterLogin(ctx, NoticeAccountCreated)
	return err
}

// ForgotPassword requests a reset e-mail for email and ends the process
// through the Exiter, if one is set.
func (f *Flow) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if err := f.auth.ResetPasswordForEmail(ctx, email, f.opts.RedirectURL); err != nil {
		return err
	}
	f.goTo(ScreenLogin, NoticeResetSent)
	if f.opts.Exiter != nil {
		f.opts.Exiter.Exit()
	}
	return nil
}

// EnterResetPassword checks that the reset screen has a session to work
// with; without one it returns ErrSessionExpired and shows the login screen.
func (f *Flow) EnterResetPassword(ctx context.Context) error {
	sess, err := f.auth.GetSession(ctx)
	if err != nil {
		f.log.Warn("reading session failed", zap.Error(err))
	}
	if sess == nil {
		f.goTo(ScreenLogin, ErrSessionExpired.Error())
		return ErrSessionExpired
	}
	f.goTo(ScreenResetPassword, "")
	return nil
}

// ResetPassword sets a new password and returns to the login screen.
func (f *Flow) ResetPassword(ctx context.Context, password, confirm string) error {
	if password == "" || confirm == "" {
		return ErrPasswordsRequired
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := f.EnterResetPassword(ctx); err != nil {
		return err
	}
	if _, err := f.auth.UpdatePassword(ctx, password, map[string]any{"password_set": true}); err != nil {
		return err
	}
	_, err := f.EnterLogin(ctx, NoticePasswordUpdated)
	return err
}

// SignOut ends the session and shows the login screen.
func (f *Flow) SignOut(ctx context.Context) error {
	err := f.auth.SignOut(ctx)
	if _, lerr := f.EnterLogin(ctx, ""); lerr != nil && err == nil {
		err = lerr
	}
	return err
}
