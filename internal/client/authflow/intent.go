// Package authflow drives the sign-in screens of the client: splash,
// login, sign-up and the password reset reached through e-mailed links.
package authflow

import (
	"net/url"
	"strings"
	"time"

	"github.com/sitebatch/maintenance/internal/models"
)

// IntentKind is what a launch asks the app to do.
type IntentKind string

const (
	IntentNormal   IntentKind = "normal"
	IntentRecovery IntentKind = "recovery"
	IntentInvite   IntentKind = "invite"
)

// LaunchIntent is the classification of a launch link and session.
type LaunchIntent struct {
	Kind IntentKind
	// AccessToken and RefreshToken are the session carried by the link, if any.
	AccessToken  string
	RefreshToken string
	// Error is the error_description of a link that could not be verified.
	Error string
}

// ClassifyLaunchIntent decides whether a launch should lead to the password
// reset screen. The link's type parameter is read from the query and the
// fragment, the fragment taking precedence. Without a typed link the session
// user is inspected: a recovery request or invitation not yet followed by a
// password change counts as a marker. link and sess may both be empty.
func ClassifyLaunchIntent(link string, sess *models.Session) LaunchIntent {
	params := linkParams(link)
	intent := LaunchIntent{
		Kind:         IntentNormal,
		AccessToken:  params.Get("access_token"),
		RefreshToken: params.Get("refresh_token"),
		Error:        params.Get("error_description"),
	}

	switch params.Get("type") {
	case "recovery":
		intent.Kind = IntentRecovery
		return intent
	case "invite":
		intent.Kind = IntentInvite
		return intent
	}

	if sess != nil {
		intent.Kind = sessionIntent(&sess.User)
	}
	return intent
}

func sessionIntent(u *models.User) IntentKind {
	switch {
	case pending(u.RecoverySentAt, u.PasswordUpdatedAt):
		return IntentRecovery
	case pending(u.InvitedAt, u.PasswordUpdatedAt):
		return IntentInvite
	}
	return IntentNormal
}

// pending reports whether marker is set and no password change happened
// since.
func pending(marker, passwordUpdated *time.Time) bool {
	if marker == nil {
		return false
	}
	return passwordUpdated == nil || passwordUpdated.Before(*marker)
}

// linkParams merges the query and fragment parameters of link.
func linkParams(link string) url.Values {
	out := url.Values{}
	link = strings.TrimSpace(link)
	if link == "" {
		return out
	}

	rest, fragment, _ := strings.Cut(link, "#")
	if _, query, ok := strings.Cut(rest, "?"); ok {
		mergeParams(out, query)
	}
	mergeParams(out, fragment)
	return out
}

func mergeParams(dst url.Values, raw string) {
	// ParseQuery keeps the pairs that parse.
	values, _ := url.ParseQuery(raw)
	for k, vs := range values {
		if len(vs) > 0 && vs[len(vs)-1] != "" {
			dst.Set(k, vs[len(vs)-1])
		}
	}
}
