package auth

import (
	"errors"
	"fmt"
	"log"

	"github.com/DrorShokoPeer/ttydx/internal/audit"
	"github.com/DrorShokoPeer/ttydx/internal/logutil"
)

// Recorder receives audit events. Implementations must not block.
type Recorder interface {
	Record(audit.Event)
}

// checkPassword is the bcrypt comparison used by Login. Replaced in tests.
var checkPassword = CheckPassword

type nopRecorder struct{}

func (nopRecorder) Record(audit.Event) {}

// PrincipalInfo is the public view of a principal.
type PrincipalInfo struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Status is what a caller may learn about its own token.
type Status struct {
	Authenticated bool
	Principal     *PrincipalInfo
}

// Authority is the session authority: it checks credentials under the login
// throttle and issues, validates and destroys sessions.
type Authority struct {
	creds    *CredentialStore
	throttle *LoginThrottle
	sessions *SessionStore
	audit    Recorder

	// decoyHash is compared against when the username is unknown so that a
	// miss costs the same bcrypt work as a wrong password.
	decoyHash string
}

// NewAuthority wires the collaborators. cost is used for the decoy hash
// when the credential store has none of its own. A nil recorder discards
// audit events.
func NewAuthority(creds *CredentialStore, throttle *LoginThrottle, sessions *SessionStore, rec Recorder, cost int) (*Authority, error) {
	if rec == nil {
		rec = nopRecorder{}
	}
	if c := creds.Cost(); c > 0 {
		cost = c
	}
	decoy, err := HashPassword("ttydx-decoy-password", cost)
	if err != nil {
		return nil, fmt.Errorf("generate decoy hash: %w", err)
	}
	return &Authority{
		creds:     creds,
		throttle:  throttle,
		sessions:  sessions,
		audit:     rec,
		decoyHash: decoy,
	}, nil
}

// Sessions exposes the session store for the periodic cleanup job.
func (a *Authority) Sessions() *SessionStore {
	return a.sessions
}

// Throttle exposes the login throttle for the periodic cleanup job.
func (a *Authority) Throttle() *LoginThrottle {
	return a.throttle
}

// Login authenticates username/password for the client identified by
// clientKey. Errors: ErrBadRequest, *ErrRateLimited, ErrInvalidCredentials.
func (a *Authority) Login(username, password, clientKey string) (*AuthSession, error) {
	if username == "" || password == "" {
		a.audit.Record(audit.Event{
			Level:     audit.LevelDebug,
			Event:     audit.EventLoginBadRequest,
			ClientKey: clientKey,
			Outcome:   audit.OutcomeRejected,
		})
		return nil, ErrBadRequest
	}

	attempt, err := a.throttle.Acquire(clientKey)
	if err != nil {
		a.audit.Record(audit.Event{
			Level:     audit.LevelWarn,
			Event:     audit.EventLoginRateLimited,
			Username:  username,
			ClientKey: clientKey,
			Outcome:   audit.OutcomeRejected,
		})
		return nil, err
	}

	p, found := a.creds.Lookup(username)
	hash := a.decoyHash
	if found {
		hash = p.PasswordHash
	}
	ok := checkPassword(password, hash) && found

	if !ok {
		attempt.Record(OutcomeFailure)
		log.Printf("[auth] failed login for user %q from %s", logutil.SanitizeForLog(username), clientKey)
		a.audit.Record(audit.Event{
			Level:     audit.LevelWarn,
			Event:     audit.EventLoginFailure,
			Username:  username,
			ClientKey: clientKey,
			Outcome:   audit.OutcomeFailure,
		})
		return nil, ErrInvalidCredentials
	}

	attempt.Record(OutcomeSuccess)
	sess, err := a.sessions.Create(p)
	if err != nil {
		return nil, err
	}
	log.Printf("[auth] successful login for user %q from %s", p.Username, clientKey)
	a.audit.Record(audit.Event{
		Event:     audit.EventLoginSuccess,
		Username:  p.Username,
		ClientKey: clientKey,
		Outcome:   audit.OutcomeSuccess,
	})
	return sess, nil
}

// Validate resolves token to a live session.
func (a *Authority) Validate(token string) (*AuthSession, bool) {
	return a.sessions.Get(token)
}

// Logout destroys the session behind token. Unknown or expired tokens are
// acknowledged the same way.
func (a *Authority) Logout(token, clientKey string) {
	var username string
	if sess, ok := a.sessions.Get(token); ok {
		username = sess.Username
	}
	if token != "" {
		a.sessions.Delete(token)
	}
	log.Printf("[auth] logout user=%q from %s", username, clientKey)
	a.audit.Record(audit.Event{
		Event:     audit.EventLogout,
		Username:  username,
		ClientKey: clientKey,
		Outcome:   audit.OutcomeSuccess,
	})
}

// Status reports the caller's own token state.
func (a *Authority) Status(token string) Status {
	sess, ok := a.sessions.Get(token)
	if !ok {
		return Status{}
	}
	return Status{
		Authenticated: true,
		Principal:     &PrincipalInfo{Username: sess.Username, Role: sess.Role},
	}
}

// IsRateLimited reports whether err came from the login throttle.
func IsRateLimited(err error) (*ErrRateLimited, bool) {
	var rl *ErrRateLimited
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
