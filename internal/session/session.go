// Package session holds the signed-in identity of one workspace.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/domain"
	apperrors "github.com/spec-kit/workflow-service/pkg/util/errorutil"
)

// Authenticator is the auth provider a session signs in against.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
	IssueToken(user domain.User) (auth.Token, error)
	Revoke(ctx context.Context, tok auth.Token) error
}

// Listener observes sign-in and sign-out. A nil identity means signed out.
type Listener func(identity *domain.Identity)

// Session is a single-slot identity holder. Signing in replaces any previous
// identity; there is no multi-session support within one Session.
type Session struct {
	auth   Authenticator
	logger *zap.Logger

	mu        sync.RWMutex
	identity  *domain.Identity
	token     auth.Token
	listeners []Listener
}

// New returns a signed-out session.
func New(authenticator Authenticator, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{auth: authenticator, logger: logger}
}

// SignIn authenticates and stores the identity. The active flag is checked
// after credentials succeed, so a disabled account with a wrong password still
// reports INVALID_CREDENTIALS.
func (s *Session) SignIn(ctx context.Context, email, password string) (domain.Identity, auth.Token, error) {
	user, err := s.auth.Authenticate(ctx, email, password)
	if err != nil {
		return domain.Identity{}, auth.Token{}, err
	}
	if !user.Active {
		s.logger.Info("sign-in refused for disabled account", zap.String("user_id", user.ID))
		return domain.Identity{}, auth.Token{}, apperrors.NewAccountDisabled()
	}
	tok, err := s.auth.IssueToken(*user)
	if err != nil {
		return domain.Identity{}, auth.Token{}, err
	}

	identity := domain.IdentityFromUser(*user)
	s.set(&identity, tok)
	return identity, tok, nil
}

// Restore installs an identity proven by an already issued token.
func (s *Session) Restore(identity domain.Identity, tok auth.Token) {
	s.set(&identity, tok)
}

// SignOut revokes the current token and clears the identity. Revocation
// failures are logged; the session is cleared regardless.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.RLock()
	tok, signedIn := s.token, s.identity != nil
	s.mu.RUnlock()
	if !signedIn {
		return
	}
	if err := s.auth.Revoke(ctx, tok); err != nil {
		s.logger.Warn("token revocation failed", zap.Error(err))
	}
	s.set(nil, auth.Token{})
}

// Identity returns the signed-in identity.
func (s *Session) Identity() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Token returns the token of the signed-in identity.
func (s *Session) Token() auth.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// OnChange registers a listener invoked after every sign-in and sign-out.
func (s *Session) OnChange(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Session) set(identity *domain.Identity, tok auth.Token) {
	s.mu.Lock()
	s.identity = identity
	s.token = tok
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		if identity == nil {
			l(nil)
			continue
		}
		cp := *identity
		l(&cp)
	}
}
