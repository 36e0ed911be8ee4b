package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/user"
)

var (
	ErrNotAuthenticated = errors.New("not logged in")
	ErrSessionExpired   = errors.New("session expired, please log in again")

	nowFunc = time.Now // mockable

	// used when StartRefresher gets a non-positive interval
	defaultRefreshInterval = 14 * time.Minute // mockable
)

// Authenticator performs the authentication calls of the remote API.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Tokens, error)
	// Refresh exchanges a refresh token for new tokens. An empty Tokens.Refresh keeps the current one.
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, accessToken string) (user.User, error)
}

// Session holds the tokens and the identity of the logged in user.
// It is the only state shared between the front-end and the remote gateway.
type Session struct {
	auth  Authenticator
	store Store
	log   core.Logger

	mu          sync.RWMutex
	state       State
	expired     bool
	stopRefresh context.CancelFunc

	refreshMu sync.Mutex // one refresh at a time
}

type Option func(*Session)

func WithLogger(log core.Logger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

func New(auth Authenticator, store Store, opts ...Option) *Session {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Session{
		auth:  auth,
		store: store,
		log:   core.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads a previously saved session.
// It returns ErrSessionExpired (and clears the store) when the refresh token has expired.
func (s *Session) Restore() error {
	state, err := s.store.Load()
	if err != nil {
		return errors.Wrap(err, "loading session")
	}
	if state.Tokens.IsZero() {
		return nil
	}
	if claims, err := ParseClaims(state.Tokens.Refresh); err == nil && claims.ExpiredAt(nowFunc()) {
		_ = s.store.Clear()
		return ErrSessionExpired
	}
	if state.User == nil {
		if claims, err := ParseClaims(state.Tokens.Access); err == nil {
			usr := claims.User()
			state.User = &usr
		}
	}

	s.mu.Lock()
	s.state = state
	s.expired = false
	s.mu.Unlock()
	return nil
}

func (s *Session) Login(ctx context.Context, username, password string) (user.User, error) {
	tokens, err := s.auth.Login(ctx, core.CleanString(username, true /* lower */), password)
	if err != nil {
		return user.User{}, errors.Wrap(err, "logging in")
	}

	usr, err := s.auth.Me(ctx, tokens.Access)
	if err != nil {
		claims, cErr := ParseClaims(tokens.Access)
		if cErr != nil {
			return user.User{}, errors.Wrap(err, "fetching current user")
		}
		s.log.Warn("fetching current user failed, using token claims", err)
		usr = claims.User()
	}

	state := State{Tokens: tokens, User: &usr}
	if err := s.store.Save(state); err != nil {
		return user.User{}, errors.Wrap(err, "saving session")
	}

	s.mu.Lock()
	s.state = state
	s.expired = false
	s.mu.Unlock()

	s.log.Info("logged in", map[string]interface{}{"username": usr.Username}, usr)
	return usr, nil
}

// Logout ends the session: the refresher is stopped, the server is told (best effort)
// and the local state is cleared.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	refresh := s.state.Tokens.Refresh
	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
	s.mu.Unlock()

	if refresh != "" {
		if err := s.auth.Logout(ctx, refresh); err != nil {
			s.log.Warn("server logout failed", err)
		}
	}
	return s.clear(false)
}

// Expire forces a logout without contacting the server and flags the session as expired.
func (s *Session) Expire() {
	s.mu.Lock()
	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
	s.mu.Unlock()

	if err := s.clear(true); err != nil {
		s.log.Error("clearing expired session", err)
	}
}

func (s *Session) clear(expired bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{}
	s.expired = expired
	return errors.Wrap(s.store.Clear(), "clearing session")
}

// Refresh exchanges the refresh token for new tokens.
// A non-retryable failure expires the session.
func (s *Session) Refresh(ctx context.Context) error {
	return s.RefreshIfStale(ctx, "")
}

// RefreshIfStale refreshes unless the access token has already changed since staleToken was read.
// Concurrent callers that saw the same rejected token cause a single refresh.
func (s *Session) RefreshIfStale(ctx context.Context, staleToken string) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.RLock()
	tokens := s.state.Tokens
	s.mu.RUnlock()

	if tokens.Refresh == "" {
		return ErrNotAuthenticated
	}
	if staleToken != "" && tokens.Access != staleToken {
		return nil
	}

	newTokens, err := s.auth.Refresh(ctx, tokens.Refresh)
	if err != nil {
		if core.IsRetryable(err) || errors.Cause(err) == context.Canceled {
			s.log.Warn("token refresh failed, will retry", err)
			return errors.Wrap(err, "refreshing token")
		}
		s.log.Warn("token refresh rejected, session expired", err)
		s.Expire()
		return ErrSessionExpired
	}
	if newTokens.Refresh == "" {
		newTokens.Refresh = tokens.Refresh
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Tokens.Refresh != tokens.Refresh {
		return nil // logged out or in again meanwhile
	}
	s.state.Tokens = newTokens
	if claims, err := ParseClaims(newTokens.Access); err == nil && s.state.User != nil {
		usr := *s.state.User
		usr.Roles = claims.Roles
		s.state.User = &usr
	}
	return errors.Wrap(s.store.Save(s.state), "saving session")
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Tokens.Access
}

// User returns the logged in user.
func (s *Session) User() (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return user.User{}, false
	}
	return *s.state.User, true
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Tokens.Access != ""
}

// Expired reports whether the session was ended by a failed refresh.
// Front-ends check it to send the user back to the login entry point.
func (s *Session) Expired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expired
}

// StartRefresher refreshes the tokens every interval while the session is authenticated.
// It stops on Logout, Expire or when ctx is done. Calling it again replaces the running refresher.
func (s *Session) StartRefresher(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.stopRefresh != nil {
		s.stopRefresh()
	}
	s.stopRefresh = cancel
	s.mu.Unlock()

	go s.refreshLoop(ctx, interval)
}

// StopRefresher stops the running refresher, if any.
func (s *Session) StopRefresher() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopRefresh != nil {
		s.stopRefresh()
		s.stopRefresh = nil
	}
}

func (s *Session) refreshLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.Authenticated() {
				return
			}
			if err := s.Refresh(ctx); err != nil {
				if err == ErrSessionExpired || err == ErrNotAuthenticated {
					return
				}
			}
		}
	}
}
