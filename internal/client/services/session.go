package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/crewkeeper/internal/client/client"
	"github.com/dmitrijs2005/crewkeeper/internal/client/models"
	"github.com/dmitrijs2005/crewkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/crewkeeper/internal/common"
	"github.com/dmitrijs2005/crewkeeper/internal/logging"
)

type SessionState int

const (
	SessionUnloaded SessionState = iota
	SessionLoading
	SessionAuthenticated
	SessionAnonymous
)

func (s SessionState) String() string {
	switch s {
	case SessionLoading:
		return "loading"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAnonymous:
		return "anonymous"
	default:
		return "unloaded"
	}
}

// SessionManager owns the signed-in crew member: token, profile and their
// persisted copies. Every mutating operation runs under one lock, so
// sign-in, sign-out, profile updates and startup revalidation never
// interleave. Network calls are made while holding it.
type SessionManager struct {
	gateway client.Client
	store   metadata.Repository
	gate    ConnectivityReader
	logger  logging.Logger

	ops sync.Mutex
	// residue is set while a cleared session may still be on disk; guarded by ops.
	residue bool

	mu        sync.RWMutex
	state     SessionState
	token     string
	profile   *models.UserProfile
	loading   bool
	listeners []func(SessionState, *models.UserProfile)

	bg sync.WaitGroup
}

// NewSessionManager wires a manager. gate may be nil, in which case
// connectivity is never treated as definitively offline.
func NewSessionManager(gateway client.Client, store metadata.Repository, gate ConnectivityReader, logger logging.Logger) *SessionManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SessionManager{
		gateway: gateway,
		store:   store,
		gate:    gate,
		logger:  logger.With("component", "session"),
	}
}

// Start restores a persisted session. When both token and profile are
// present the manager becomes Authenticated immediately and revalidates
// against the backend in the background (see Wait). Otherwise it clears any
// partial residue and becomes Anonymous. Start is a no-op after the first call.
func (m *SessionManager) Start(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	if m.State() != SessionUnloaded {
		return nil
	}
	m.setLoading(true)
	m.transition(ctx, SessionLoading, "", nil)

	token, profile, err := m.loadStored(ctx)
	if err != nil {
		m.logger.Error(ctx, "session restore failed", "error", err)
		m.transition(ctx, SessionAnonymous, "", nil)
		m.setLoading(false)
		return fmt.Errorf("restore session: %w", err)
	}

	if token == "" || profile == nil {
		if err := m.clearStored(ctx); err != nil {
			m.logger.Error(ctx, "failed to clear partial session", "error", err)
			m.residue = true
		}
		m.transition(ctx, SessionAnonymous, "", nil)
		m.setLoading(false)
		return nil
	}

	m.gateway.SetToken(token)
	m.transition(ctx, SessionAuthenticated, token, profile)
	m.setLoading(false)

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		if err := m.Revalidate(ctx); err != nil {
			m.logger.Info(ctx, "startup revalidation did not complete", "error", err)
		}
	}()
	return nil
}

// Wait blocks until background work started by Start has finished.
func (m *SessionManager) Wait() {
	m.bg.Wait()
}

// IsLoading reports whether the persisted session is still being read.
func (m *SessionManager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// loadStored returns empty values, not an error, for missing or
// unparsable entries.
func (m *SessionManager) loadStored(ctx context.Context) (string, *models.UserProfile, error) {
	rawToken, err := m.store.Get(ctx, common.StorageKeyToken)
	if err != nil {
		return "", nil, err
	}
	rawProfile, err := m.store.Get(ctx, common.StorageKeyProfile)
	if err != nil {
		return "", nil, err
	}

	token := strings.TrimSpace(string(rawToken))
	if token == "" || len(rawProfile) == 0 {
		return "", nil, nil
	}

	var p models.UserProfile
	if err := json.Unmarshal(rawProfile, &p); err != nil || !p.Complete() {
		m.logger.Warn(ctx, "discarding unreadable cached profile")
		return "", nil, nil
	}
	return token, &p, nil
}

func (m *SessionManager) saveStored(ctx context.Context, token string, p *models.UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return m.store.Tx(ctx, func(ctx context.Context, r metadata.Repository) error {
		if err := r.Set(ctx, common.StorageKeyToken, []byte(token)); err != nil {
			return err
		}
		return r.Set(ctx, common.StorageKeyProfile, raw)
	})
}

func (m *SessionManager) clearStored(ctx context.Context) error {
	return m.store.Tx(ctx, func(ctx context.Context, r metadata.Repository) error {
		if err := r.Delete(ctx, common.StorageKeyToken); err != nil {
			return err
		}
		return r.Delete(ctx, common.StorageKeyProfile)
	})
}

// Revalidate asks the backend for the current profile and replaces the
// cached one. An Unauthorized answer signs the user out. Other failures,
// including being offline, keep the cached session.
func (m *SessionManager) Revalidate(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	if m.State() != SessionAuthenticated {
		return ErrNotAuthenticated
	}
	if offline(m.gate) {
		return ErrOffline
	}

	token := m.Token()
	p, err := m.gateway.FetchCurrentProfile(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			m.logger.Warn(ctx, "stored session rejected by server, signing out")
			if serr := m.signOutLocked(ctx, false); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		return err
	}

	if err := m.saveStored(ctx, token, p); err != nil {
		m.logger.Error(ctx, "failed to persist refreshed profile", "error", err)
		return fmt.Errorf("save session: %w", err)
	}
	m.transition(ctx, SessionAuthenticated, token, p)
	return nil
}

// SignIn authenticates against the backend and persists the session. It is
// refused with ErrOffline only when connectivity is definitively down. On
// failure the previous state is kept and the backend message is returned
// unchanged. Signing in while already authenticated replaces the session.
func (m *SessionManager) SignIn(ctx context.Context, creds models.Credentials) (*models.UserProfile, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	fields := map[string]string{}
	if strings.TrimSpace(creds.Identifier) == "" {
		fields[models.FieldCrewID] = "crew id is required"
	}
	if creds.Secret == "" {
		fields[models.FieldPassword] = "password is required"
	}
	if len(fields) > 0 {
		return nil, &models.ValidationError{Fields: fields}
	}

	if offline(m.gate) {
		return nil, ErrOffline
	}

	res, err := m.gateway.Login(ctx, strings.TrimSpace(creds.Identifier), creds.Secret)
	if err != nil {
		m.logger.Info(ctx, "sign-in failed", "error", err)
		return nil, err
	}

	if err := m.saveStored(ctx, res.Token, &res.Profile); err != nil {
		m.logger.Error(ctx, "failed to persist session", "error", err)
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.gateway.SetToken(res.Token)
	p := res.Profile
	m.transition(ctx, SessionAuthenticated, res.Token, &p)
	return cloneProfile(&p), nil
}

// SignOut ends the session. The remote logout is best effort; memory and
// storage are always cleared. Calling it while Anonymous does nothing unless
// an earlier clear of the store failed, in which case the clear is retried.
func (m *SessionManager) SignOut(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()
	return m.signOutLocked(ctx, true)
}

func (m *SessionManager) signOutLocked(ctx context.Context, remote bool) error {
	anonymous := m.State() == SessionAnonymous
	if anonymous && !m.residue {
		return nil
	}

	if remote && m.Token() != "" {
		if err := m.gateway.Logout(ctx); err != nil {
			m.logger.Debug(ctx, "remote logout failed, continuing", "error", err)
		}
	}
	m.gateway.ClearToken()

	err := m.clearStored(ctx)
	m.residue = err != nil
	if err != nil {
		m.logger.Error(ctx, "failed to clear stored session", "error", err)
		err = fmt.Errorf("clear session: %w", err)
	}
	if !anonymous {
		m.transition(ctx, SessionAnonymous, "", nil)
	}
	return err
}

// Expire signs out locally after another service saw the token rejected.
// No remote logout is attempted.
func (m *SessionManager) Expire(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()
	m.logger.Warn(ctx, "session rejected by the backend, signing out")
	return m.signOutLocked(ctx, false)
}

// UpdateProfile sends a partial change and, on success, replaces the
// profile in memory and storage together. An Unauthorized answer signs the
// user out.
func (m *SessionManager) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (*models.UserProfile, error) {
	m.ops.Lock()
	defer m.ops.Unlock()

	if m.State() != SessionAuthenticated {
		return nil, ErrNotAuthenticated
	}
	if update.IsEmpty() {
		return m.Profile(), nil
	}
	if offline(m.gate) {
		return nil, ErrOffline
	}

	p, err := m.gateway.UpdateProfile(ctx, update)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			m.logger.Warn(ctx, "session rejected during profile update, signing out")
			if serr := m.signOutLocked(ctx, false); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		return nil, err
	}

	token := m.Token()
	if err := m.saveStored(ctx, token, p); err != nil {
		m.logger.Error(ctx, "failed to persist updated profile", "error", err)
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.transition(ctx, SessionAuthenticated, token, p)
	return cloneProfile(p), nil
}

// Refresh exchanges the current token for a fresh one.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.ops.Lock()
	defer m.ops.Unlock()

	if m.State() != SessionAuthenticated {
		return ErrNotAuthenticated
	}
	if offline(m.gate) {
		return ErrOffline
	}

	token, err := m.gateway.RefreshToken(ctx)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			m.logger.Warn(ctx, "token refresh rejected, signing out")
			if serr := m.signOutLocked(ctx, false); serr != nil {
				err = errors.Join(err, serr)
			}
		}
		return err
	}

	p := m.Profile()
	if err := m.saveStored(ctx, token, p); err != nil {
		m.logger.Error(ctx, "failed to persist refreshed token", "error", err)
		return fmt.Errorf("save session: %w", err)
	}
	m.gateway.SetToken(token)
	m.transition(ctx, SessionAuthenticated, token, p)
	return nil
}

func (m *SessionManager) State() SessionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Profile returns a copy of the current profile, or nil when signed out.
func (m *SessionManager) Profile() *models.UserProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneProfile(m.profile)
}

func (m *SessionManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// OnChange registers fn to be called after every state or profile change.
// fn must not call back into mutating SessionManager methods.
func (m *SessionManager) OnChange(fn func(SessionState, *models.UserProfile)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *SessionManager) setLoading(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loading = v
}

func (m *SessionManager) transition(ctx context.Context, to SessionState, token string, p *models.UserProfile) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.token = token
	m.profile = cloneProfile(p)
	ls := append([]func(SessionState, *models.UserProfile){}, m.listeners...)
	m.mu.Unlock()

	if from != to {
		args := []any{"from", from.String(), "to", to.String()}
		if p != nil {
			args = append(args, "crew_id", p.CrewID)
		}
		m.logger.Info(ctx, "session state changed", args...)
	}
	for _, fn := range ls {
		fn(to, cloneProfile(p))
	}
}

func cloneProfile(p *models.UserProfile) *models.UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
