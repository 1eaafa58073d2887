package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ysrcpconnect/connect/internal/api"
	"github.com/ysrcpconnect/connect/internal/cache"
	"github.com/ysrcpconnect/connect/internal/debuglog"
	"github.com/ysrcpconnect/connect/internal/model"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// Manager owns the auth session: login, role selection, the verification
// workflow and the persisted copy in the cache store. It doubles as the API
// client's token source.
type Manager struct {
	mu      sync.Mutex
	store   *cache.Store
	client  *api.Client
	session *model.Session
}

func NewManager(store *cache.Store) *Manager {
	return &Manager{store: store}
}

// SetClient wires the API client after construction; the client needs the
// manager as its token source first.
func (m *Manager) SetClient(client *api.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

// Token implements api.TokenSource.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

// Restore loads the persisted session at startup. No session is not an
// error; the caller checks IsAuthenticated.
func (m *Manager) Restore() error {
	session, err := m.store.LoadSession()
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()
	return nil
}

// Session returns a copy of the current session, or nil when signed out.
func (m *Manager) Session() *model.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	copied := *m.session
	return &copied
}

func (m *Manager) IsAuthenticated() bool {
	return m.Session() != nil
}

// TokenValid reports whether the stored token exists and has not passed its
// exp claim. The signature is the server's business; only the claims are
// inspected here. A malformed token counts as invalid and means re-login.
func (m *Manager) TokenValid() bool {
	token := m.Token()
	if token == "" {
		return false
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		debuglog.Warnf("auth: unparsable token: %v", err)
		return false
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return false
	}
	if exp == nil {
		return true
	}
	return exp.After(time.Now())
}

// Login exchanges the OAuth code via the server and persists the resulting
// session. Token exchange mechanics live server-side.
func (m *Manager) Login(ctx context.Context, code string) (*model.Session, error) {
	resp, err := m.client.GoogleLogin(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	session := &model.Session{
		User:               resp.User,
		Token:              resp.Token,
		Role:               resp.User.Role,
		VerificationStatus: resp.User.VerificationStatus,
	}

	if err := m.store.SaveSession(session); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	copied := *session
	return &copied, nil
}

// SelectRole sets the party role for a fresh account.
func (m *Manager) SelectRole(ctx context.Context, role model.Role) error {
	if !m.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	resp, err := m.client.SelectRole(ctx, string(role))
	if err != nil {
		return fmt.Errorf("selecting role: %w", err)
	}

	m.mu.Lock()
	m.session.Role = resp.Role
	m.session.User.Role = resp.Role
	session := *m.session
	m.mu.Unlock()

	if err := m.store.SaveSession(&session); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

// RequestVerification submits documents for review; the status becomes
// pending until an admin decides.
func (m *Manager) RequestVerification(ctx context.Context, documents []string, notes string) error {
	if !m.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	if err := m.client.RequestVerification(ctx, documents, notes); err != nil {
		return fmt.Errorf("requesting verification: %w", err)
	}

	m.setVerificationStatus(model.VerificationPending)
	return nil
}

// VerificationStatus re-queries the server and updates the session.
func (m *Manager) VerificationStatus(ctx context.Context) (model.VerificationStatus, error) {
	if !m.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}

	resp, err := m.client.VerificationStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("fetching verification status: %w", err)
	}

	m.setVerificationStatus(resp.Status)
	return resp.Status, nil
}

func (m *Manager) setVerificationStatus(status model.VerificationStatus) {
	m.mu.Lock()
	m.session.VerificationStatus = status
	m.session.User.VerificationStatus = status
	session := *m.session
	m.mu.Unlock()

	if err := m.store.SaveSession(&session); err != nil {
		debuglog.Errorf("auth: persisting verification status: %v", err)
	}
}

// Logout tells the server best-effort, then always clears the persisted
// session and the cached resource snapshots.
func (m *Manager) Logout(ctx context.Context) error {
	if m.IsAuthenticated() {
		if err := m.client.Logout(ctx); err != nil {
			debuglog.Warnf("auth: remote logout failed: %v", err)
		}
	}

	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	if err := m.store.ClearSession(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	m.store.ClearCache()
	return nil
}
