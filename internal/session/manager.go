package session

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the authentication lifecycle state exposed to consumers.
type State int

const (
	// StateInitializing is entered exactly once at construction, before the
	// store has been consulted. It never re-enters after resolving.
	StateInitializing State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Manager is the session state machine. It is the only session surface
// exposed to UI-level code. State transitions happen on Login, Logout, and
// terminal refresh failures; consumers observe them via CurrentUser,
// IsAuthenticated, and the OnChange hook.
type Manager struct {
	store  *Store
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	profile  *Profile
	onChange func(State)
}

// NewManager constructs the state machine and resolves the initializing
// state synchronously by reading the store: a persisted session yields
// authenticated, anything else unauthenticated. A corrupt store is treated
// as absent rather than an error — the user just has to sign in again.
func NewManager(store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		store:  store,
		logger: logger,
		state:  StateInitializing,
	}

	sess, err := store.Get()
	if err != nil {
		logger.Warn("discarding unreadable persisted session", "error", err)

		_ = store.Clear()
	}

	if sess.Valid() {
		profile := sess.Profile
		m.state = StateAuthenticated
		m.profile = &profile

		logger.Info("restored persisted session", "user_id", profile.ID)
	} else {
		m.state = StateUnauthenticated
	}

	return m
}

// SetOnChange registers a hook invoked after every state transition, outside
// the manager's lock. The CLI uses it to prompt for sign-in; a UI layer
// would navigate. Only transitions fire the hook — repeated logouts do not.
func (m *Manager) SetOnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Login persists the session and transitions to authenticated.
func (m *Manager) Login(sess *Session) error {
	if !sess.Valid() {
		return fmt.Errorf("session: login with incomplete session")
	}

	if err := m.store.Set(sess); err != nil {
		return err
	}

	m.mu.Lock()
	profile := sess.Profile
	m.profile = &profile
	changed := m.state != StateAuthenticated
	m.state = StateAuthenticated
	hook := m.onChange
	m.mu.Unlock()

	m.logger.Info("logged in", "user_id", profile.ID)

	if changed && hook != nil {
		hook(StateAuthenticated)
	}

	return nil
}

// Logout clears the store and transitions to unauthenticated. Idempotent:
// a second call leaves the store empty and fires no second notification.
func (m *Manager) Logout() error {
	if err := m.store.Clear(); err != nil {
		return err
	}

	m.mu.Lock()
	m.profile = nil
	changed := m.state != StateUnauthenticated
	m.state = StateUnauthenticated
	hook := m.onChange
	m.mu.Unlock()

	if changed {
		m.logger.Info("logged out")

		if hook != nil {
			hook(StateUnauthenticated)
		}
	}

	return nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// IsAuthenticated reports whether a session is active.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// CurrentUser returns a copy of the signed-in profile, or nil when signed out.
func (m *Manager) CurrentUser() *Profile {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.profile == nil {
		return nil
	}

	profile := *m.profile

	return &profile
}
