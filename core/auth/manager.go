package auth

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/storage/session"
)

// SessionExpiredMsg is surfaced when a previously stored credential no longer
// verifies at startup.
const SessionExpiredMsg = "Session expired. Please login again."

type (
	// API is the slice of the service the state machine consumes:
	// the credential exchange, account registration and the "who am I"
	// resolver. client.Client satisfies it.
	API interface {
		Login(ctx context.Context, creds user.Credentials) (user.Token, error)
		Signup(ctx context.Context, data user.NewUser) (user.User, error)
		Me(ctx context.Context, token string) (user.User, error)
	}

	// Manager is the auth state machine. One instance is created at
	// application start and shared by every view; all state reads go through
	// State/Subscribe and all writes through the four transitions
	// (Startup, Login, Signup, Logout).
	//
	// Overlapping transitions are serialized by a generation counter: each
	// issued transition invalidates the previous one, so only the most
	// recently issued request's response commits to state. A stale response
	// is discarded along with its storage side effects.
	Manager struct {
		store  session.Store
		api    API
		logger core.Logger

		mutex sync.Mutex
		state State
		gen   uint64
		subs  []func(State)
	}
)

// NewManager returns a Manager in the loading phase; Startup resolves it
// exactly once.
func NewManager(store session.Store, api API, logger core.Logger) *Manager {
	return &Manager{
		store:  store,
		api:    api,
		logger: logger,
		state:  loading(),
	}
}

// State returns a snapshot of the current auth state.
func (m *Manager) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// Subscribe registers fn to be called with every committed state change.
// fn must not block; it is invoked outside the state lock.
func (m *Manager) Subscribe(fn func(State)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.subs = append(m.subs, fn)
}

// Startup verifies any persisted credential and settles the initial state.
// No stored credential means no resolver call is made at all.
func (m *Manager) Startup(ctx context.Context) State {
	gen := m.begin()

	credential, err := m.store.Load()
	if err != nil {
		// an unreadable store is treated as an absent credential
		m.logger.Warn("loading stored credential", err)
		return m.commit(gen, unauthenticated())
	}
	if credential == "" {
		return m.commit(gen, unauthenticated())
	}

	usr, err := m.api.Me(ctx, credential)
	if err != nil {
		m.clearIfCurrent(gen)
		return m.commit(gen, errored(SessionExpiredMsg))
	}
	return m.commit(gen, authenticated(usr, credential))
}

// Login exchanges credentials for a token, persists it and resolves the
// user's identity. Any failure lands in the Errored state; nothing is
// persisted unless the exchange succeeded.
func (m *Manager) Login(ctx context.Context, creds user.Credentials) State {
	gen := m.begin()

	token, err := m.api.Login(ctx, creds)
	if err != nil {
		return m.commit(gen, errored(errMessage(err, "Failed to login")))
	}

	if !m.saveIfCurrent(gen, token.AccessToken) {
		return m.State()
	}

	usr, err := m.api.Me(ctx, token.AccessToken)
	if err != nil {
		// same policy as Startup: a credential that does not resolve
		// is not worth keeping around
		m.clearIfCurrent(gen)
		return m.commit(gen, errored(errMessage(err, "Failed to get user info")))
	}
	return m.commit(gen, authenticated(usr, token.AccessToken))
}

// Signup registers the account then chains into Login with the submitted
// username/password. A rejected signup never attempts the login.
func (m *Manager) Signup(ctx context.Context, data user.NewUser) State {
	gen := m.begin()

	if _, err := m.api.Signup(ctx, data); err != nil {
		return m.commit(gen, errored(errMessage(err, "Failed to sign up")))
	}
	if !m.current(gen) {
		return m.State()
	}
	return m.Login(ctx, user.Credentials{Username: data.Username, Password: data.Password})
}

// Logout clears the stored credential and settles to Unauthenticated
// synchronously; no network call is made. It also invalidates any in-flight
// transition so a stale response cannot resurrect the session.
func (m *Manager) Logout() State {
	m.mutex.Lock()
	m.gen++
	m.state = unauthenticated()
	st := m.state
	m.clearStoreLocked()
	subs := m.snapshotSubs()
	m.mutex.Unlock()

	notify(subs, st)
	return st
}

// begin opens a new transition: it invalidates any in-flight one and puts
// the machine in the loading phase (clearing any previous error).
func (m *Manager) begin() uint64 {
	m.mutex.Lock()
	m.gen++
	gen := m.gen
	m.state = loading()
	st := m.state
	subs := m.snapshotSubs()
	m.mutex.Unlock()

	notify(subs, st)
	return gen
}

// commit installs st iff gen is still the most recently issued transition;
// a stale result is dropped and the current state returned instead.
func (m *Manager) commit(gen uint64, st State) State {
	m.mutex.Lock()
	if gen != m.gen {
		st = m.state
		m.mutex.Unlock()
		return st
	}
	m.state = st
	subs := m.snapshotSubs()
	m.mutex.Unlock()

	notify(subs, st)
	return st
}

func (m *Manager) current(gen uint64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return gen == m.gen
}

// saveIfCurrent persists credential iff gen is still the live transition.
// The generation check and the write happen under the state lock as one
// step, so a Logout (or a newer transition) cannot slip in between them
// and leave a stale credential behind. A failed write is logged and
// tolerated: the session just won't survive a restart.
func (m *Manager) saveIfCurrent(gen uint64, credential string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if gen != m.gen {
		return false
	}
	if err := m.store.Save(credential); err != nil {
		m.logger.Warn("persisting credential", err)
	}
	return true
}

// clearIfCurrent discards the stored credential iff gen is still the live
// transition, under the same lock as the generation check.
func (m *Manager) clearIfCurrent(gen uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if gen == m.gen {
		m.clearStoreLocked()
	}
}

func (m *Manager) clearStoreLocked() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("clearing stored credential", err)
	}
}

func (m *Manager) snapshotSubs() []func(State) {
	subs := make([]func(State), len(m.subs))
	copy(subs, m.subs)
	return subs
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}

// errMessage extracts a display message from err; the service's `detail`
// messages pass through as-is (via their Error method), anything blank
// falls back to fallback.
func errMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := errors.Cause(err).Error(); msg != "" {
		return msg
	}
	return fallback
}
