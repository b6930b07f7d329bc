package auth

import (
	"context"
	"io/ioutil"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
	logsvc "github.com/trezcool/kazi/services/logger"
	"github.com/trezcool/kazi/storage/session"
)

var errStubUnauthorized = errors.New("invalid or expired token")

// apiStub implements API and records every call.
type apiStub struct {
	mutex       sync.Mutex
	loginFn     func(user.Credentials) (user.Token, error)
	signupFn    func(user.NewUser) (user.User, error)
	meFn        func(token string) (user.User, error)
	loginCalls  []user.Credentials
	signupCalls []user.NewUser
	meCalls     []string
}

func (s *apiStub) Login(_ context.Context, creds user.Credentials) (user.Token, error) {
	s.mutex.Lock()
	s.loginCalls = append(s.loginCalls, creds)
	fn := s.loginFn
	s.mutex.Unlock()
	if fn == nil {
		return user.Token{}, errors.New("unexpected Login call")
	}
	return fn(creds)
}

func (s *apiStub) Signup(_ context.Context, data user.NewUser) (user.User, error) {
	s.mutex.Lock()
	s.signupCalls = append(s.signupCalls, data)
	fn := s.signupFn
	s.mutex.Unlock()
	if fn == nil {
		return user.User{}, errors.New("unexpected Signup call")
	}
	return fn(data)
}

func (s *apiStub) Me(_ context.Context, token string) (user.User, error) {
	s.mutex.Lock()
	s.meCalls = append(s.meCalls, token)
	fn := s.meFn
	s.mutex.Unlock()
	if fn == nil {
		return user.User{}, errors.New("unexpected Me call")
	}
	return fn(token)
}

func (s *apiStub) calls() (logins []user.Credentials, signups []user.NewUser, mes []string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loginCalls, s.signupCalls, s.meCalls
}

func testLogger() core.Logger {
	return logsvc.NewStdLogger(log.New(ioutil.Discard, "", 0))
}

var alice = user.User{ID: "u1", Name: "Alice", Username: "alice", Role: user.RoleStudent}

// aliceAPI accepts alice/secret123 and resolves tok-1 to alice.
func aliceAPI() *apiStub {
	return &apiStub{
		loginFn: func(creds user.Credentials) (user.Token, error) {
			if creds.Username == "alice" && creds.Password == "secret123" {
				return user.Token{AccessToken: "tok-1", TokenType: "bearer"}, nil
			}
			return user.Token{}, errors.New("Incorrect username or password")
		},
		meFn: func(token string) (user.User, error) {
			if token == "tok-1" {
				return alice, nil
			}
			return user.User{}, errStubUnauthorized
		},
	}
}

func Test_Manager_Startup(t *testing.T) {
	ctx := context.Background()

	t.Run("no stored credential settles unauthenticated without resolving", func(t *testing.T) {
		api := aliceAPI()
		mgr := NewManager(session.NewInMemStore(), api, testLogger())
		require.True(t, mgr.State().IsLoading())

		st := mgr.Startup(ctx)

		assert.Equal(t, StatusUnauthenticated, st.Status)
		assert.Nil(t, st.User)
		assert.Empty(t, st.Credential)
		_, _, mes := api.calls()
		assert.Empty(t, mes, "resolver must not be called without a credential")
	})

	t.Run("stored credential that resolves settles authenticated", func(t *testing.T) {
		store := session.NewInMemStore()
		require.NoError(t, store.Save("tok-1"))
		mgr := NewManager(store, aliceAPI(), testLogger())

		st := mgr.Startup(ctx)

		assert.Equal(t, StatusAuthenticated, st.Status)
		assert.False(t, st.IsLoading())
		require.NotNil(t, st.User)
		assert.Equal(t, alice, *st.User)
		assert.Equal(t, "tok-1", st.Credential)

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "tok-1", cred, "stored credential must be left untouched")
	})

	t.Run("rejected credential is cleared and reported as expired", func(t *testing.T) {
		store := session.NewInMemStore()
		require.NoError(t, store.Save("tok-stale"))
		mgr := NewManager(store, aliceAPI(), testLogger())

		st := mgr.Startup(ctx)

		assert.Equal(t, StatusErrored, st.Status)
		assert.Equal(t, SessionExpiredMsg, st.Err)
		assert.False(t, st.IsAuthenticated())

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, cred, "rejected credential must be cleared")
	})
}

func Test_Manager_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		store := session.NewInMemStore()
		mgr := NewManager(store, aliceAPI(), testLogger())

		st := mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})

		assert.Equal(t, StatusAuthenticated, st.Status)
		require.NotNil(t, st.User)
		assert.Equal(t, "u1", st.User.ID)
		assert.Equal(t, "tok-1", st.Credential)

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "tok-1", cred)
	})

	t.Run("invalid credentials pass the service message through", func(t *testing.T) {
		store := session.NewInMemStore()
		mgr := NewManager(store, aliceAPI(), testLogger())

		st := mgr.Login(ctx, user.Credentials{Username: "alice", Password: "nope-nope"})

		assert.Equal(t, StatusErrored, st.Status)
		assert.Equal(t, "Incorrect username or password", st.Err)

		cred, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, cred, "no token may be written on a failed exchange")
	})

	t.Run("token that does not resolve is cleared", func(t *testing.T) {
		api := aliceAPI()
		api.meFn = func(string) (user.User, error) { return user.User{}, errStubUnauthorized }
		store := session.NewInMemStore()
		mgr := NewManager(store, api, testLogger())

		st := mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})

		assert.Equal(t, StatusErrored, st.Status)
		cred, err := store.Load()
		require.NoError(t, err)
		assert.Empty(t, cred)
	})

	t.Run("login clears a previous error", func(t *testing.T) {
		mgr := NewManager(session.NewInMemStore(), aliceAPI(), testLogger())
		st := mgr.Login(ctx, user.Credentials{Username: "alice", Password: "nope-nope"})
		require.Equal(t, StatusErrored, st.Status)

		var sawLoading bool
		mgr.Subscribe(func(st State) {
			if st.IsLoading() {
				sawLoading = true
				assert.Empty(t, st.Err)
			}
		})
		st = mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})
		assert.True(t, sawLoading)
		assert.Equal(t, StatusAuthenticated, st.Status)
		assert.Empty(t, st.Err)
	})
}

func Test_Manager_Signup(t *testing.T) {
	ctx := context.Background()
	bob := user.User{ID: "u2", Name: "Bob", Username: "bob", Role: user.RoleStudent}

	t.Run("success chains into login with the submitted credentials", func(t *testing.T) {
		api := &apiStub{
			signupFn: func(data user.NewUser) (user.User, error) { return bob, nil },
			loginFn: func(creds user.Credentials) (user.Token, error) {
				return user.Token{AccessToken: "tok-2", TokenType: "bearer"}, nil
			},
			meFn: func(token string) (user.User, error) { return bob, nil },
		}
		store := session.NewInMemStore()
		mgr := NewManager(store, api, testLogger())

		st := mgr.Signup(ctx, user.NewUser{
			Name: "Bob", Username: "bob", Password: "pw123456", Role: user.RoleStudent,
		})

		logins, signups, _ := api.calls()
		require.Len(t, signups, 1)
		require.Len(t, logins, 1)
		assert.Equal(t, user.Credentials{Username: "bob", Password: "pw123456"}, logins[0])

		assert.Equal(t, StatusAuthenticated, st.Status)
		assert.Equal(t, "tok-2", st.Credential)
		cred, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, "tok-2", cred)
	})

	t.Run("rejected signup never attempts the login", func(t *testing.T) {
		api := &apiStub{
			signupFn: func(user.NewUser) (user.User, error) {
				return user.User{}, errors.New("Username already exists")
			},
		}
		mgr := NewManager(session.NewInMemStore(), api, testLogger())

		st := mgr.Signup(ctx, user.NewUser{
			Name: "Bob", Username: "bob", Password: "pw123456", Role: user.RoleStudent,
		})

		assert.Equal(t, StatusErrored, st.Status)
		assert.Equal(t, "Username already exists", st.Err)
		logins, _, _ := api.calls()
		assert.Empty(t, logins)
	})
}

func Test_Manager_Logout(t *testing.T) {
	ctx := context.Background()
	api := aliceAPI()
	store := session.NewInMemStore()
	mgr := NewManager(store, api, testLogger())

	st := mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})
	require.Equal(t, StatusAuthenticated, st.Status)
	logins, _, mes := api.calls()
	callsBefore := len(logins) + len(mes)

	st = mgr.Logout()

	assert.Equal(t, StatusUnauthenticated, st.Status)
	assert.Nil(t, st.User)
	assert.Empty(t, st.Credential)
	assert.Empty(t, st.Err)

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cred)

	logins, _, mes = api.calls()
	assert.Equal(t, callsBefore, len(logins)+len(mes), "logout must not hit the network")
}

// Credential written by a login is exactly what the next startup loads.
func Test_Manager_sessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemStore()

	mgr := NewManager(store, aliceAPI(), testLogger())
	st := mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})
	require.Equal(t, StatusAuthenticated, st.Status)

	// simulated reload: a fresh manager over the same store
	mgr2 := NewManager(store, aliceAPI(), testLogger())
	st2 := mgr2.Startup(ctx)

	assert.Equal(t, StatusAuthenticated, st2.Status)
	assert.Equal(t, st.Credential, st2.Credential)
}

// Two overlapping logins: only the most recently issued one may commit,
// even when its response arrives first.
func Test_Manager_overlappingLoginsLastIssuedWins(t *testing.T) {
	ctx := context.Background()

	release := make(chan struct{})
	secondDone := make(chan struct{})
	api := &apiStub{
		loginFn: func(creds user.Credentials) (user.Token, error) {
			if creds.Username == "slow" {
				<-release // parked until the second login settled
				return user.Token{AccessToken: "tok-stale"}, nil
			}
			return user.Token{AccessToken: "tok-fresh"}, nil
		},
		meFn: func(token string) (user.User, error) {
			return user.User{ID: "u-" + token, Username: "who", Role: user.RoleStudent}, nil
		},
	}
	store := session.NewInMemStore()
	mgr := NewManager(store, api, testLogger())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		st := mgr.Login(ctx, user.Credentials{Username: "slow", Password: "password"})
		// the stale transition must observe the fresh result, not its own
		assert.Equal(t, "tok-fresh", st.Credential)
	}()
	go func() {
		defer wg.Done()
		defer close(secondDone)
		// make sure the slow login was issued first
		for {
			logins, _, _ := api.calls()
			if len(logins) > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
		st := mgr.Login(ctx, user.Credentials{Username: "fast", Password: "password"})
		assert.Equal(t, "tok-fresh", st.Credential)
	}()

	<-secondDone
	close(release)
	wg.Wait()

	st := mgr.State()
	assert.Equal(t, StatusAuthenticated, st.Status)
	assert.Equal(t, "tok-fresh", st.Credential)
	cred, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-fresh", cred, "a stale response must not overwrite storage")
}

// parkedSaveStore blocks its first Save until released, so a test can
// interleave another transition with an in-flight credential write.
type parkedSaveStore struct {
	session.Store
	entered chan struct{}
	release chan struct{}
}

func (s *parkedSaveStore) Save(credential string) error {
	close(s.entered)
	<-s.release
	return s.Store.Save(credential)
}

// A logout issued while a login is still persisting its token must win
// durably: the token may never survive in storage, or the next startup
// would resurrect the logged-out session.
func Test_Manager_logoutDuringInFlightLogin(t *testing.T) {
	ctx := context.Background()
	store := &parkedSaveStore{
		Store:   session.NewInMemStore(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	api := &apiStub{
		loginFn: func(user.Credentials) (user.Token, error) {
			return user.Token{AccessToken: "tok-zombie"}, nil
		},
		meFn: func(token string) (user.User, error) { return alice, nil },
	}
	mgr := NewManager(store, api, testLogger())

	loginDone := make(chan State)
	go func() {
		loginDone <- mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})
	}()
	<-store.entered

	logoutDone := make(chan State)
	go func() {
		logoutDone <- mgr.Logout()
	}()
	close(store.release)

	st := <-logoutDone
	assert.Equal(t, StatusUnauthenticated, st.Status)

	loginSt := <-loginDone
	assert.NotEqual(t, StatusAuthenticated, loginSt.Status,
		"the invalidated login must not report success")

	assert.Equal(t, StatusUnauthenticated, mgr.State().Status)
	cred, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, cred, "logout must outlast the in-flight credential write")

	// a fresh startup over the same store must not resurrect the session
	fresh := NewManager(store, api, testLogger())
	assert.Equal(t, StatusUnauthenticated, fresh.Startup(ctx).Status)
}

func Test_Manager_subscribersSeeCommittedStates(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(session.NewInMemStore(), aliceAPI(), testLogger())

	var statuses []Status
	mgr.Subscribe(func(st State) { statuses = append(statuses, st.Status) })

	mgr.Login(ctx, user.Credentials{Username: "alice", Password: "secret123"})
	mgr.Logout()

	assert.Equal(t, []Status{StatusLoading, StatusAuthenticated, StatusUnauthenticated}, statuses)
}
