package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/credentials"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
	"github.com/dmitrijs2005/ipdash/internal/client/nav"
)

// stubAuth implements Authenticator for unit tests.
type stubAuth struct {
	mu sync.Mutex

	meUser  *models.User
	meErr   error
	meBlock chan struct{}
	meCalls int

	loginResp    client.AuthResponse
	loginErr     error
	onLogin      func(ctx context.Context)
	registerResp client.AuthResponse
	registerErr  error

	logoutErr   error
	logoutBlock chan struct{}
	logoutCalls int
}

func (a *stubAuth) Login(ctx context.Context, _, _ string) (client.AuthResponse, error) {
	a.mu.Lock()
	resp, err, hook := a.loginResp, a.loginErr, a.onLogin
	a.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
	return resp, err
}

func (a *stubAuth) Register(context.Context, string, string) (client.AuthResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registerResp, a.registerErr
}

func (a *stubAuth) Me(ctx context.Context) (*models.User, error) {
	a.mu.Lock()
	a.meCalls++
	block, u, err := a.meBlock, a.meUser, a.meErr
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return u, err
}

func (a *stubAuth) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.logoutCalls++
	block, err := a.logoutBlock, a.logoutErr
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (a *stubAuth) calls() (me, logout int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.meCalls, a.logoutCalls
}

func (a *stubAuth) set(fn func(a *stubAuth)) {
	a.mu.Lock()
	fn(a)
	a.mu.Unlock()
}

func newTestStore(t *testing.T, auth Authenticator, token string) (*Store, *credentials.Memory, *nav.Router) {
	t.Helper()
	creds := credentials.NewMemory(token)
	router := nav.NewRouter(nav.DashboardPath)
	s := New(auth, creds, router, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s, creds, router
}

func loadToken(t *testing.T, creds credentials.Store) string {
	t.Helper()
	token, err := creds.Load(context.Background())
	require.NoError(t, err)
	return token
}

var alice = &models.User{ID: "u1", Email: "alice@example.com"}

func TestStore_StartsBooting(t *testing.T) {
	s, _, _ := newTestStore(t, &stubAuth{}, "")
	snap := s.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, Booting, s.State())
}

func TestStore_InitializeWithoutCredential(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "")

	snap, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Anonymous, snap.State())
	assert.Nil(t, snap.User)

	me, _ := auth.calls()
	assert.Zero(t, me)
}

func TestStore_InitializeWithValidCredential(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, creds, _ := newTestStore(t, auth, "T1")

	snap, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Authenticated, snap.State())
	require.NotNil(t, snap.User)
	assert.Equal(t, alice.Email, snap.User.Email)
	assert.Equal(t, "T1", loadToken(t, creds))
}

func TestStore_InitializeFailureClearsCredential(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", &client.Error{Kind: client.KindNetwork, Err: errors.New("connection refused")}},
		{"malformed", &client.Error{Kind: client.KindMalformed, Status: 200}},
		{"rejected", &client.Error{Kind: client.KindAuthRejected, Status: 401}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, creds, _ := newTestStore(t, &stubAuth{meErr: tt.err}, "T1")

			snap, err := s.Initialize(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Anonymous, snap.State())
			assert.Nil(t, snap.User)
			assert.Empty(t, loadToken(t, creds))
		})
	}
}

func TestStore_InitializeRunsOnce(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "T1")

	_, err := s.Initialize(context.Background())
	require.NoError(t, err)
	_, err = s.Initialize(context.Background())
	require.NoError(t, err)

	me, _ := auth.calls()
	assert.Equal(t, 1, me)
}

func TestStore_InitializeAbandoned(t *testing.T) {
	auth := &stubAuth{meUser: alice, meBlock: make(chan struct{})}
	s, creds, _ := newTestStore(t, auth, "T1")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Initialize(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool { me, _ := auth.calls(); return me == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Booting, s.State())
	assert.Equal(t, "T1", loadToken(t, creds))

	// A later attempt still resolves the session.
	auth.set(func(a *stubAuth) { a.meBlock = nil })
	snap, err := s.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Authenticated, snap.State())
}

func TestStore_InitializeDiscardedOnClose(t *testing.T) {
	auth := &stubAuth{meUser: alice, meBlock: make(chan struct{})}
	s, creds, _ := newTestStore(t, auth, "T1")

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Initialize(context.Background())
		errCh <- err
	}()
	require.Eventually(t, func() bool { me, _ := auth.calls(); return me == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.ErrorIs(t, <-errCh, ErrClosed)
	assert.Equal(t, Booting, s.State())
	assert.Equal(t, "T1", loadToken(t, creds))
}

func TestStore_RevalidateFailureLeavesSessionUnchanged(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, creds, _ := newTestStore(t, auth, "T1")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)
	before := s.Snapshot()

	for _, failure := range []error{
		&client.Error{Kind: client.KindNetwork, Err: errors.New("timeout")},
		&client.Error{Kind: client.KindMalformed, Status: 200},
		&client.Error{Kind: client.KindStatus, Status: 500},
	} {
		auth.set(func(a *stubAuth) { a.meUser, a.meErr = nil, failure })
		require.NoError(t, s.Revalidate(context.Background()))
		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, "T1", loadToken(t, creds))
	}
}

func TestStore_RevalidateRefreshesUser(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "T1")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	renamed := &models.User{ID: "u1", Email: "alice@example.com", Name: "Alice"}
	auth.set(func(a *stubAuth) { a.meUser = renamed })
	require.NoError(t, s.Revalidate(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, "Alice", snap.User.Name)
	assert.False(t, snap.IsLoading)
}

func TestStore_RevalidateNeverTouchesLoading(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "T1")

	require.NoError(t, s.Revalidate(context.Background()))
	assert.True(t, s.Snapshot().IsLoading)
}

func TestStore_RevalidateNeverSignsIn(t *testing.T) {
	auth := &stubAuth{meUser: alice}

	// Booting with a credential: revalidation leaves the store booting.
	s, _, _ := newTestStore(t, auth, "T1")
	require.NoError(t, s.Revalidate(context.Background()))
	assert.Equal(t, Booting, s.State())
	assert.Nil(t, s.Snapshot().User)

	// Anonymous while a credential is stored.
	s, creds, _ := newTestStore(t, auth, "")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)
	require.NoError(t, creds.Save(context.Background(), "T1"))

	require.NoError(t, s.Revalidate(context.Background()))
	assert.Equal(t, Anonymous, s.State())
	assert.Nil(t, s.Snapshot().User)
}

func TestStore_RevalidateWithoutCredential(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Revalidate(context.Background()))
	me, _ := auth.calls()
	assert.Zero(t, me)
	assert.Equal(t, Anonymous, s.State())
}

func TestStore_Login(t *testing.T) {
	auth := &stubAuth{loginResp: client.AuthResponse{Token: "T1", User: alice}}
	s, creds, _ := newTestStore(t, auth, "")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	res := s.Login(context.Background(), "alice@example.com", "pw")
	assert.Equal(t, Result{Success: true}, res)

	snap := s.Snapshot()
	assert.Equal(t, Authenticated, snap.State())
	assert.Equal(t, alice.ID, snap.User.ID)
	assert.Equal(t, "T1", loadToken(t, creds))
}

func TestStore_LoginFallsBackToEmail(t *testing.T) {
	auth := &stubAuth{loginResp: client.AuthResponse{Token: "T1"}}
	s, creds, _ := newTestStore(t, auth, "")

	res := s.Login(context.Background(), "a@b.com", "x")
	require.True(t, res.Success)
	assert.Equal(t, &models.User{Email: "a@b.com"}, s.Snapshot().User)
	assert.Equal(t, "T1", loadToken(t, creds))
	assert.False(t, s.Snapshot().IsLoading)
}

func TestStore_LoginFailures(t *testing.T) {
	tests := []struct {
		name string
		resp client.AuthResponse
		err  error
		want string
	}{
		{name: "no token", resp: client.AuthResponse{User: alice}, want: "No token received from server"},
		{name: "collaborator error", err: errors.New("bad credentials"), want: "bad credentials"},
		{name: "empty error text", err: errors.New(""), want: "Login failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{loginResp: tt.resp, loginErr: tt.err}
			s, creds, _ := newTestStore(t, auth, "")
			_, err := s.Initialize(context.Background())
			require.NoError(t, err)
			before := s.Snapshot()

			res := s.Login(context.Background(), "a@b.com", "x")
			assert.Equal(t, Result{Error: tt.want}, res)
			assert.Equal(t, before, s.Snapshot())
			assert.Empty(t, loadToken(t, creds))
		})
	}
}

func TestStore_Register(t *testing.T) {
	auth := &stubAuth{registerResp: client.AuthResponse{Token: "T2", User: alice}}
	s, creds, _ := newTestStore(t, auth, "")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	res := s.Register(context.Background(), alice.Email, "pw")
	assert.True(t, res.Success)
	assert.Equal(t, Authenticated, s.State())
	assert.Equal(t, "T2", loadToken(t, creds))

	auth.set(func(a *stubAuth) { a.registerErr = errors.New("User already exists") })
	res = s.Register(context.Background(), alice.Email, "pw")
	assert.Equal(t, Result{Error: "User already exists"}, res)
	assert.Equal(t, Authenticated, s.State())
}

func TestStore_Logout(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		logoutErr  error
		wantNotify int
	}{
		{name: "authenticated", token: "T1", wantNotify: 1},
		{name: "backend failure ignored", token: "T1", logoutErr: errors.New("503"), wantNotify: 1},
		{name: "anonymous", token: "", wantNotify: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &stubAuth{meUser: alice, logoutErr: tt.logoutErr}
			s, creds, router := newTestStore(t, auth, tt.token)
			_, err := s.Initialize(context.Background())
			require.NoError(t, err)

			require.NoError(t, s.Logout(context.Background()))

			snap := s.Snapshot()
			assert.False(t, snap.IsAuthenticated)
			assert.Nil(t, snap.User)
			assert.Empty(t, loadToken(t, creds))
			assert.Equal(t, nav.LoginPath, router.Location())

			// Close waits for the background notification.
			require.NoError(t, s.Close())
			_, logouts := auth.calls()
			assert.Equal(t, tt.wantNotify, logouts)
		})
	}
}

func TestStore_LogoutDoesNotWaitForBackend(t *testing.T) {
	release := make(chan struct{})
	auth := &stubAuth{
		meUser:      alice,
		loginResp:   client.AuthResponse{Token: "T2", User: alice},
		logoutBlock: release,
	}
	s, creds, router := newTestStore(t, auth, "T1")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Logout(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Logout waited for the backend")
	}
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, loadToken(t, creds))
	assert.Equal(t, nav.LoginPath, router.Location())

	// The store keeps serving while the backend call is outstanding.
	require.True(t, s.Login(context.Background(), alice.Email, "pw").Success)
	assert.Equal(t, "T2", loadToken(t, creds))

	close(release)
	require.Eventually(t, func() bool { _, n := auth.calls(); return n == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Authenticated, s.State())
}

func TestStore_LogoutNotificationIsBounded(t *testing.T) {
	auth := &stubAuth{meUser: alice, logoutBlock: make(chan struct{})}
	s, _, _ := newTestStore(t, auth, "T1")
	s.notifyTimeout = 50 * time.Millisecond
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background()))

	closed := make(chan struct{})
	go func() {
		_ = s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after the notify timeout")
	}
	_, logouts := auth.calls()
	assert.Equal(t, 1, logouts)
}

// gatedCreds blocks Clear until released.
type gatedCreds struct {
	*credentials.Memory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCreds) Clear(ctx context.Context) error {
	close(g.entered)
	<-g.release
	return g.Memory.Clear(ctx)
}

func TestStore_LogoutCompletesWhenCallerCancels(t *testing.T) {
	creds := &gatedCreds{
		Memory:  credentials.NewMemory("T1"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(&stubAuth{}, creds, nil, nil)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Logout(ctx) }()

	<-creds.entered
	cancel()
	close(creds.release)

	require.NoError(t, <-done)
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, loadToken(t, creds))
}

func TestStore_Evict(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, creds, _ := newTestStore(t, auth, "T1")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Evict(context.Background()))
	assert.Equal(t, Anonymous, s.State())
	assert.Empty(t, loadToken(t, creds))
}

func TestStore_HandleEviction(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "T1")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	s.HandleEviction(context.Background())
	require.Eventually(t, func() bool { return s.State() == Anonymous }, time.Second, 5*time.Millisecond)
}

func TestStore_HandleEvictionOvertakenByLogin(t *testing.T) {
	auth := &stubAuth{loginResp: client.AuthResponse{Token: "T2", User: alice}}
	s, creds, _ := newTestStore(t, auth, "")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	// An eviction raised while the login is in flight must not undo it.
	auth.set(func(a *stubAuth) { a.onLogin = s.HandleEviction })
	require.True(t, s.Login(context.Background(), alice.Email, "pw").Success)

	assert.Never(t, func() bool { return s.State() != Authenticated }, 200*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, "T2", loadToken(t, creds))
}

func TestStore_Subscribe(t *testing.T) {
	auth := &stubAuth{loginResp: client.AuthResponse{Token: "T1", User: alice}}
	s, _, _ := newTestStore(t, auth, "")

	var mu sync.Mutex
	var states []State
	unsubscribe := s.Subscribe(func(sess Session) {
		if sess.IsAuthenticated {
			assert.NotNil(t, sess.User)
		}
		mu.Lock()
		states = append(states, sess.State())
		mu.Unlock()
	})

	_, err := s.Initialize(context.Background())
	require.NoError(t, err)
	require.True(t, s.Login(context.Background(), alice.Email, "pw").Success)
	require.NoError(t, s.Revalidate(context.Background())) // Me fails: no event
	require.NoError(t, s.Logout(context.Background()))

	unsubscribe()
	require.True(t, s.Login(context.Background(), alice.Email, "pw").Success)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{Anonymous, Authenticated, Anonymous}, states)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	auth := &stubAuth{meUser: alice}
	s, _, _ := newTestStore(t, auth, "T1")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.User.Email = "mallory@example.com"
	assert.Equal(t, alice.Email, s.Snapshot().User.Email)
}

func TestStore_Closed(t *testing.T) {
	s, _, _ := newTestStore(t, &stubAuth{}, "")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Revalidate(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Logout(context.Background()), ErrClosed)
	assert.ErrorIs(t, s.Evict(context.Background()), ErrClosed)
	assert.Equal(t, Result{Error: ErrClosed.Error()}, s.Login(context.Background(), "a@b.com", "x"))
}

func TestStore_ConcurrentMutationsKeepInvariant(t *testing.T) {
	auth := &stubAuth{meUser: alice, loginResp: client.AuthResponse{Token: "T1", User: alice}}
	s, creds, _ := newTestStore(t, auth, "")
	_, err := s.Initialize(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				s.Login(context.Background(), fmt.Sprintf("u%d@example.com", i), "pw")
			case 1:
				_ = s.Logout(context.Background())
			default:
				_ = s.Revalidate(context.Background())
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	token := loadToken(t, creds)
	if snap.IsAuthenticated {
		assert.NotNil(t, snap.User)
		assert.Equal(t, "T1", token)
	} else {
		assert.Nil(t, snap.User)
		assert.Empty(t, token)
	}
}
