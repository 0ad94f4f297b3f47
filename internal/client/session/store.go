package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/credentials"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
	"github.com/dmitrijs2005/ipdash/internal/client/nav"
	"github.com/dmitrijs2005/ipdash/internal/logging"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("session store closed")

// DefaultLogoutNotifyTimeout bounds the backend logout call made after the
// session was already cleared locally.
const DefaultLogoutNotifyTimeout = 10 * time.Second

const (
	msgNoToken     = "No token received from server"
	msgLoginFailed = "Login failed"
	msgRegFailed   = "Registration failed"
)

// Store owns a Session. Mutations are executed by a single goroutine in
// submission order; Snapshot and State may be called from anywhere.
type Store struct {
	auth  Authenticator
	creds credentials.Store
	nav   nav.Navigator
	log   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ops    chan func()
	done   chan struct{}
	once   sync.Once

	// initialized is owned by the loop goroutine.
	initialized bool

	notifyTimeout time.Duration
	// pending tracks backend logout notifications; Add only runs on the loop
	// goroutine, so Close can Wait once the loop is gone.
	pending sync.WaitGroup

	mu        sync.RWMutex
	session   Session
	gen       uint64 // bumped on every login, register, logout and eviction
	listeners map[int]func(Session)
	nextID    int
}

// New creates a Store in the Booting state and starts its loop. navigator
// and log may be nil.
func New(auth Authenticator, creds credentials.Store, navigator nav.Navigator, log logging.Logger) *Store {
	if log == nil {
		log = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		auth:      auth,
		creds:     creds,
		nav:       navigator,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		ops:       make(chan func()),
		done:      make(chan struct{}),
		session:   Session{IsLoading: true},
		listeners: map[int]func(Session){},

		notifyTimeout: DefaultLogoutNotifyTimeout,
	}
	go s.loop()
	return s
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case op := <-s.ops:
			op()
		}
	}
}

// submit runs op on the loop goroutine and waits for it. op receives a
// context that is cancelled when either ctx or the store is done; op must
// check it before writing state.
func (s *Store) submit(ctx context.Context, op func(ctx context.Context)) error {
	return s.dispatch(ctx, op, false)
}

// submitDetached is submit for ops that always finish what they start: once
// op has begun, a cancelled ctx no longer turns its result into an error.
func (s *Store) submitDetached(ctx context.Context, op func(ctx context.Context)) error {
	return s.dispatch(ctx, op, true)
}

func (s *Store) dispatch(ctx context.Context, op func(ctx context.Context), detached bool) error {
	if s.ctx.Err() != nil {
		return ErrClosed
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	finished := make(chan struct{})
	var aborted bool
	job := func() {
		defer close(finished)
		if opCtx.Err() != nil {
			aborted = true
			return
		}
		op(opCtx)
		aborted = !detached && opCtx.Err() != nil
	}

	select {
	case s.ops <- job:
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished

	if aborted {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrClosed
	}
	return nil
}

// Snapshot returns a copy of the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.clone()
}

func (s *Store) State() State {
	return s.Snapshot().State()
}

// Subscribe registers fn to receive a copy of the session after every
// change. fn runs on the store goroutine and must not call Store mutators
// or Close synchronously. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// update applies fn under the lock and notifies listeners if the session
// changed. Only the loop goroutine calls it.
func (s *Store) update(bump bool, fn func(*Session)) {
	s.mu.Lock()
	before := s.session
	fn(&s.session)
	if bump {
		s.gen++
	}
	after := s.session.clone()
	changed := !before.equal(s.session)
	var listeners []func(Session)
	if changed {
		listeners = make([]func(Session), 0, len(s.listeners))
		for _, fn := range s.listeners {
			listeners = append(listeners, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(after)
	}
}

func (s *Store) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Initialize resolves the Booting state: without a stored credential the
// session becomes Anonymous without touching the network; otherwise the
// credential is validated against the backend. Any validation failure clears
// the credential. Only the first completed call has an effect.
//
// If ctx is cancelled or the store is closed while the backend call is in
// flight, its result is discarded and the session keeps booting.
func (s *Store) Initialize(ctx context.Context) (Session, error) {
	err := s.submit(ctx, s.initialize)
	return s.Snapshot(), err
}

func (s *Store) initialize(ctx context.Context) {
	if s.initialized {
		return
	}

	token, err := s.creds.Load(ctx)
	if err != nil {
		s.log.Warn(ctx, "credential unreadable, starting anonymous", "error", err)
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil || token == "" {
		s.initialized = true
		s.update(false, func(sess *Session) { *sess = Session{} })
		return
	}

	user, err := s.auth.Me(ctx)
	if ctx.Err() != nil {
		s.log.Debug(ctx, "session validation abandoned")
		return
	}
	s.initialized = true

	if err != nil || user == nil {
		s.log.Info(ctx, "stored credential rejected, starting anonymous", "error", err)
		if err := s.creds.Clear(ctx); err != nil {
			s.log.Error(ctx, "failed to clear credential", "error", err)
		}
		s.update(true, func(sess *Session) { *sess = Session{} })
		return
	}

	s.log.Info(ctx, "session restored", "email", user.Email)
	s.update(false, func(sess *Session) {
		*sess = Session{User: user.Clone(), IsAuthenticated: true}
	})
}

// Revalidate re-fetches the identity behind the stored credential. Failures
// are logged and leave the session unchanged; only the gateway's eviction
// event logs the user out. It never changes IsLoading.
func (s *Store) Revalidate(ctx context.Context) error {
	return s.submit(ctx, s.revalidate)
}

func (s *Store) revalidate(ctx context.Context) {
	token, err := s.creds.Load(ctx)
	if err != nil || token == "" {
		return
	}

	user, err := s.auth.Me(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil || user == nil {
		s.log.Warn(ctx, "session revalidation failed", "error", err)
		return
	}

	// Only an authenticated session is refreshed; revalidation never signs in.
	s.update(false, func(sess *Session) {
		if sess.IsAuthenticated {
			sess.User = user.Clone()
		}
	})
}

// Login authenticates and, on success, stores the credential. When the
// backend omits the user, the session user is {Email: email}. A failed login
// leaves the session untouched.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	return s.authenticate(ctx, email, func(ctx context.Context) (string, *models.User, error) {
		resp, err := s.auth.Login(ctx, email, password)
		return resp.Token, resp.User, err
	}, msgLoginFailed)
}

// Register creates an account and signs in with it.
func (s *Store) Register(ctx context.Context, email, password string) Result {
	return s.authenticate(ctx, email, func(ctx context.Context) (string, *models.User, error) {
		resp, err := s.auth.Register(ctx, email, password)
		return resp.Token, resp.User, err
	}, msgRegFailed)
}

func (s *Store) authenticate(ctx context.Context, email string, call func(context.Context) (string, *models.User, error), fallback string) Result {
	var res Result
	err := s.submit(ctx, func(ctx context.Context) {
		token, user, err := call(ctx)
		if ctx.Err() != nil {
			res = Result{Error: ctx.Err().Error()}
			return
		}
		if err != nil {
			msg := err.Error()
			if msg == "" {
				msg = fallback
			}
			res = Result{Error: msg}
			return
		}
		if token == "" {
			res = Result{Error: msgNoToken}
			return
		}
		if err := s.creds.Save(ctx, token); err != nil {
			s.log.Error(ctx, "failed to store credential", "error", err)
			res = Result{Error: fallback}
			return
		}
		if user == nil {
			user = &models.User{Email: email}
		}

		s.initialized = true
		s.update(true, func(sess *Session) {
			*sess = Session{User: user.Clone(), IsAuthenticated: true}
		})
		s.log.Info(ctx, "signed in", "email", user.Email)
		res = Result{Success: true}
	})
	if err != nil {
		return Result{Error: err.Error()}
	}
	return res
}

// Logout clears the credential and the session and redirects to the login
// surface without waiting for the network. The backend is then told in the
// background, with the old credential attached explicitly; that call is
// bounded by the notify timeout and its failure is only logged.
func (s *Store) Logout(ctx context.Context) error {
	return s.submitDetached(ctx, func(ctx context.Context) {
		ctx = context.WithoutCancel(ctx)

		token, err := s.creds.Load(ctx)
		if err != nil {
			s.log.Warn(ctx, "credential unreadable, backend logout skipped", "error", err)
		}
		if err := s.creds.Clear(ctx); err != nil {
			s.log.Error(ctx, "failed to clear credential", "error", err)
		}
		s.initialized = true
		s.update(true, func(sess *Session) { *sess = Session{} })
		if s.nav != nil {
			s.nav.Redirect(nav.LoginPath)
		}

		if token != "" {
			s.notifyLogout(ctx, token)
		}
	})
}

func (s *Store) notifyLogout(ctx context.Context, token string) {
	ctx, cancel := context.WithTimeout(client.WithBearer(ctx, token), s.notifyTimeout)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		if err := s.auth.Logout(ctx); err != nil {
			s.log.Warn(ctx, "backend logout failed", "error", err)
		}
	}()
}

// Evict clears the credential and moves an authenticated session to
// Anonymous. A Booting session is left booting.
func (s *Store) Evict(ctx context.Context) error {
	return s.submit(ctx, s.evict)
}

func (s *Store) evict(ctx context.Context) {
	if err := s.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		s.log.Error(ctx, "failed to clear credential", "error", err)
	}
	s.update(true, func(sess *Session) {
		sess.User = nil
		sess.IsAuthenticated = false
	})
}

// HandleEviction is the gateway eviction listener. It may be called while a
// store operation is running, so the eviction is queued and applied after
// it; an eviction overtaken by a newer login, register or logout is dropped.
func (s *Store) HandleEviction(ctx context.Context) {
	gen := s.generation()
	ctx = context.WithoutCancel(ctx)

	go func() {
		err := s.submit(ctx, func(ctx context.Context) {
			if s.generation() != gen {
				s.log.Debug(ctx, "stale eviction dropped")
				return
			}
			s.log.Info(ctx, "session evicted")
			s.evict(ctx)
		})
		if err != nil && !errors.Is(err, ErrClosed) {
			s.log.Error(ctx, "eviction failed", "error", err)
		}
	}()
}

// Close stops the store. In-flight operations are cancelled and their
// results discarded; later calls return ErrClosed. Pending backend logout
// calls are awaited, each bounded by the notify timeout. Close must not be
// called from a Subscribe callback.
func (s *Store) Close() error {
	s.once.Do(s.cancel)
	<-s.done
	s.pending.Wait()
	return nil
}
