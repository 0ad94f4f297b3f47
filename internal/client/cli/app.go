package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/config"
	"github.com/dmitrijs2005/ipdash/internal/client/credentials"
	"github.com/dmitrijs2005/ipdash/internal/client/localdb"
	"github.com/dmitrijs2005/ipdash/internal/client/nav"
	"github.com/dmitrijs2005/ipdash/internal/client/services"
	"github.com/dmitrijs2005/ipdash/internal/client/session"
	"github.com/dmitrijs2005/ipdash/internal/logging"
)

type App struct {
	config *config.Config
	log    logging.Logger

	db     *sql.DB
	creds  credentials.Store
	router *nav.Router
	store  *session.Store

	authService   services.AuthService
	geoService    services.GeolocationService
	loginsService services.LoginHistoryService

	// lastState is only touched by onSessionChange.
	lastState  session.State
	loggingOut atomic.Bool

	reader *bufio.Reader
	out    *lockedWriter
}

// lockedWriter serializes output from the REPL and from session callbacks.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// NewApp wires the local database, the credential store, the gateway, the
// services and the session store. With an empty cfg.DBPath the credential
// lives in memory only.
func NewApp(ctx context.Context, c *config.Config, in io.Reader, out io.Writer, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Discard()
	}

	var (
		db    *sql.DB
		creds credentials.Store
	)
	if c.DBPath != "" {
		var err error
		db, err = localdb.Open(ctx, c.DBPath)
		if err != nil {
			log.Error(ctx, "error initializing database", "path", c.DBPath, "error", err)
			return nil, err
		}
		creds = credentials.NewLocal(db)
	} else {
		creds = credentials.NewMemory("")
	}

	router := nav.NewRouter(nav.LoginPath)
	httpClient := &http.Client{}

	gw, err := client.NewGateway(c.BaseURL, creds, router, client.Options{
		HTTPClient: httpClient,
		Logger:     log.With("component", "gateway"),
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}
	api := client.NewAPIClient(gw)
	ipinfo := services.NewIPInfoClient(c.IPInfoURL, c.IPInfoToken, httpClient, log.With("component", "ipinfo"))

	as := services.NewAuthService(api, ipinfo, log)
	store := session.New(as, creds, router, log.With("component", "session"))
	gw.OnEviction(store.HandleEviction)

	a := &App{
		config:        c,
		log:           log,
		db:            db,
		creds:         creds,
		router:        router,
		store:         store,
		authService:   as,
		geoService:    services.NewGeolocationService(api, ipinfo, log),
		loginsService: services.NewLoginHistoryService(api),
		reader:        bufio.NewReader(in),
		out:           &lockedWriter{w: out},
	}

	router.OnChange(func(from, to string) {
		log.Debug(context.Background(), "navigation", "from", from, "to", to)
	})
	store.Subscribe(a.onSessionChange)
	return a, nil
}

// Run resolves the session, starts background revalidation and serves the
// REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.println("Welcome to ipdash CLI (type 'help' for commands)")

	snap, err := a.store.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	if snap.IsAuthenticated {
		a.router.Redirect(nav.DashboardPath)
		a.println("Signed in as", snap.User.Email)
	} else {
		a.router.Redirect(nav.LoginPath)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.store.RunRevalidation(ctx, a.config.RevalidateInterval)
	}()

	runREPL(ctx, a, a.reader, a.out)

	cancel()
	wg.Wait()
	return nil
}

// Close waits for background history saves and releases the session store
// and the database.
func (a *App) Close() {
	a.geoService.Wait()
	_ = a.store.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error(context.Background(), "failed to close database", "error", err)
		}
	}
}

func (a *App) state() session.State {
	return a.store.State()
}

// status is shown in the prompt: "(alice@example.com) /dashboard".
func (a *App) status() string {
	snap := a.store.Snapshot()
	loc := a.router.Location()
	if snap.IsAuthenticated && snap.User != nil {
		return fmt.Sprintf("(%s) %s", snap.User.Email, loc)
	}
	return loc
}

// onSessionChange runs on the session store goroutine. It reports sessions
// that end without an explicit logout, such as an expired credential found
// by revalidation.
func (a *App) onSessionChange(s session.Session) {
	prev := a.lastState
	a.lastState = s.State()

	if prev == session.Authenticated && a.lastState == session.Anonymous && !a.loggingOut.Load() {
		a.println("Your session has expired. Please log in again.")
	}
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
