package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ipdash/internal/client/credentials"
	"github.com/dmitrijs2005/ipdash/internal/client/nav"
	"github.com/dmitrijs2005/ipdash/internal/common"
	"github.com/dmitrijs2005/ipdash/internal/logging"
)

// Doer is the subset of *http.Client the gateway needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options allows overriding the gateway's dependencies.
type Options struct {
	HTTPClient Doer
	Logger     logging.Logger
}

// Gateway is the single chokepoint for backend traffic.
type Gateway struct {
	baseURL *url.URL
	http    Doer
	creds   credentials.Store
	nav     nav.Navigator
	log     logging.Logger

	mu        sync.RWMutex
	listeners []func(ctx context.Context)
}

// NewGateway creates a gateway for the backend at baseURL (for example
// "http://localhost:5000/api"). Request paths are joined to it.
func NewGateway(baseURL string, creds credentials.Store, navigator nav.Navigator, opts Options) (*Gateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("base URL is empty")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}

	g := &Gateway{
		baseURL: parsed,
		http:    opts.HTTPClient,
		creds:   creds,
		nav:     navigator,
		log:     opts.Logger,
	}
	if g.http == nil {
		g.http = http.DefaultClient
	}
	if g.log == nil {
		g.log = logging.Discard()
	}
	return g, nil
}

// OnEviction registers fn to be called after the credential was evicted
// because of a terminal authentication failure.
func (g *Gateway) OnEviction(fn func(ctx context.Context)) {
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

type bearerKey struct{}

// WithBearer makes requests sent with ctx carry token instead of the stored
// credential. A 401 answering such a request says nothing about the stored
// credential and never evicts the session.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(bearerKey{}).(string)
	return token, ok
}

// IsAuthScoped reports whether a 401 from path proves the session is gone.
func IsAuthScoped(path string) bool {
	return strings.Contains(path, common.AuthNamespaceSegment)
}

// Do sends a JSON request and, for a 2xx response, decodes the body into out
// when out is non-nil. body may be nil.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	op := method + " " + path

	req, err := g.newRequest(ctx, method, path, body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	g.authorize(ctx, req)

	requestID := req.Header.Get(common.RequestIDHeaderName)
	g.log.Debug(ctx, "backend request", "op", op, "request_id", requestID)

	resp, err := g.http.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	g.log.Debug(ctx, "backend response", "op", op, "request_id", requestID, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.intercept(ctx, op, path, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &Error{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Err: errors.New("empty body")}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: op, Kind: KindMalformed, Status: resp.StatusCode, Err: err}
	}
	return nil
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	full := g.baseURL.JoinPath(rel.Path)
	full.RawQuery = rel.RawQuery

	var reader io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return nil, err
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, full.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	return req, nil
}

// authorize attaches the stored credential. It never fails: without a
// readable credential the request goes out unauthenticated.
func (g *Gateway) authorize(ctx context.Context, req *http.Request) {
	if token, ok := bearerFrom(ctx); ok {
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
		}
		return
	}
	if g.creds == nil {
		return
	}
	token, err := g.creds.Load(ctx)
	if err != nil {
		g.log.Warn(ctx, "credential unreadable, sending request unauthenticated", "error", err)
		return
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
}

// intercept turns a non-2xx response into an *Error. A 401 from an
// auth-scoped path evicts the session unless the user is already on the
// login surface or the request carried an explicit bearer.
func (g *Gateway) intercept(ctx context.Context, op, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	e := &Error{
		Op:      op,
		Kind:    KindStatus,
		Status:  resp.StatusCode,
		Message: errorMessage(data),
	}

	if resp.StatusCode == http.StatusUnauthorized && IsAuthScoped(path) {
		e.Kind = KindAuthRejected
		_, explicit := bearerFrom(ctx)
		if !explicit && (g.nav == nil || !nav.IsLoginSurface(g.nav.Location())) {
			g.evict(ctx, op)
		}
	}
	return e
}

func (g *Gateway) evict(ctx context.Context, op string) {
	ctx = context.WithoutCancel(ctx)
	g.log.Info(ctx, "credential rejected, evicting session", "op", op)

	if g.creds != nil {
		if err := g.creds.Clear(ctx); err != nil {
			g.log.Error(ctx, "failed to clear credential", "error", err)
		}
	}

	g.mu.RLock()
	listeners := append([]func(context.Context){}, g.listeners...)
	g.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx)
	}

	if g.nav != nil {
		g.nav.Redirect(nav.LoginPath)
	}
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from a body.
func errorMessage(data []byte) string {
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if s, ok := payload.Error.(string); ok && s != "" {
		return s
	}
	return payload.Message
}
