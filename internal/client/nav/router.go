// Package nav tracks which surface of the client the user is on. It plays
// the role of the browser location: the gateway reads it to avoid
// redirecting to the login surface twice, and the session store and the CLI
// redirect through it.
package nav

import (
	"strings"
	"sync"
)

const (
	LoginPath     = "/login"
	RegisterPath  = "/register"
	DashboardPath = "/dashboard"
)

// Navigator is the navigation contract consumed by the gateway and the
// session store.
type Navigator interface {
	Location() string
	Redirect(path string)
}

// Router is a concurrency-safe Navigator that notifies listeners about
// location changes.
type Router struct {
	mu        sync.RWMutex
	location  string
	listeners []func(from, to string)
}

func NewRouter(initial string) *Router {
	return &Router{location: initial}
}

func (r *Router) Location() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.location
}

// Redirect moves to path. Listeners run outside the lock and only when the
// location actually changes.
func (r *Router) Redirect(path string) {
	r.mu.Lock()
	from := r.location
	if from == path {
		r.mu.Unlock()
		return
	}
	r.location = path
	listeners := append([]func(from, to string){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(from, path)
	}
}

// OnChange registers fn to be called after every location change.
func (r *Router) OnChange(fn func(from, to string)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// IsLoginSurface reports whether location is the login page or below it.
func IsLoginSurface(location string) bool {
	return strings.Contains(location, LoginPath)
}
