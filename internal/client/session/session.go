// Package session owns the client's authentication state.
//
// A Store holds the current Session (user, authenticated flag, loading flag)
// and exposes the only operations allowed to change it: Initialize,
// Revalidate, Login, Register, Logout and eviction. Mutations run one at a
// time on a goroutine owned by the store; readers get copies through
// Snapshot and Subscribe.
package session

import (
	"context"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
)

// State is the observable phase of a Session.
type State int

const (
	Booting State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// Session is a point-in-time copy of the authentication state.
// IsAuthenticated implies User != nil.
type Session struct {
	User            *models.User
	IsAuthenticated bool
	IsLoading       bool
}

func (s Session) State() State {
	switch {
	case s.IsLoading:
		return Booting
	case s.IsAuthenticated:
		return Authenticated
	default:
		return Anonymous
	}
}

func (s Session) clone() Session {
	s.User = s.User.Clone()
	return s
}

func (s Session) equal(o Session) bool {
	if s.IsAuthenticated != o.IsAuthenticated || s.IsLoading != o.IsLoading {
		return false
	}
	if s.User == nil || o.User == nil {
		return s.User == o.User
	}
	return s.User.ID == o.User.ID && s.User.Email == o.User.Email && s.User.Name == o.User.Name
}

// Result is the outcome of Login and Register. Error is a message fit for
// the user and is empty on success.
type Result struct {
	Success bool
	Error   string
}

// Authenticator is the backend identity contract the store delegates to.
// services.AuthService implements it. Logout is called after the credential
// was cleared, with the old one attached via client.WithBearer.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (client.AuthResponse, error)
	Register(ctx context.Context, email, password string) (client.AuthResponse, error)
	Me(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
}
