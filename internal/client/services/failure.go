package services

import (
	"github.com/dmitrijs2005/ipdash/internal/client/client"
)

// Failure is an error whose text is meant for the user. The underlying
// cause stays reachable through errors.Is / errors.As.
type Failure struct {
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// fail prefers the backend-provided message over fallback.
func fail(err error, fallback string) error {
	return &Failure{Message: client.Message(err, fallback), Err: err}
}
