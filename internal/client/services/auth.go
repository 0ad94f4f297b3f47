// Package services contains application services for the ipdash client.
// This file defines the authentication service: login with public IP
// reporting, registration, identity fetch and logout.
package services

import (
	"context"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
	"github.com/dmitrijs2005/ipdash/internal/common"
	"github.com/dmitrijs2005/ipdash/internal/logging"
)

// AuthService defines authentication operations.
//
// Contract:
//   - Login: authenticate; the response user may be nil.
//   - Register: create an account and authenticate.
//   - Me: fetch the identity behind the stored credential.
//   - Logout: notify the backend; callers treat failures as non-fatal.
//
// Login and Register failures are *Failure values carrying a message fit
// for the user.
type AuthService interface {
	Login(ctx context.Context, email, password string) (client.AuthResponse, error)
	Register(ctx context.Context, email, password string) (client.AuthResponse, error)
	Me(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
}

// PublicIPResolver reports the caller's public address, or common.UnknownIP.
type PublicIPResolver interface {
	PublicIP(ctx context.Context) string
}

type authService struct {
	api client.API
	ip  PublicIPResolver
	log logging.Logger
}

// NewAuthService constructs an AuthService. ip may be nil, in which case
// logins report common.UnknownIP.
func NewAuthService(api client.API, ip PublicIPResolver, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Discard()
	}
	return &authService{api: api, ip: ip, log: log}
}

// Login reports the public IP along with the credentials. IP detection
// never blocks the login.
func (a *authService) Login(ctx context.Context, email, password string) (client.AuthResponse, error) {
	ipAddress := common.UnknownIP
	if a.ip != nil {
		ipAddress = a.ip.PublicIP(ctx)
	}
	a.log.Debug(ctx, "logging in", "email", email, "ip", ipAddress)

	resp, err := a.api.Login(ctx, client.LoginRequest{Email: email, Password: password, IPAddress: ipAddress})
	if err != nil {
		return client.AuthResponse{}, fail(err, "Login failed")
	}
	return resp, nil
}

func (a *authService) Register(ctx context.Context, email, password string) (client.AuthResponse, error) {
	resp, err := a.api.Register(ctx, client.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return client.AuthResponse{}, fail(err, "Registration failed")
	}
	return resp, nil
}

func (a *authService) Me(ctx context.Context) (*models.User, error) {
	return a.api.Me(ctx)
}

func (a *authService) Logout(ctx context.Context) error {
	return a.api.Logout(ctx)
}
