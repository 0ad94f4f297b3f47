package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/ipdash/internal/client/models"
)

// API is the backend REST contract consumed by the client.
type API interface {
	Login(ctx context.Context, req LoginRequest) (AuthResponse, error)
	Register(ctx context.Context, req RegisterRequest) (AuthResponse, error)
	Me(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
	SaveSearch(ctx context.Context, ip string, geo models.GeoLocation) error
	History(ctx context.Context) ([]models.HistoryItem, error)
	DeleteHistory(ctx context.Context, ids []string) error
	UserLogins(ctx context.Context) ([]models.LoginRecord, error)
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"ipAddress,omitempty"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register. User may be nil on login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

// APIClient implements API on top of a Gateway.
type APIClient struct {
	gw *Gateway
}

func NewAPIClient(gw *Gateway) *APIClient {
	return &APIClient{gw: gw}
}

func (c *APIClient) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/auth/login", req, &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

func (c *APIClient) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.gw.Do(ctx, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Me fetches the identity behind the stored credential. The backend answers
// either {"user": {...}} or the bare user record; anything else is
// ErrMalformedResponse.
func (c *APIClient) Me(ctx context.Context) (*models.User, error) {
	const op = "GET /auth/me"

	var raw json.RawMessage
	if err := c.gw.Do(ctx, http.MethodGet, "/auth/me", nil, &raw); err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope == nil {
		return nil, &Error{Op: op, Kind: KindMalformed, Status: http.StatusOK, Err: errors.New("response is not an object")}
	}

	record, ok := envelope["user"]
	if !ok || string(record) == "null" {
		if _, hasID := envelope["_id"]; !hasID {
			return nil, &Error{Op: op, Kind: KindMalformed, Status: http.StatusOK, Err: errors.New("no user in response")}
		}
		record = raw
	}

	var u models.User
	if err := json.Unmarshal(record, &u); err != nil {
		return nil, &Error{Op: op, Kind: KindMalformed, Status: http.StatusOK, Err: err}
	}
	return &u, nil
}

func (c *APIClient) Logout(ctx context.Context) error {
	return c.gw.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *APIClient) SaveSearch(ctx context.Context, ip string, geo models.GeoLocation) error {
	body := struct {
		IP      string             `json:"ip"`
		GeoData models.GeoLocation `json:"geoData"`
	}{IP: ip, GeoData: geo}
	return c.gw.Do(ctx, http.MethodPost, "/geo/save-search", body, nil)
}

func (c *APIClient) History(ctx context.Context) ([]models.HistoryItem, error) {
	var resp struct {
		History []models.HistoryItem `json:"history"`
	}
	if err := c.gw.Do(ctx, http.MethodGet, "/history", nil, &resp); err != nil {
		return nil, err
	}
	if resp.History == nil {
		return []models.HistoryItem{}, nil
	}
	return resp.History, nil
}

func (c *APIClient) DeleteHistory(ctx context.Context, ids []string) error {
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}
	return c.gw.Do(ctx, http.MethodDelete, "/history", body, nil)
}

// UserLogins returns the login history; a payload without a "logins" array
// is ErrMalformedResponse.
func (c *APIClient) UserLogins(ctx context.Context) ([]models.LoginRecord, error) {
	var resp struct {
		Logins *[]models.LoginRecord `json:"logins"`
	}
	if err := c.gw.Do(ctx, http.MethodGet, "/user-logins", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Logins == nil {
		return nil, &Error{Op: "GET /user-logins", Kind: KindMalformed, Status: http.StatusOK, Err: errors.New("no logins array")}
	}
	return *resp.Logins, nil
}
