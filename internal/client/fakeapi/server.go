// Package fakeapi is an in-process implementation of the backend REST
// contract, served by httptest and routed with gorilla/mux. Tests of the
// gateway, the services, the session store and the CLI run against it.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/ipdash/internal/client/models"
)

const signingKey = "fakeapi-signing-key"

type account struct {
	user     models.User
	password string
	history  []models.HistoryItem
	logins   []models.LoginRecord
}

type forced struct {
	status int
	body   any
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	accounts map[string]*account // by email
	tokens   map[string]string   // token -> email
	forced   map[string]forced   // "METHOD /path" -> response
	hits     map[string]int
	authz    map[string]string // last Authorization header per route

	// OmitUserOnLogin makes /auth/login answer {token} without a user.
	OmitUserOnLogin bool
	// BareMe makes /auth/me answer the raw user record instead of {user}.
	BareMe bool
}

// New starts a fake backend. Close it with Close.
func New() *Server {
	s := &Server{
		accounts: map[string]*account{},
		tokens:   map[string]string{},
		forced:   map[string]forced{},
		hits:     map[string]int{},
		authz:    map[string]string{},
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.record)

	api.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.authed(s.me)).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", s.authed(s.logout)).Methods(http.MethodPost)
	api.HandleFunc("/geo/save-search", s.authed(s.saveSearch)).Methods(http.MethodPost)
	api.HandleFunc("/history", s.authed(s.history)).Methods(http.MethodGet)
	api.HandleFunc("/history", s.authed(s.deleteHistory)).Methods(http.MethodDelete)
	api.HandleFunc("/user-logins", s.authed(s.userLogins)).Methods(http.MethodGet)

	s.srv = httptest.NewServer(r)
	return s
}

// URL is the API base URL, ending in /api.
func (s *Server) URL() string { return s.srv.URL + "/api" }

func (s *Server) Close() { s.srv.Close() }

// AddUser registers an account directly and returns a valid token for it.
func (s *Server) AddUser(email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.addAccountLocked(email, password)
	return s.issueLocked(acc.user)
}

// Force makes route ("GET /auth/me") answer status with body until Unforce.
func (s *Server) Force(route string, status int, body any) {
	s.mu.Lock()
	s.forced[route] = forced{status: status, body: body}
	s.mu.Unlock()
}

func (s *Server) Unforce(route string) {
	s.mu.Lock()
	delete(s.forced, route)
	s.mu.Unlock()
}

// Revoke invalidates a token, as an expired or revoked session would be.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// Hits returns how many times route was requested.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

// LastAuthorization returns the Authorization header of the last request to route.
func (s *Server) LastAuthorization(route string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authz[route]
}

// History returns the saved searches of email.
func (s *Server) History(email string) []models.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[email]; ok {
		return append([]models.HistoryItem(nil), acc.history...)
	}
	return nil
}

// Logins returns the recorded logins of email.
func (s *Server) Logins(email string) []models.LoginRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[email]; ok {
		return append([]models.LoginRecord(nil), acc.logins...)
	}
	return nil
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := r.Method + " " + strings.TrimPrefix(r.URL.Path, "/api")

		s.mu.Lock()
		s.hits[route]++
		s.authz[route] = r.Header.Get("Authorization")
		f, isForced := s.forced[route]
		s.mu.Unlock()

		if isForced {
			writeJSON(w, f.status, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h func(w http.ResponseWriter, r *http.Request, acc *account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "No token, authorization denied"})
			return
		}
		s.mu.Lock()
		email, valid := s.tokens[token]
		acc := s.accounts[email]
		s.mu.Unlock()
		if !valid || acc == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token is not valid"})
			return
		}
		h(w, r, acc)
	}
}

type credentialsBody struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"ipAddress"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password are required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[body.Email]; exists {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "User already exists"})
		return
	}
	acc := s.addAccountLocked(body.Email, body.Password)
	writeJSON(w, http.StatusCreated, map[string]any{"user": acc.user, "token": s.issueLocked(acc.user)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[body.Email]
	if !ok || acc.password != body.Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid credentials"})
		return
	}

	now := time.Now().UTC()
	acc.user.LastLogin = &now
	acc.logins = append(acc.logins, models.LoginRecord{
		ID:        uuid.NewString(),
		IPAddress: body.IPAddress,
		UserAgent: r.UserAgent(),
		Timestamp: now,
		CreatedAt: now,
	})

	resp := map[string]any{"token": s.issueLocked(acc.user)}
	if !s.OmitUserOnLogin {
		resp["user"] = acc.user
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request, acc *account) {
	s.mu.Lock()
	u, bare := acc.user, s.BareMe
	s.mu.Unlock()

	if bare {
		writeJSON(w, http.StatusOK, map[string]any{"_id": u.ID, "email": u.Email, "name": u.Name})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request, _ *account) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.Revoke(token)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) saveSearch(w http.ResponseWriter, r *http.Request, acc *account) {
	var body struct {
		IP      string             `json:"ip"`
		GeoData models.GeoLocation `json:"geoData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IP == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "IP is required"})
		return
	}

	item := models.HistoryItem{ID: uuid.NewString(), IP: body.IP, GeoData: body.GeoData, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	acc.history = append([]models.HistoryItem{item}, acc.history...)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"search": item})
}

func (s *Server) history(w http.ResponseWriter, _ *http.Request, acc *account) {
	s.mu.Lock()
	items := append([]models.HistoryItem{}, acc.history...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"history": items})
}

func (s *Server) deleteHistory(w http.ResponseWriter, r *http.Request, acc *account) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No items selected"})
		return
	}
	drop := make(map[string]struct{}, len(body.IDs))
	for _, id := range body.IDs {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	kept := acc.history[:0]
	deleted := 0
	for _, item := range acc.history {
		if _, ok := drop[item.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, item)
	}
	acc.history = kept
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": deleted})
}

func (s *Server) userLogins(w http.ResponseWriter, _ *http.Request, acc *account) {
	s.mu.Lock()
	logins := append([]models.LoginRecord{}, acc.logins...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"logins": logins})
}

func (s *Server) addAccountLocked(email, password string) *account {
	now := time.Now().UTC()
	acc := &account{
		user:     models.User{ID: uuid.NewString(), Email: email, CreatedAt: &now},
		password: password,
	}
	s.accounts[email] = acc
	return acc
}

func (s *Server) issueLocked(u models.User) string {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
		"jti":   uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		panic(err)
	}
	s.tokens[token] = u.Email
	return token
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
