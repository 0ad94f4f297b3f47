package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
)

// fakeAPI implements client.API for unit tests.
type fakeAPI struct {
	mu sync.Mutex

	LoginResp    client.AuthResponse
	LoginErr     error
	RegisterResp client.AuthResponse
	RegisterErr  error
	MeUser       *models.User
	MeErr        error
	LogoutErr    error
	SaveErr      error
	HistoryRet   []models.HistoryItem
	HistoryErr   error
	DeleteErr    error
	LoginsRet    []models.LoginRecord
	LoginsErr    error

	LastLogin    client.LoginRequest
	LastRegister client.RegisterRequest
	Saved        []string
	Deleted      []string
}

func (f *fakeAPI) Login(_ context.Context, req client.LoginRequest) (client.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastLogin = req
	return f.LoginResp, f.LoginErr
}

func (f *fakeAPI) Register(_ context.Context, req client.RegisterRequest) (client.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRegister = req
	return f.RegisterResp, f.RegisterErr
}

func (f *fakeAPI) Me(context.Context) (*models.User, error) { return f.MeUser, f.MeErr }

func (f *fakeAPI) Logout(context.Context) error { return f.LogoutErr }

func (f *fakeAPI) SaveSearch(_ context.Context, ip string, _ models.GeoLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Saved = append(f.Saved, ip)
	return f.SaveErr
}

func (f *fakeAPI) History(context.Context) ([]models.HistoryItem, error) {
	return f.HistoryRet, f.HistoryErr
}

func (f *fakeAPI) DeleteHistory(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deleted = append(f.Deleted, ids...)
	return f.DeleteErr
}

func (f *fakeAPI) UserLogins(context.Context) ([]models.LoginRecord, error) {
	return f.LoginsRet, f.LoginsErr
}

func (f *fakeAPI) saved() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Saved...)
}

type staticIP string

func (s staticIP) PublicIP(context.Context) string { return string(s) }

type fakeLocator struct {
	geo models.GeoLocation
	err error
}

func (f fakeLocator) MyLocation(context.Context) (models.GeoLocation, error) { return f.geo, f.err }

func (f fakeLocator) Lookup(_ context.Context, ip string) (models.GeoLocation, error) {
	if f.err != nil {
		return models.GeoLocation{}, f.err
	}
	g := f.geo
	g.IP, g.Query = ip, ip
	return g, nil
}
