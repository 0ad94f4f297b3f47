package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/ipdash/internal/client/client"
	"github.com/dmitrijs2005/ipdash/internal/client/models"
)

const (
	UnknownLocation = "Unknown location"
	UnknownDevice   = "Unknown device"

	loginDateLayout = "Jan 2, 2006, 03:04 PM"
)

// LoginHistoryService lists the user's past logins.
type LoginHistoryService interface {
	Logins(ctx context.Context) ([]models.LoginRecord, error)
}

type loginHistoryService struct {
	api client.API
}

func NewLoginHistoryService(api client.API) LoginHistoryService {
	return &loginHistoryService{api: api}
}

func (s *loginHistoryService) Logins(ctx context.Context) ([]models.LoginRecord, error) {
	logins, err := s.api.UserLogins(ctx)
	if err != nil {
		if errors.Is(err, client.ErrMalformedResponse) {
			return nil, &Failure{Message: "Invalid response format from server", Err: err}
		}
		return nil, fail(err, "Failed to fetch login history")
	}
	return logins, nil
}

// FormatLoginDate renders t in local time, e.g. "May 1, 2024, 10:00 AM".
func FormatLoginDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(loginDateLayout)
}

// LocationString joins the known parts of loc, most specific first.
func LocationString(loc *models.LoginLocation) string {
	if loc == nil {
		return UnknownLocation
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, loc.Region, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}

// DeviceInfo guesses a device class from a user agent.
func DeviceInfo(userAgent string) string {
	switch {
	case userAgent == "":
		return UnknownDevice
	case strings.Contains(userAgent, "Mobile"):
		return "Mobile"
	case strings.Contains(userAgent, "Tablet"):
		return "Tablet"
	case strings.Contains(userAgent, "Windows"):
		return "Windows PC"
	case strings.Contains(userAgent, "Mac"):
		return "Mac"
	case strings.Contains(userAgent, "Linux"):
		return "Linux PC"
	}
	return UnknownDevice
}
