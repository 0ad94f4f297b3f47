package models

import "time"

// LoginLocation is where a login came from, as resolved by the backend.
type LoginLocation struct {
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// LoginRecord is one entry of the user's login history.
type LoginRecord struct {
	ID        string         `json:"_id"`
	IPAddress string         `json:"ipAddress"`
	UserAgent string         `json:"userAgent"`
	Location  *LoginLocation `json:"location,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	CreatedAt time.Time      `json:"createdAt"`
}

// When returns the login time, preferring the explicit timestamp.
func (l LoginRecord) When() time.Time {
	if !l.Timestamp.IsZero() {
		return l.Timestamp
	}
	return l.CreatedAt
}
