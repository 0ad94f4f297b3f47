// Package models defines the records exchanged with the backend and the
// geolocation provider.
package models

import (
	"encoding/json"
	"time"
)

// User is the identity record of the authenticated account. The login
// endpoint may omit it, in which case the client falls back to {Email}.
type User struct {
	ID        string     `json:"id,omitempty"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// UnmarshalJSON accepts both "id" and the document-store style "_id".
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	return nil
}

// Clone returns a deep copy, so that session snapshots never share memory
// with the store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.CreatedAt != nil {
		t := *u.CreatedAt
		c.CreatedAt = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
