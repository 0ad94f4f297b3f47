// Package credentials persists the bearer credential of the current session.
//
// Exactly one credential is kept, under the fixed key common.TokenStorageKey;
// saving a new one overwrites the previous value.
package credentials

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/ipdash/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/ipdash/internal/common"
	"github.com/dmitrijs2005/ipdash/internal/dbx"
)

const savedAtKey = "token_saved_at"

// Store is the credential persistence contract used by the gateway and the
// session store. Load returns "" when no credential is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Local keeps the credential in the local SQLite database.
type Local struct {
	db *sql.DB
}

func NewLocal(db *sql.DB) *Local {
	return &Local{db: db}
}

func (l *Local) Load(ctx context.Context) (string, error) {
	v, err := metadata.NewSQLiteRepository(l.db).Get(ctx, common.TokenStorageKey)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Save stores token together with the time it was saved.
func (l *Local) Save(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return common.ErrEmptyCredential
	}
	now := time.Now().UTC().Format(time.RFC3339)

	return dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, common.TokenStorageKey, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, savedAtKey, []byte(now))
	})
}

func (l *Local) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Delete(ctx, common.TokenStorageKey); err != nil {
			return err
		}
		return repo.Delete(ctx, savedAtKey)
	})
}

// SavedAt reports when the current credential was stored. ok is false when
// there is no credential or the timestamp is unreadable.
func (l *Local) SavedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	v, err := metadata.NewSQLiteRepository(l.db).Get(ctx, savedAtKey)
	if err != nil || v == nil {
		return time.Time{}, false, err
	}
	t, perr := time.Parse(time.RFC3339, string(v))
	if perr != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

// Memory is a process-local Store, used when no database is configured and in tests.
type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Load(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *Memory) Save(_ context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return common.ErrEmptyCredential
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
