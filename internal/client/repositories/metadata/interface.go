// Package metadata is the key/value store of the local client database.
// It backs what a browser client would keep in local storage.
package metadata

import (
	"context"
)

// Repository reads and writes opaque values by key.
//
// Get returns (nil, nil) for a missing key; Delete of a missing key is not
// an error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
