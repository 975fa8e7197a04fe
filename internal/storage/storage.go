// AngelaMos | 2026
// storage.go

package storage

import (
	"context"
	"io"
)

// Store is the binary asset port. Implementations return a public URL for
// serving the asset and an opaque ID for deleting it later.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (url, storageID string, err error)
	Delete(ctx context.Context, storageID string) error
}
