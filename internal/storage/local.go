// AngelaMos | 2026
// local.go

package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/angelamos/bookstore-api/internal/config"
)

var ErrBadStorageID = errors.New("invalid storage id")

// LocalStore writes assets to a directory served by a static file route.
// The storage ID is the content-addressed filename, so re-uploading the same
// bytes is idempotent.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(cfg config.StorageConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	return &LocalStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

func (s *LocalStore) Save(
	ctx context.Context,
	name string,
	r io.Reader,
) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return "", "", fmt.Errorf("stage upload: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), r); err != nil {
		tmp.Close() //nolint:errcheck
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}

	storageID := hex.EncodeToString(hasher.Sum(nil)) + filepath.Ext(name)
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, storageID)); err != nil {
		return "", "", fmt.Errorf("store upload: %w", err)
	}

	return s.baseURL + "/" + storageID, storageID, nil
}

func (s *LocalStore) Delete(ctx context.Context, storageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// The ID must stay inside the storage dir.
	if storageID == "" || filepath.Base(storageID) != storageID {
		return ErrBadStorageID
	}

	err := os.Remove(filepath.Join(s.dir, storageID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}
