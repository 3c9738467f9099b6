package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// LocalStore keeps assets as files in a single directory.
// Writes go to a temp file in the same directory and are published with rename,
// which is atomic on POSIX filesystems.
type LocalStore struct {
	root      string
	urlPrefix string
	maxBytes  int64
	logger    *zap.Logger
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root, urlPrefix string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", root, err)
	}
	return &LocalStore{
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
		maxBytes:  maxBytes,
		logger:    util.GetLogger(),
	}, nil
}

// Root returns the directory assets are written to
func (s *LocalStore) Root() string {
	return s.root
}

// Put writes content for entityID and atomically publishes it
func (s *LocalStore) Put(ctx context.Context, entityID int64, filename string, content io.Reader) (string, error) {
	ctx, span := util.StartSpan(ctx, "LocalStore.Put")
	defer span.End()

	locator := Locator(entityID, filename)
	start := time.Now()
	defer func() {
		util.AssetOperationLatency.WithLabelValues("put").Observe(time.Since(start).Seconds())
	}()

	if err := ctx.Err(); err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}
	tmpName := tmp.Name()
	published := false
	defer func() {
		if !published {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, limit(content, s.maxBytes)); err != nil {
		_ = tmp.Close()
		return "", models.NewAssetWriteError("put", locator, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", models.NewAssetWriteError("put", locator, err)
	}
	if err := tmp.Close(); err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}
	if err := os.Rename(tmpName, s.path(locator)); err != nil {
		return "", models.NewAssetWriteError("put", locator, err)
	}
	published = true

	s.logger.Debug("Asset stored", zap.Int64("entity_id", entityID), zap.String("locator", locator))
	return locator, nil
}

// Remove deletes the file behind locator
func (s *LocalStore) Remove(ctx context.Context, locator string) (bool, error) {
	_, span := util.StartSpan(ctx, "LocalStore.Remove")
	defer span.End()

	if !validLocator(locator) {
		return false, models.NewAssetWriteError("remove", locator, errors.New("invalid locator"))
	}

	err := os.Remove(s.path(locator))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, models.NewAssetWriteError("remove", locator, err)
	}
	return true, nil
}

// Exists reports whether the file behind locator is present
func (s *LocalStore) Exists(ctx context.Context, locator string) (bool, error) {
	if !validLocator(locator) {
		return false, models.NewAssetReadError("stat", locator, errors.New("invalid locator"))
	}

	info, err := os.Stat(s.path(locator))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, models.NewAssetReadError("stat", locator, err)
	}
	return info.Mode().IsRegular(), nil
}

// URL returns the public path the file is served under
func (s *LocalStore) URL(locator string) string {
	return s.urlPrefix + "/" + locator
}

func (s *LocalStore) path(locator string) string {
	return filepath.Join(s.root, locator)
}
