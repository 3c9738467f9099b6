// Package assets persists the single binary image a product may own.
//
// Objects are keyed by entity id. A locator is the object key, for example
// "product_12.png"; it is opaque to callers and is what the product row stores.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Store is the contract of an asset backend
type Store interface {
	// Put writes content for entityID and returns its locator. The object is
	// visible only once fully written; a failed Put leaves any prior object intact.
	Put(ctx context.Context, entityID int64, filename string, content io.Reader) (string, error)
	// Remove deletes the object. A missing object reports false without error.
	Remove(ctx context.Context, locator string) (bool, error)
	// Exists reports whether the object is present
	Exists(ctx context.Context, locator string) (bool, error)
	// URL maps a locator to the address clients fetch it from
	URL(locator string) string
}

const (
	defaultExtension = "bin"
	maxExtensionLen  = 10
)

// Locator builds the object key for an entity and uploaded filename
func Locator(entityID int64, filename string) string {
	return fmt.Sprintf("product_%d.%s", entityID, extension(filename))
}

func extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	ext = b.String()
	if ext == "" {
		return defaultExtension
	}
	if len(ext) > maxExtensionLen {
		ext = ext[:maxExtensionLen]
	}
	return ext
}

// validLocator rejects keys that could escape the asset namespace
func validLocator(locator string) bool {
	if locator == "" || locator == "." || locator == ".." {
		return false
	}
	return !strings.ContainsAny(locator, `/\`) && !strings.Contains(locator, "..")
}

// limitReader fails once more than max bytes are read; max <= 0 disables the limit
type limitReader struct {
	r   io.Reader
	n   int64
	max int64
}

// ErrTooLarge is returned when an upload exceeds the configured size
var ErrTooLarge = errors.New("upload exceeds size limit")

func limit(r io.Reader, max int64) io.Reader {
	if max <= 0 {
		return r
	}
	return &limitReader{r: r, max: max}
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.max {
		return n, ErrTooLarge
	}
	return n, err
}
