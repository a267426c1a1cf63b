// Package backends defines the remote store contract used by hdfscache.
// Implementations live in subpackages: webhdfs talks to a namenode/datanode
// HTTP store, localfs holds the on-disk cache.
package backends

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when the remote store has no such file.
	ErrNotFound = errors.New("file not found")
	// ErrAlreadyExists is returned by a no-overwrite create of an existing file.
	ErrAlreadyExists = errors.New("file already exists")
)

// Remote defines the operations hdfscache needs from the remote store.
// Names are logical filenames; implementations handle any encoding.
type Remote interface {
	// Create stores the content of reader under name. With overwrite false
	// the store must reject an existing file with ErrAlreadyExists.
	Create(ctx context.Context, name string, reader io.Reader, size int64, overwrite bool) error

	// Open streams the content stored under name.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes name recursively.
	Delete(ctx context.Context, name string) error

	// LocationURL returns a URL from which name can be fetched directly.
	LocationURL(name string) string

	// Close releases any resources held by the client.
	Close() error
}
