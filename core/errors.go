package core

import (
	"errors"

	"github.com/ebogdum/hdfscache/backends/localfs"
	"github.com/ebogdum/hdfscache/crypt"
	"github.com/ebogdum/hdfscache/internal/pathutil"
)

// Error kinds returned by FileService. Match them with errors.Is; the
// underlying transport or disk error stays in the chain.
var (
	ErrRemoteWrite  = errors.New("remote write failed")
	ErrRemoteRead   = errors.New("remote read failed")
	ErrRemoteDelete = errors.New("remote delete failed")

	// ErrLockUnavailable reports that the per-file lock could not be taken,
	// either because the caller gave up or the lock backend failed. The
	// remote store was not contacted.
	ErrLockUnavailable = errors.New("file lock unavailable")

	// ErrLocalIO reports a failure reading or writing the local cache.
	ErrLocalIO = localfs.ErrLocalIO
	// ErrPermission reports that the cache directory cannot be created.
	// Nothing else can work without it, so callers treat it as fatal.
	ErrPermission = localfs.ErrPermission

	ErrDecrypt     = crypt.ErrDecrypt
	ErrInvalidName = pathutil.ErrInvalidName
)

// IsFatal reports whether err means the service cannot operate at all.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPermission)
}
