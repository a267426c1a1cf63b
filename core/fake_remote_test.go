package core

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/ebogdum/hdfscache/backends"
)

// fakeRemote is an in-memory backends.Remote with call counters and
// per-name failure injection.
type fakeRemote struct {
	mu         sync.Mutex
	files      map[string][]byte
	opens      map[string]int
	creates    int
	failOpen   map[string]bool
	failCreate map[string]bool
	openDelay  time.Duration
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		files:      make(map[string][]byte),
		opens:      make(map[string]int),
		failOpen:   make(map[string]bool),
		failCreate: make(map[string]bool),
	}
}

var errInjected = errors.New("injected failure")

func (r *fakeRemote) Create(ctx context.Context, name string, reader io.Reader, size int64, overwrite bool) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.failCreate[name] {
		return errInjected
	}
	if _, exists := r.files[name]; exists && !overwrite {
		return backends.ErrAlreadyExists
	}
	r.files[name] = data
	return nil
}

func (r *fakeRemote) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r.mu.Lock()
	r.opens[name]++
	fail := r.failOpen[name]
	data, exists := r.files[name]
	delay := r.openDelay
	r.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, errInjected
	}
	if !exists {
		return nil, backends.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(data))), nil
}

func (r *fakeRemote) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.files[name]; !exists {
		return backends.ErrNotFound
	}
	delete(r.files, name)
	return nil
}

func (r *fakeRemote) LocationURL(name string) string {
	return "http://datanode/webhdfs/v1/app/" + url.PathEscape(name) + "?op=OPEN"
}

func (r *fakeRemote) Close() error { return nil }

func (r *fakeRemote) openCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens[name]
}

func (r *fakeRemote) stored(name string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[name]
}

func (r *fakeRemote) put(name string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[name] = data
}
