package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/core"
)

// webhdfsStub keeps files in memory and speaks just enough WebHDFS for the
// client: CREATE, OPEN and DELETE.
type webhdfsStub struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *webhdfsStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/webhdfs/v1/")
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch q.Get("op") {
	case "CREATE":
		if _, exists := s.files[name]; exists && q.Get("overwrite") != "true" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"RemoteException":{"exception":"FileAlreadyExistsException","message":"exists"}}`)
			return
		}
		data, _ := io.ReadAll(r.Body)
		s.files[name] = data
		w.WriteHeader(http.StatusCreated)
	case "OPEN":
		data, ok := s.files[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"RemoteException":{"exception":"FileNotFoundException","message":"missing"}}`)
			return
		}
		_, _ = w.Write(data)
	case "DELETE":
		_, ok := s.files[name]
		delete(s.files, name)
		fmt.Fprintf(w, `{"boolean":%t}`, ok)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

type cliEnv struct {
	stub     *webhdfsStub
	endpoint string
	cacheDir string
	dir      string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	stub := &webhdfsStub{files: make(map[string][]byte)}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	return &cliEnv{
		stub:     stub,
		endpoint: srv.URL + "/webhdfs/v1",
		cacheDir: filepath.Join(dir, "cache"),
		dir:      dir,
	}
}

// useKey writes a config file with the given encryption key and selects it.
func (e *cliEnv) useKey(t *testing.T, key string) {
	t.Helper()
	path := filepath.Join(e.dir, "config.yaml")
	content := fmt.Sprintf(`
log:
  level: error
remote:
  data_node: %s
  name_node: %s
  path: /
cache:
  root: %s
encryption:
  key: %q
`, e.endpoint, e.endpoint, e.cacheDir, key)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	configFilePath = path
	t.Cleanup(func() { configFilePath = "" })
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rotateOldKey, rotateFiles, rotateConcurrency = "", nil, 0

	root := &cobra.Command{Use: "hdfscache", SilenceUsage: true, SilenceErrors: true}
	addFileCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCLIPutGetRemove(t *testing.T) {
	env := newCLIEnv(t)
	env.useKey(t, "")

	src := filepath.Join(env.dir, "input.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello from disk"), 0600))

	out, err := runCLI(t, "put", "notes.txt", src)
	require.NoError(t, err)
	assert.Contains(t, out, "stored notes.txt")

	_, err = runCLI(t, "put", "notes.txt", src)
	assert.ErrorIs(t, err, core.ErrRemoteWrite)

	out, err = runCLI(t, "get", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello from disk", out)

	dst := filepath.Join(env.dir, "output.txt")
	_, err = runCLI(t, "get", "notes.txt", dst)
	require.NoError(t, err)
	written, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello from disk", string(written))

	_, err = runCLI(t, "rm", "notes.txt")
	require.NoError(t, err)
	assert.Empty(t, env.stub.files)

	_, err = runCLI(t, "rm", "notes.txt")
	assert.ErrorIs(t, err, core.ErrRemoteDelete)
}

func TestCLIURL(t *testing.T) {
	env := newCLIEnv(t)
	env.useKey(t, "")

	out, err := runCLI(t, "url", "a b")
	require.NoError(t, err)
	assert.Equal(t, env.endpoint+"/a%20b?op=OPEN&namenoderpcaddress=namenode:8020&offset=0\n", out)
}

func TestCLIRotate(t *testing.T) {
	env := newCLIEnv(t)
	env.useKey(t, "")

	src := filepath.Join(env.dir, "input.txt")
	require.NoError(t, os.WriteFile(src, []byte("secret payload"), 0600))
	for _, name := range []string{"a", "b"} {
		_, err := runCLI(t, "put", name, src)
		require.NoError(t, err)
		_, err = runCLI(t, "get", name)
		require.NoError(t, err)
	}

	env.useKey(t, "new-key")

	out, err := runCLI(t, "rotate")
	require.NoError(t, err)
	var outcome core.RotationOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, []string{"a", "b"}, outcome.Rotated)
	assert.Empty(t, outcome.NotRotated)
	assert.NotEqual(t, []byte("secret payload"), env.stub.files["a"])

	out, err = runCLI(t, "get", "a")
	require.NoError(t, err)
	assert.Equal(t, "secret payload", out)

	out, err = runCLI(t, "rotate", "--old-key", "new-key", "--files", "b,missing")
	assert.ErrorIs(t, err, errNotRotated)
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.Equal(t, []string{"b"}, outcome.Rotated)
	assert.Equal(t, []string{"missing"}, outcome.NotRotated)
}

func TestInitializeLogger(t *testing.T) {
	for _, tc := range []config.LogConfig{
		{Level: "debug", Format: "json"},
		{Level: "warn", Format: "console"},
		{Level: "bogus", Format: "json"},
	} {
		logger, err := initializeLogger(tc)
		require.NoError(t, err)
		assert.NotNil(t, logger)
	}

	logger, err := initializeLogger(config.LogConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "disabled", maskSecret(""))
	assert.NotContains(t, maskSecret("hunter2"), "hunter2")
}
