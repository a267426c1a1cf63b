package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ebogdum/hdfscache/core/log"
	"github.com/ebogdum/hdfscache/crypt"
	"github.com/ebogdum/hdfscache/metrics"
)

// Stage names the step of a file's rotation that failed.
type Stage string

const (
	StageRead  Stage = "read"
	StageWrite Stage = "write"
)

// RotateOptions configures RotateEncryptionKey.
type RotateOptions struct {
	// OldKey is the passphrase the files are currently stored under.
	// Empty means the files are stored unencrypted.
	OldKey []byte
	// OldCipher, when set, is used instead of deriving one from OldKey.
	OldCipher crypt.Cipher
	// FileNames restricts rotation to these names. Nil means every file
	// in the local cache directory.
	FileNames []string
	// Concurrency bounds the number of files in flight. Zero uses the
	// service default.
	Concurrency int
}

// RotationFailure records why a file was not rotated.
type RotationFailure struct {
	Name    string `json:"name"`
	Stage   Stage  `json:"stage"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// RotationOutcome partitions the input names. Both lists keep input order
// and every input name appears in exactly one of them.
type RotationOutcome struct {
	Rotated    []string          `json:"rotated"`
	NotRotated []string          `json:"notRotated"`
	Failures   []RotationFailure `json:"failures,omitempty"`
}

type rotationResult struct {
	stage Stage
	err   error
}

// RotateEncryptionKey re-stores files under the service's key: each file is
// read and decrypted with the old key, then replaced with content encrypted
// under the current one. Per-file failures are reported in the outcome and
// never stop the other files. The returned error is non-nil only when the
// file list cannot be built or the local cache became unusable
// (ErrPermission); the outcome is complete in both cases.
func (s *FileService) RotateEncryptionKey(ctx context.Context, opts RotateOptions) (RotationOutcome, error) {
	start := time.Now()
	defer func() {
		metrics.RotationDuration.Observe(time.Since(start).Seconds())
	}()

	oldCipher := opts.OldCipher
	if oldCipher == nil {
		c, err := crypt.New(opts.OldKey, s.keySalt)
		if err != nil {
			return emptyOutcome(opts.FileNames, err), fmt.Errorf("old key: %w", err)
		}
		oldCipher = c
	}

	names := opts.FileNames
	if names == nil {
		listed, err := s.cache.List()
		if err != nil {
			return emptyOutcome(nil, err), fmt.Errorf("list cached files: %w", err)
		}
		names = listed
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = s.rotationConcurrency
	}

	// A repeated name is rotated once; a second pass would read content
	// already stored under the new key.
	unique := make(map[string]int, len(names))
	distinct := make([]string, 0, len(names))
	for _, name := range names {
		if _, seen := unique[name]; !seen {
			unique[name] = len(distinct)
			distinct = append(distinct, name)
		}
	}

	results := make([]rotationResult, len(distinct))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, name := range distinct {
		i, name := i, name
		g.Go(func() error {
			results[i] = s.rotateOne(gctx, name, oldCipher)
			if IsFatal(results[i].err) {
				return results[i].err
			}
			return nil
		})
	}
	fatalErr := g.Wait()

	outcome := RotationOutcome{
		Rotated:    make([]string, 0, len(names)),
		NotRotated: make([]string, 0),
	}
	for _, name := range names {
		res := results[unique[name]]
		if res.err == nil {
			outcome.Rotated = append(outcome.Rotated, name)
			metrics.RotationFilesTotal.WithLabelValues("rotated").Inc()
			continue
		}
		outcome.NotRotated = append(outcome.NotRotated, name)
		outcome.Failures = append(outcome.Failures, RotationFailure{
			Name:    name,
			Stage:   res.stage,
			Message: res.err.Error(),
			Err:     res.err,
		})
		metrics.RotationFilesTotal.WithLabelValues(string(res.stage) + "_failed").Inc()
		s.logger.Warn("File not rotated",
			zap.String("name", log.SanitizeName(name)),
			zap.String("stage", string(res.stage)),
			zap.Error(res.err))
	}

	s.logger.Info("Encryption key rotation finished",
		zap.Int("total", len(names)),
		zap.Int("rotated", len(outcome.Rotated)),
		zap.Int("not_rotated", len(outcome.NotRotated)),
		zap.Duration("duration", time.Since(start)))

	if fatalErr != nil {
		s.logger.Error("Encryption key rotation halted", zap.Error(fatalErr))
		return outcome, fmt.Errorf("rotation halted: %w", fatalErr)
	}

	return outcome, nil
}

// rotateOne reads name under oldCipher and replaces it under the service key.
func (s *FileService) rotateOne(ctx context.Context, name string, oldCipher crypt.Cipher) rotationResult {
	// Files still queued when a fatal error cancels the run end up here.
	if err := ctx.Err(); err != nil {
		return rotationResult{stage: StageRead, err: err}
	}

	plaintext, err := s.ReadWith(ctx, name, oldCipher)
	if err != nil {
		return rotationResult{stage: StageRead, err: err}
	}

	if err := s.Replace(ctx, name, plaintext); err != nil {
		return rotationResult{stage: StageWrite, err: err}
	}

	return rotationResult{}
}

// emptyOutcome classifies every name as not rotated with the same error.
func emptyOutcome(names []string, err error) RotationOutcome {
	outcome := RotationOutcome{
		Rotated:    []string{},
		NotRotated: make([]string, 0, len(names)),
	}
	for _, name := range names {
		outcome.NotRotated = append(outcome.NotRotated, name)
		outcome.Failures = append(outcome.Failures, RotationFailure{
			Name:    name,
			Stage:   StageRead,
			Message: err.Error(),
			Err:     err,
		})
	}
	return outcome
}
