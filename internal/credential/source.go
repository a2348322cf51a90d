package credential

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/kursadbilgin/issuance-engine/internal/domain"
	"go.uber.org/zap"
)

// Source supplies the credential set for one acquisition run.
type Source interface {
	Load(ctx context.Context) ([]domain.Credential, error)
}

// FileSource reads newline-delimited tokens from a file on every Load so the
// file can be rotated between runs without a restart.
type FileSource struct {
	path   string
	logger *zap.Logger
}

// NewFileSource fails with ErrConfig unless path names a readable file.
func NewFileSource(path string, logger *zap.Logger) (*FileSource, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: credentials path is required", domain.ErrConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &FileSource{path: trimmed, logger: logger}
	f, err := s.open()
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	return s, nil
}

func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Load(ctx context.Context) ([]domain.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, s.logger)
}

func (s *FileSource) open() (*os.File, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: credentials file %q not found", domain.ErrConfig, s.path)
		}
		return nil, fmt.Errorf("%w: failed to stat credentials file: %v", domain.ErrConfig, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: credentials path %q is a directory", domain.ErrConfig, s.path)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open credentials file: %v", domain.ErrConfig, err)
	}
	return f, nil
}

// Parse reads one token per line. Blank lines are ignored, malformed lines are
// skipped with a warning that names only the line number, and duplicate tokens
// collapse to their first occurrence so a credential contributes at most once.
func Parse(r io.Reader, logger *zap.Logger) ([]domain.Credential, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seen := make(map[string]struct{})
	credentials := make([]domain.Credential, 0)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		cred, err := domain.NewCredential(raw)
		if err != nil {
			logger.Warn("skipping malformed credential line", zap.Int("line", line))
			continue
		}
		if _, dup := seen[cred.Secret()]; dup {
			continue
		}
		seen[cred.Secret()] = struct{}{}
		credentials = append(credentials, cred)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return credentials, nil
}
