// Package persist writes exported documents to an output directory.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/pslog"
)

// Store persists documents to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a document store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a document store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("output_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save atomically writes data under name and returns the written path. An
// existing file of the same name is replaced.
func (s *Store) Save(name string, data []byte) (string, error) {
	path := s.pathFor(name)
	if err := writeAtomic(path, data); err != nil {
		if s.log != nil {
			s.log.Warn("document save failed", "name", name, "err", err)
		}
		return "", err
	}
	if s.log != nil {
		s.log.Info("document save ok", "path", path, "bytes", len(data))
	}
	return path, nil
}

// Load reads a previously saved document.
func (s *Store) Load(name string) ([]byte, error) {
	data, err := os.ReadFile(s.pathFor(name))
	if err != nil {
		if s.log != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("document load failed", "name", name, "err", err)
		}
		return nil, err
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".document-*.tmp")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename document: %w", err)
	}
	return nil
}

func (s *Store) pathFor(name string) string {
	clean := sanitize(filepath.Base(name))
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		clean = "document.pdf"
	}
	return filepath.Join(s.dir, clean)
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
