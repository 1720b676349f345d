package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// TempFile receives the bytes of one in-flight upload. It accumulates a
// SHA-256 digest as bytes are written, so verification never re-reads the
// artifact from disk. Each upload session owns its TempFile exclusively.
type TempFile struct {
	file *os.File
	path string
	hash hash.Hash
	size int64
}

// CreateTemp creates a uniquely named upload artifact inside the storage
// volume. It is invisible to List until promoted.
func (s *Store) CreateTemp() (*TempFile, error) {
	f, err := os.CreateTemp(s.root, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &TempFile{
		file: f,
		path: f.Name(),
		hash: sha256.New(),
	}, nil
}

// Write appends p to the artifact and folds it into the running digest.
func (t *TempFile) Write(p []byte) (int, error) {
	n, err := t.file.Write(p)
	t.hash.Write(p[:n])
	t.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write upload data: %w", err)
	}
	return n, nil
}

// Sum returns the hex SHA-256 of everything written so far.
func (t *TempFile) Sum() string {
	return hex.EncodeToString(t.hash.Sum(nil))
}

// Size returns the number of bytes written so far.
func (t *TempFile) Size() int64 {
	return t.size
}

// Promote atomically renames the verified artifact to finalName in the live
// namespace, replacing any existing file of that name in one step.
func (s *Store) Promote(t *TempFile, finalName string) error {
	if err := validName(finalName); err != nil {
		return err
	}
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(t.path, filepath.Join(s.root, finalName)); err != nil {
		return fmt.Errorf("failed to promote upload: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"filename": finalName,
		"size":     t.size,
	}).Info("Promoted upload")
	return nil
}

// Discard removes a failed upload artifact. No file ever becomes visible
// under its final name unless its hash was verified.
func (s *Store) Discard(t *TempFile) {
	if t == nil {
		return
	}
	t.file.Close()
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		s.log.WithField("path", t.path).WithError(err).Warn("Failed to remove upload artifact")
	}
}
