// Package storage provides the filesystem-backed accessor for the server's
// storage namespace: existence checks, listing with version history, atomic
// temp-file promotion, archive moves and byte-range reads.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"filehub/pkg/types"
	"filehub/pkg/utils"
)

var (
	ErrInvalidName      = errors.New("invalid filename")
	ErrNotFound         = errors.New("file not found")
	ErrVersionCollision = errors.New("version archive name already exists")
)

// tempPrefix marks in-flight upload artifacts inside the storage volume.
// Keeping them on the same volume makes promotion a single atomic rename.
const tempPrefix = ".upload-"

// Store is the accessor for one server-side storage namespace rooted at a
// directory, with archived revisions kept in a subdirectory per base name.
type Store struct {
	root        string
	versionRoot string
	log         logrus.FieldLogger
}

// New opens (creating if needed) a storage namespace rooted at root, with
// archived revisions under the versionDir subdirectory.
func New(root, versionDir string, log logrus.FieldLogger) (*Store, error) {
	versionRoot := filepath.Join(root, versionDir)
	for _, dir := range []string{root, versionRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}
	return &Store{
		root:        root,
		versionRoot: versionRoot,
		log:         log.WithField("component", "storage"),
	}, nil
}

// validName rejects names that could escape the namespace. Stored names are
// plain base names: no separators, no traversal components.
func validName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return ErrInvalidName
	}
	return nil
}

// splitExt splits a filename into base and extension, keeping the dot with
// the extension.
func splitExt(name string) (base, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// Exists reports whether name is present in the live namespace.
func (s *Store) Exists(name string) bool {
	if validName(name) != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, name))
	return err == nil && info.Mode().IsRegular()
}

// Resolve locates name for download: the live namespace first, then the
// version archive, so archived revisions stay independently retrievable.
func (s *Store) Resolve(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	live := filepath.Join(s.root, name)
	if info, err := os.Stat(live); err == nil && info.Mode().IsRegular() {
		return live, nil
	}

	dirs, err := os.ReadDir(s.versionRoot)
	if err != nil {
		return "", fmt.Errorf("failed to scan version history: %w", err)
	}
	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		archived := filepath.Join(s.versionRoot, dir.Name(), name)
		if info, err := os.Stat(archived); err == nil && info.Mode().IsRegular() {
			return archived, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// OpenRange opens name (live or archived) positioned at offset and returns
// the reader together with the file's total size, the effective offset and
// the current hex SHA-256. An offset outside [0, size] falls back to 0.
func (s *Store) OpenRange(name string, offset int64) (io.ReadCloser, int64, int64, string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, 0, 0, "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, 0, "", fmt.Errorf("failed to stat file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	hash, err := utils.HashFile(path)
	if err != nil {
		return nil, 0, 0, "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, "", fmt.Errorf("failed to open file: %w", err)
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, 0, 0, "", fmt.Errorf("failed to seek to offset %d: %w", offset, err)
		}
	}
	return f, info.Size(), offset, hash, nil
}

// NextRenameName probes for the lowest-numbered unused _vN suffix of name,
// starting at _v2, leaving the original untouched.
func (s *Store) NextRenameName(name string) string {
	base, ext := splitExt(name)
	for counter := 2; ; counter++ {
		candidate := fmt.Sprintf("%s_v%d%s", base, counter, ext)
		if !s.Exists(candidate) {
			return candidate
		}
	}
}

// ArchiveMove moves the current content of name into the version archive
// under <base>_<YYYYMMDD_HHMMSS><ext> and returns the archived name. An
// identical-second collision is rejected rather than overwriting a record:
// version records are append-only.
func (s *Store) ArchiveMove(name string, now time.Time) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	base, ext := splitExt(name)
	versioned := fmt.Sprintf("%s_%s%s", base, now.Format("20060102_150405"), ext)

	dir := filepath.Join(s.versionRoot, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create version directory: %w", err)
	}

	dest := filepath.Join(dir, versioned)
	if _, err := os.Stat(dest); err == nil {
		return "", fmt.Errorf("%w: %s", ErrVersionCollision, versioned)
	}
	if err := os.Rename(filepath.Join(s.root, name), dest); err != nil {
		return "", fmt.Errorf("failed to archive file: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"filename": name,
		"archived": versioned,
	}).Info("Archived file to version history")
	return versioned, nil
}

// Versions returns the archived revisions of name, oldest first. The
// timestamp embedded in archived names makes the lexicographic order the
// chronological one.
func (s *Store) Versions(name string) ([]types.VersionRecord, error) {
	base, ext := splitExt(name)
	dir := filepath.Join(s.versionRoot, base)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read version directory: %w", err)
	}

	records := make([]types.VersionRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		vname := entry.Name()
		if !strings.HasPrefix(vname, base+"_") || !strings.HasSuffix(vname, ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		hash, err := utils.HashFile(filepath.Join(dir, vname))
		if err != nil {
			return nil, err
		}
		records = append(records, types.VersionRecord{
			Filename: vname,
			Size:     info.Size(),
			Modified: info.ModTime().Format(types.TimeFormat),
			Hash:     hash,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Filename < records[j].Filename })
	return records, nil
}

// List enumerates the live namespace with per-file version history. In-flight
// upload artifacts and the version directory itself are excluded.
func (s *Store) List() ([]types.FileRecord, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	records := make([]types.FileRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		hash, err := utils.HashFile(filepath.Join(s.root, name))
		if err != nil {
			return nil, err
		}
		versions, err := s.Versions(name)
		if err != nil {
			return nil, err
		}
		records = append(records, types.FileRecord{
			Filename: name,
			Size:     info.Size(),
			Modified: info.ModTime().Format(types.TimeFormat),
			Hash:     hash,
			Versions: versions,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Filename < records[j].Filename })
	return records, nil
}
