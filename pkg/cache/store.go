package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"syscall"
	"time"
)

// Store maps identities to image paths inside one folder. The existence of a
// file is the cache hit signal; entries are never validated or expired.
type Store struct {
	folder string
}

// NewStore creates a store rooted at folder. An empty folder means the
// current working directory.
func NewStore(folder string) *Store {
	return &Store{folder: folder}
}

// Folder returns the store folder.
func (s *Store) Folder() string { return s.folder }

// Path returns the path of a single-image entry: folder/identity.format.
func (s *Store) Path(id Identity, format string) string {
	return s.join(string(id) + "." + format)
}

// SequencePath returns the path of the n-th image of a multi-image entry:
// folder/identity<n>.format, numbered from 1.
func (s *Store) SequencePath(id Identity, n int, format string) string {
	return s.join(string(id) + strconv.Itoa(n) + "." + format)
}

func (s *Store) join(name string) string {
	if s.folder == "" {
		return name
	}
	return filepath.Join(s.folder, name)
}

// Exists reports whether path is an existing regular file. The content is
// not inspected.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureFolder creates the store folder and its parents if needed.
func (s *Store) EnsureFolder() error {
	if s.folder == "" {
		return nil
	}
	return os.MkdirAll(s.folder, 0755)
}

// Probe collects the contiguous numbered entries identity1, identity2, ...
// stopping at the first missing file. An empty result is a cache miss.
func (s *Store) Probe(id Identity, format string) []string {
	var paths []string
	for n := 1; ; n++ {
		p := s.SequencePath(id, n, format)
		if !s.Exists(p) {
			return paths
		}
		paths = append(paths, p)
	}
}

// Publish moves a rendered file into its final cache path. Within one
// filesystem this is an atomic rename, so readers never observe a partially
// written image; across filesystems the file is copied next to dst first and
// then renamed.
func (s *Store) Publish(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".publish-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	in, err := os.Open(src)
	if err != nil {
		tmp.Close()
		return err
	}
	defer in.Close()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// entryRe matches file names produced by the store.
var entryRe = regexp.MustCompile(`^([0-9a-f]{16})([0-9]*)\.([A-Za-z0-9]+)$`)

// Entry is a cached image found in a store folder.
type Entry struct {
	Path     string
	Identity Identity
	Index    int // 0 for single-image entries, n for identity<n>
	Format   string
	Size     int64
	ModTime  time.Time
}

// Entries lists the cached images in the store folder, sorted by name.
// Files that do not look like cache entries are ignored.
func (s *Store) Entries() ([]Entry, error) {
	dir := s.folder
	if dir == "" {
		dir = "."
	}
	items, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, item := range items {
		if !item.Type().IsRegular() {
			continue
		}
		m := entryRe.FindStringSubmatch(item.Name())
		if m == nil {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		idx, _ := strconv.Atoi(m[2])
		entries = append(entries, Entry{
			Path:     s.join(item.Name()),
			Identity: Identity(m[1]),
			Index:    idx,
			Format:   m[3],
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Clear removes every cache entry from the store folder and returns the
// number of files removed.
func (s *Store) Clear() (int, error) {
	entries, err := s.Entries()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, e := range entries {
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return count, err
		}
		count++
	}
	return count, nil
}
