package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"cargo-kelvin/internal/errdefs"
)

// ProjectFile is one regular file of the workspace. Path is relative to the
// root and always uses forward slashes.
type ProjectFile struct {
	Path   string
	FSPath string
	Size   int64
}

// Open returns the file contents for reading. Callers close it.
func (f ProjectFile) Open() (io.ReadCloser, error) {
	return os.Open(f.FSPath)
}

type Scanner struct {
	root  string
	rules Rules
}

// NewScanner checks that root is a readable directory holding the manifest.
func NewScanner(root string, rules Rules) (*Scanner, error) {
	if rules.Manifest == "" {
		rules.Manifest = DefaultManifest
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errdefs.Scan("open workspace", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errdefs.Scan("open workspace", err)
	}
	if !info.IsDir() {
		return nil, errdefs.Scan("open workspace", fmt.Errorf("%s is not a directory", abs))
	}
	if _, err := os.ReadDir(abs); err != nil {
		return nil, errdefs.Scan("open workspace", err)
	}
	if st, err := os.Stat(filepath.Join(abs, rules.Manifest)); err != nil || st.IsDir() {
		return nil, errdefs.Scan("open workspace", fmt.Errorf("%s has no %s", abs, rules.Manifest))
	}
	return &Scanner{root: abs, rules: rules}, nil
}

func (s *Scanner) Root() string {
	return s.root
}

var errStop = errors.New("stop")

// Files walks the workspace lazily. Each call starts a fresh walk, so the
// sequence can be ranged over more than once.
func (s *Scanner) Files() iter.Seq2[ProjectFile, error] {
	return func(yield func(ProjectFile, error) bool) {
		ignores := newIgnoreSet()

		err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return errdefs.Scan("walk", err)
			}
			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				return errdefs.Scan("walk", err)
			}
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if rel == "." {
					return s.loadIgnores(ignores, p, "")
				}
				name := d.Name()
				if Hidden(name) || s.rules.ExcludedDir(name) || ignores.Ignored(rel, true) {
					slog.Debug("skipping directory", "path", rel)
					return filepath.SkipDir
				}
				return s.loadIgnores(ignores, p, rel)
			}

			if !d.Type().IsRegular() {
				return nil
			}
			if !s.rules.AllowedExtension(rel) || Hidden(d.Name()) || ignores.Ignored(rel, false) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return errdefs.Scan("stat "+rel, err)
			}
			if !s.rules.WithinSize(info.Size()) {
				slog.Warn("skipping large file", "path", rel, "size", info.Size(), "limit", s.rules.MaxFileSize)
				return nil
			}

			if !yield(ProjectFile{Path: rel, FSPath: p, Size: info.Size()}, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(ProjectFile{}, err)
		}
	}
}

func (s *Scanner) loadIgnores(set *ignoreSet, dir, rel string) error {
	if err := set.load(dir, rel); err != nil {
		return errdefs.Scan("read ignore file in "+dir, err)
	}
	return nil
}

// Scan collects Files into a slice.
func (s *Scanner) Scan() ([]ProjectFile, error) {
	var files []ProjectFile
	for f, err := range s.Files() {
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
