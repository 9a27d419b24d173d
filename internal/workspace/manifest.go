package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"cargo-kelvin/internal/errdefs"
)

// Manifest is the subset of Cargo.toml needed to locate a workspace root.
type Manifest struct {
	Workspace *WorkspaceTable `toml:"workspace"`
}

type WorkspaceTable struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

func ReadManifest(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

// Claims reports whether the workspace declared at wsDir has pkgDir as a
// member.
func (w *WorkspaceTable) Claims(wsDir, pkgDir string) bool {
	rel, err := filepath.Rel(wsDir, pkgDir)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, ex := range w.Exclude {
		if matchMember(ex, rel) {
			return false
		}
	}
	for _, m := range w.Members {
		if matchMember(m, rel) {
			return true
		}
	}
	return false
}

func matchMember(pattern, rel string) bool {
	pattern = filepath.ToSlash(filepath.Clean(pattern))
	if pattern == rel {
		return true
	}
	ok, err := filepath.Match(pattern, rel)
	return err == nil && ok
}

// FindRoot returns the workspace root for start: the nearest directory at or
// above start holding the manifest, or the enclosing Cargo workspace that
// lists it as a member.
func FindRoot(start string, rules Rules) (string, error) {
	manifest := rules.Manifest
	if manifest == "" {
		manifest = DefaultManifest
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", errdefs.Scan("find root", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", errdefs.Scan("find root", err)
	}
	if !info.IsDir() {
		return "", errdefs.Scan("find root", fmt.Errorf("%s is not a directory", dir))
	}

	pkgDir, err := nearestManifest(dir, manifest)
	if err != nil {
		return "", err
	}
	if manifest != DefaultManifest {
		return pkgDir, nil
	}

	m, err := ReadManifest(filepath.Join(pkgDir, manifest))
	if err != nil {
		return "", errdefs.Scan("find root", err)
	}
	if m.Workspace != nil {
		return pkgDir, nil
	}

	if wsDir, ok := enclosingWorkspace(pkgDir, manifest); ok {
		return wsDir, nil
	}
	return pkgDir, nil
}

// enclosingWorkspace looks above pkgDir for the first manifest declaring a
// [workspace] table, and reports it only when that workspace claims pkgDir.
func enclosingWorkspace(pkgDir, manifest string) (string, bool) {
	dir := pkgDir
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		wsDir, err := nearestManifest(parent, manifest)
		if err != nil {
			return "", false
		}
		ws, err := ReadManifest(filepath.Join(wsDir, manifest))
		if err != nil {
			slog.Warn("ignoring unreadable parent manifest", "path", wsDir, "err", err)
			return "", false
		}
		if ws.Workspace != nil {
			return wsDir, ws.Workspace.Claims(wsDir, pkgDir)
		}
		dir = wsDir
	}
}

func nearestManifest(dir, manifest string) (string, error) {
	for {
		info, err := os.Stat(filepath.Join(dir, manifest))
		if err == nil && !info.IsDir() {
			return dir, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", errdefs.Scan("find root", err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errdefs.Scan("find root", fmt.Errorf("no %s found in %s or any parent directory", manifest, dir))
		}
		dir = parent
	}
}
