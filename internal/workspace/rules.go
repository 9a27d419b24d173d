package workspace

import (
	"path"
	"strings"

	"cargo-kelvin/internal/config"
)

const DefaultManifest = "Cargo.toml"

// Rules decide which paths belong to a submission. Every method is a pure
// function of its arguments, paths are slash-separated and relative to the
// workspace root.
type Rules struct {
	Manifest    string
	Extensions  []string
	ExcludeDirs []string
	MaxFileSize int64
}

func DefaultRules() Rules {
	return Rules{
		Manifest:    DefaultManifest,
		Extensions:  []string{".rs", ".toml", ".lock", ".md", ".txt"},
		ExcludeDirs: []string{"target"},
		MaxFileSize: 1 << 20,
	}
}

// RulesFromConfig fills empty fields from DefaultRules.
func RulesFromConfig(c config.Scan) Rules {
	r := DefaultRules()
	if c.Manifest != "" {
		r.Manifest = c.Manifest
	}
	if len(c.Extensions) > 0 {
		r.Extensions = normalizeExtensions(c.Extensions)
	}
	if c.ExcludeDirs != nil {
		r.ExcludeDirs = c.ExcludeDirs
	}
	if c.MaxFileSize > 0 {
		r.MaxFileSize = c.MaxFileSize
	}
	return r
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// AllowedExtension reports whether the file name carries an allow-listed
// extension. The comparison is case-sensitive.
func (r Rules) AllowedExtension(rel string) bool {
	ext := path.Ext(rel)
	if ext == "" {
		return false
	}
	for _, e := range r.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ExcludedDir reports whether a directory with this base name is pruned.
func (r Rules) ExcludedDir(name string) bool {
	for _, d := range r.ExcludeDirs {
		if d == name {
			return true
		}
	}
	return false
}

func Hidden(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// WithinSize reports whether a file of this size may be included.
func (r Rules) WithinSize(size int64) bool {
	return r.MaxFileSize <= 0 || size <= r.MaxFileSize
}
