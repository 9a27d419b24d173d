package workspace

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFiles are read from every visited directory.
var IgnoreFiles = []string{".gitignore", ".ignore"}

type ignoreRule struct {
	base    string // slash path of the directory holding the ignore file, "" for root
	matcher *gitignore.GitIgnore
	// negated holds the file's "!pattern" lines without the bang; the
	// matcher alone does not report which paths they re-include.
	negated *gitignore.GitIgnore
}

// ignoreSet is the ignore files seen along the current walk, in the order
// they were loaded. A rule only applies to paths below its own directory.
type ignoreSet struct {
	rules []ignoreRule
}

func newIgnoreSet() *ignoreSet {
	return &ignoreSet{}
}

// ParseIgnore compiles gitignore-style lines.
func ParseIgnore(lines ...string) *gitignore.GitIgnore {
	return gitignore.CompileIgnoreLines(lines...)
}

// add registers the lines of one ignore file found in base.
func (s *ignoreSet) add(base string, lines ...string) {
	var negated []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "!") && len(l) > 1 {
			negated = append(negated, l[1:])
		}
	}
	s.rules = append(s.rules, ignoreRule{
		base:    base,
		matcher: ParseIgnore(lines...),
		negated: ParseIgnore(negated...),
	})
}

// decide reports whether the rule's file has an opinion on sub and, if so,
// whether it excludes it.
func (r ignoreRule) decide(sub string) (ignored, matched bool) {
	if ignored, _ := r.matcher.MatchesPathHow(sub); ignored {
		return true, true
	}
	if r.negated.MatchesPath(sub) {
		return false, true
	}
	return false, false
}

// load reads the ignore files of dir, which is rel below the root.
func (s *ignoreSet) load(dir, rel string) error {
	for _, name := range IgnoreFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		s.add(rel, strings.Split(string(data), "\n")...)
	}
	return nil
}

// Ignored reports whether rel is excluded. The deepest ignore file with a
// matching pattern decides, and within one directory .ignore wins over
// .gitignore, so a nested "!pattern" can re-include a file.
func (s *ignoreSet) Ignored(rel string, isDir bool) bool {
	for i := len(s.rules) - 1; i >= 0; i-- {
		r := s.rules[i]
		sub, ok := below(r.base, rel)
		if !ok {
			continue
		}
		if isDir {
			sub += "/"
		}
		if ignored, matched := r.decide(sub); matched {
			return ignored
		}
	}
	return false
}

func below(base, rel string) (string, bool) {
	if base == "" {
		return rel, true
	}
	if !strings.HasPrefix(rel, base+"/") {
		return "", false
	}
	return path.Clean(strings.TrimPrefix(rel, base+"/")), true
}
