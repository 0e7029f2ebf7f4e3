package artifact

import (
	"path/filepath"
	"regexp"
	"strings"
)

// PathMatcher decides whether a recorded artifact path belongs to the
// tree being retargeted and, if so, produces the rewritten path under
// a new root. The two variants carry their own trailing-separator
// rules, chosen explicitly by the caller rather than inferred from the
// shape of the input.
type PathMatcher interface {
	// Rewrite returns the path relocated under newRoot and true when
	// the path matches, or ("", false) when it does not.
	Rewrite(path, newRoot string) (string, bool)
}

// Literal matches paths by a fixed prefix. Trailing separators on both
// the prefix and the new root are normalized before matching, so
// "/scratch103/sp" and "/scratch103/sp/" behave identically.
type Literal struct {
	prefix string
}

// NewLiteral creates a fixed-prefix matcher.
func NewLiteral(prefix string) Literal {
	return Literal{prefix: strings.TrimRight(prefix, string(filepath.Separator))}
}

// Rewrite replaces the prefix with newRoot, preserving the remainder
// of the path including its shard directory and leaf filename.
func (l Literal) Rewrite(path, newRoot string) (string, bool) {
	rest, ok := strings.CutPrefix(path, l.prefix+string(filepath.Separator))
	if !ok {
		return "", false
	}
	return filepath.Join(newRoot, rest), true
}

// Pattern matches paths by a compiled regular expression. The caller
// is responsible for anchoring; no separator normalization is applied.
// The expression's first capture group is the path suffix preserved
// under the new root.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern creates a regexp matcher. The expression must contain at
// least one capture group.
func NewPattern(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, err
	}
	return Pattern{re: re}, nil
}

// MustPattern is NewPattern that panics on a bad expression. For
// package-level defaults only.
func MustPattern(expr string) Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Rewrite joins newRoot with the first capture group of the match.
func (p Pattern) Rewrite(path, newRoot string) (string, bool) {
	sub := p.re.FindStringSubmatch(path)
	if sub == nil || len(sub) < 2 {
		return "", false
	}
	return filepath.Join(newRoot, sub[1]), true
}

// DefaultMatcher matches the conventional artifact layout of
// .../pipe_<dataset>/<numeric-shard>/<leaf-filename>, preserving the
// pipe directory, shard, and leaf under the new root.
func DefaultMatcher() PathMatcher {
	return MustPattern(`^.*/(pipe_[^/]+/[0-9]+/[^/]+)$`)
}
