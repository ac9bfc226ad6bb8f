// Package sandbox implements the path allow/deny resolver and the
// command allow/deny runner that together constrain every filesystem
// and process operation governor performs on an AI engine's behalf
// (spec.md §4.4).
package sandbox

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
)

// PathPolicy configures the path resolver: glob allow/deny lists
// matched against the path relative to the project root.
type PathPolicy struct {
	AllowedPaths []string // glob patterns, e.g. "src/**", "*.go"
	BlockedPaths []string // glob patterns; a match here overrides an allow match
}

// Resolver resolves and validates paths against a project root.
type Resolver struct {
	root   string
	policy PathPolicy
	bus    *events.Bus
}

// NewResolver creates a path Resolver rooted at root.
func NewResolver(root string, policy PathPolicy, bus *events.Bus) *Resolver {
	return &Resolver{root: root, policy: policy, bus: bus}
}

// Resolve normalizes requested, resolves symlinks, and requires the
// canonical result to stay lexically inside the project root and pass
// the configured glob allow/deny policy. Any ".." segment that would
// escape is rejected up front, before canonicalization, per spec.md
// §4.4. Violations emit a `security` event and return Forbidden.
func (r *Resolver) Resolve(requested string) (string, error) {
	// Reject escaping ".." segments before any filesystem interaction,
	// independent of how EvalSymlinks might later resolve them.
	cleanRel := filepath.Clean(requested)
	if cleanRel == ".." || strings.HasPrefix(cleanRel, ".."+string(filepath.Separator)) {
		return r.reject(requested, "path traverses above project root via '..'")
	}

	joined := requested
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(r.root, requested)
	}

	canonical, err := evalSymlinksBestEffort(joined)
	if err != nil {
		return r.reject(requested, "failed to canonicalize path: "+err.Error())
	}

	rootCanonical, err := evalSymlinksBestEffort(r.root)
	if err != nil {
		return r.reject(requested, "failed to canonicalize project root: "+err.Error())
	}

	rel, err := filepath.Rel(rootCanonical, canonical)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return r.reject(requested, "canonicalized path escapes project root")
	}
	rel = filepath.ToSlash(rel)

	if !r.allowed(rel) {
		return r.reject(requested, "path does not match an allowed glob pattern")
	}
	if r.blocked(rel) {
		return r.reject(requested, "path matches a blocked glob pattern")
	}

	return canonical, nil
}

func (r *Resolver) allowed(rel string) bool {
	if len(r.policy.AllowedPaths) == 0 {
		return true
	}
	for _, pattern := range r.policy.AllowedPaths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (r *Resolver) blocked(rel string) bool {
	for _, pattern := range r.policy.BlockedPaths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (r *Resolver) reject(requested, reason string) (string, error) {
	if r.bus != nil {
		r.bus.Publish(events.Event{
			Kind:    events.KindSecurity,
			Payload: map[string]any{"requested_path": requested, "reason": reason},
		})
	}
	return "", errs.Forbidden(reason)
}
