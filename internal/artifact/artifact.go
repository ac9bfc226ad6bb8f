// Package artifact implements the content-addressed Artifact Store
// (spec.md §4.3): put/get/open over a per-project root, deduplicated
// by strong content hash, with atomic writes.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/store"
)

// DAO is the subset of *store.DB the Artifact Store needs.
type DAO interface {
	CreateArtifact(a *store.Artifact) error
	GetArtifact(id string) (*store.Artifact, error)
	GetArtifactByHash(projectID, hash string) (*store.Artifact, error)
}

// Store is the content-addressed Artifact Store for one project.
type Store struct {
	root string // <project_root>/artifacts
	dao  DAO
}

// New creates an Artifact Store rooted under <projectRoot>/artifacts.
func New(projectRoot string, dao DAO) *Store {
	return &Store{root: filepath.Join(projectRoot, "artifacts"), dao: dao}
}

// Metadata describes an optional association to attach to an artifact.
type Metadata struct {
	ProjectID string
	RunID     string
	TaskID    string
}

// Put writes bytes under the content-addressed path for kind,
// deduplicating on identical content: re-putting the same bytes
// returns the existing row rather than writing again (spec.md §4.3,
// §8's put/put idempotence law).
func (s *Store) Put(b []byte, kind store.ArtifactKind, meta Metadata) (*store.Artifact, error) {
	sum := sha256.Sum256(b)
	hash := hex.EncodeToString(sum[:])

	if existing, err := s.dao.GetArtifactByHash(meta.ProjectID, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	relPath := s.relativePath(kind, hash)
	absPath := filepath.Join(s.root, relPath)

	if err := s.writeAtomic(absPath, b); err != nil {
		return nil, err
	}

	a := &store.Artifact{
		ID:        uuid.NewString(),
		ProjectID: meta.ProjectID,
		Kind:      kind,
		Path:      relPath,
		Hash:      hash,
		Size:      int64(len(b)),
		RunID:     meta.RunID,
		TaskID:    meta.TaskID,
	}
	if err := s.dao.CreateArtifact(a); err != nil {
		return nil, err
	}
	return a, nil
}

// relativePath computes the deterministic, prefix-preserving layout
// spec.md §6 names: <kind>/<hash-prefix>/<hash>.
func (s *Store) relativePath(kind store.ArtifactKind, hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.ToSlash(filepath.Join(strings.ToLower(string(kind)), prefix, hash))
}

// writeAtomic writes content to a temp file in the same directory
// then renames it into place, so readers never observe a partial write.
func (s *Store) writeAtomic(path string, b []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.CodeStorage, "create artifact directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return errs.Wrap(errs.CodeStorage, "create temp artifact file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return errs.Wrap(errs.CodeStorage, "write artifact content", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.CodeStorage, "close temp artifact file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Wrap(errs.CodeStorage, "rename artifact into place", err)
	}
	return nil
}

// Get returns artifact metadata by id.
func (s *Store) Get(id string) (*store.Artifact, error) {
	return s.dao.GetArtifact(id)
}

// Open returns a readable stream of an artifact's content.
func (s *Store) Open(id string) (io.ReadCloser, error) {
	a, err := s.dao.GetArtifact(id)
	if err != nil {
		return nil, err
	}
	absPath := filepath.Join(s.root, a.Path)
	if err := s.assertWithinRoot(absPath); err != nil {
		return nil, err
	}
	f, err := os.Open(absPath)
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "open artifact", err)
	}
	return f, nil
}

// assertWithinRoot guards against a corrupted path row ever escaping
// the project's artifact root (spec.md §4.3's Unauthorized failure
// mode — must never happen, hence the hard check here).
func (s *Store) assertWithinRoot(absPath string) error {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "resolve artifact root", err)
	}
	target, err := filepath.Abs(absPath)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "resolve artifact path", err)
	}
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errs.New(errs.CodeForbidden, fmt.Sprintf("artifact path %q escapes project root", absPath))
	}
	return nil
}
