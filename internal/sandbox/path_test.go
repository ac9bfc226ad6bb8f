package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/governor/internal/errs"
)

func TestResolve_AllowsPathInsideRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	r := NewResolver(root, PathPolicy{}, nil)
	resolved, err := r.Resolve("main.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "main.go"), resolved)
}

func TestResolve_RejectsDotDotTraversal(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root, PathPolicy{}, nil)

	_, err := r.Resolve("../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))
}

func TestResolve_RejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "link.txt")))

	r := NewResolver(root, PathPolicy{}, nil)
	_, err := r.Resolve("link.txt")
	require.Error(t, err)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))
}

func TestResolve_EnforcesAllowlist(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.env"), []byte("x"), 0o644))

	r := NewResolver(root, PathPolicy{AllowedPaths: []string{"src/**"}}, nil)

	_, err := r.Resolve("src/main.go")
	require.NoError(t, err)

	_, err = r.Resolve("secret.env")
	require.Error(t, err)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))
}

func TestResolve_BlocklistOverridesAllowlist(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", ".env"), []byte("x"), 0o644))

	r := NewResolver(root, PathPolicy{
		AllowedPaths: []string{"src/**"},
		BlockedPaths: []string{"**/.env"},
	}, nil)

	_, err := r.Resolve("src/.env")
	require.Error(t, err)
	assert.Equal(t, errs.CodeForbidden, errs.CodeOf(err))
}
