package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoRootsAllowsEverything(t *testing.T) {
	t.Parallel()

	r, err := New(nil)
	require.NoError(t, err)
	assert.Empty(t, r.Dirs())

	got, err := r.Check("/etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "/etc/passwd", got)

	var none *Roots
	_, err = none.Check("/anything")
	assert.NoError(t, err)
}

func TestCheckInsideAndOutside(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	r, err := New([]string{root, "  "})
	require.NoError(t, err)
	require.Len(t, r.Dirs(), 1)

	_, err = r.Check(root)
	assert.NoError(t, err)
	_, err = r.Check(filepath.Join(root, "sub", "prog.lua"))
	assert.NoError(t, err)

	_, err = r.Check(root + "-sibling")
	assert.ErrorIs(t, err, ErrForbiddenPath)
	_, err = r.Check(filepath.Join(root, "..", "escape.lua"))
	assert.ErrorIs(t, err, ErrForbiddenPath)
}

func TestCheckResolvesSymlinks(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.lua")
	require.NoError(t, os.WriteFile(outside, []byte("return 1"), 0o644))
	link := filepath.Join(root, "link.lua")
	require.NoError(t, os.Symlink(outside, link))

	r, err := New([]string{root})
	require.NoError(t, err)

	_, err = r.Check(link)
	require.ErrorIs(t, err, ErrForbiddenPath)
	assert.Contains(t, err.Error(), link)
}
