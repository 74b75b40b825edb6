package artifactstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, s Store, name, content string) {
	t.Helper()
	w, err := s.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestDirStoreCreatesDirAndUsesBaseName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := NewDir(dir)

	writeFile(t, s, "home/circleci/rpm/cloudify-rest-service.rpm", "rpm")

	content, err := os.ReadFile(filepath.Join(dir, "cloudify-rest-service.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "rpm", string(content))
	assert.Equal(t, filepath.Join(dir, "cloudify-rest-service.rpm"),
		s.Path("home/circleci/rpm/cloudify-rest-service.rpm"))
}

func TestDirStoreLastWriterWins(t *testing.T) {
	dir := t.TempDir()
	s := NewDir(dir)

	writeFile(t, s, "a/file.rpm", "first version, longer")
	writeFile(t, s, "b/file.rpm", "second")

	content, err := os.ReadFile(filepath.Join(dir, "file.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestDirStoreRejectsInvalidNames(t *testing.T) {
	s := NewDir(t.TempDir())
	for _, name := range []string{"", ".", "..", "foo/.."} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Create(name)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestDirStoreAbortKeepsPreviousFile(t *testing.T) {
	dir := t.TempDir()
	s := NewDir(dir)
	writeFile(t, s, "cloudify-manager.rpm", "good")

	w, err := s.Create("cloudify-manager.rpm")
	require.NoError(t, err)
	_, err = io.WriteString(w, "PART")
	require.NoError(t, err)
	require.NoError(t, w.Abort(errors.New("connection reset")))

	content, err := os.ReadFile(filepath.Join(dir, "cloudify-manager.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(content))
	assertOnlyFiles(t, dir, "cloudify-manager.rpm")
}

func TestDirStoreNothingVisibleBeforeClose(t *testing.T) {
	dir := t.TempDir()
	s := NewDir(dir)

	w, err := s.Create("cloudify-manager.rpm")
	require.NoError(t, err)
	_, err = io.WriteString(w, "content")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "cloudify-manager.rpm"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, w.Close())
	info, err := os.Stat(filepath.Join(dir, "cloudify-manager.rpm"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0664), info.Mode().Perm())
	assertOnlyFiles(t, dir, "cloudify-manager.rpm")

	assert.NoError(t, w.Abort(nil), "abort after close is a no-op")
	_, err = os.Stat(filepath.Join(dir, "cloudify-manager.rpm"))
	assert.NoError(t, err)
}

func TestDirStorePathMatchesCreate(t *testing.T) {
	dir := t.TempDir()
	s := NewDir(dir)
	writeFile(t, s, " home/circleci/rpm/cloudify.rpm ", "x")
	_, err := os.Stat(s.Path(" home/circleci/rpm/cloudify.rpm "))
	assert.NoError(t, err)
}

func assertOnlyFiles(t *testing.T, dir string, want ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, want, names)
}
