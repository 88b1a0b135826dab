package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.dat")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMapping_OpenReadClose(t *testing.T) {
	content := []byte("Hello, Mmap!")
	path := writeFile(t, content)

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, path, m.Path())
	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMapping_Slice(t *testing.T) {
	m, err := Open(writeFile(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	b, err := m.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "234", string(b))
	assert.Equal(t, 3, cap(b))

	b, err = m.Slice(10, 0)
	require.NoError(t, err)
	assert.Empty(t, b)

	_, err = m.Slice(8, 3)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = m.Slice(-1, 1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
	_, err = m.Slice(0, -1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMapping_AdviseAndClose(t *testing.T) {
	m, err := Open(writeFile(t, make([]byte, 1024)))
	require.NoError(t, err)

	for _, p := range []AccessPattern{AccessDefault, AccessSequential, AccessRandom, AccessWillNeed} {
		require.NoError(t, m.Advise(p))
	}

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	_, err = m.Slice(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMapping_EmptyFile(t *testing.T) {
	m, err := Open(writeFile(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.NoError(t, m.Advise(AccessRandom))
}

func TestMapping_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.dat"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMapping_SurvivesUnlink(t *testing.T) {
	path := writeFile(t, []byte("abc"))
	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, os.Remove(path))
	assert.Equal(t, "abc", string(m.Bytes()))
}

func TestParseAccessPattern(t *testing.T) {
	for _, p := range []AccessPattern{AccessDefault, AccessSequential, AccessRandom, AccessWillNeed, AccessDontNeed} {
		got, err := ParseAccessPattern(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseAccessPattern("bogus")
	assert.Error(t, err)
}
