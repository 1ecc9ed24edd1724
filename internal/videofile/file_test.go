package videofile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Squat.MP4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o600))

	f, err := FromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "Squat.MP4", f.Name)
	assert.Equal(t, int64(16), f.Size)
	assert.Equal(t, "video/mp4", f.ContentType)

	for i := 0; i < 2; i++ {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, "fake video bytes", string(data))
	}
}

func TestFromPath_Errors(t *testing.T) {
	_, err := FromPath(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = FromPath(t.TempDir())
	assert.Error(t, err)
}

func TestFromBytes(t *testing.T) {
	f := FromBytes("a.webm", "video/webm", []byte("abc"))
	assert.Equal(t, int64(3), f.Size)

	rc, err := f.Open()
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "abc", string(data))
}

func TestOpen_NoContent(t *testing.T) {
	_, err := New("x.mp4", 1, "video/mp4", nil).Open()
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "30 MiB", FormatSize(DefaultMaxSizeBytes))

	assert.Equal(t, "mp4", Extension("clip.MP4"))
	assert.Equal(t, "", Extension("README"))
	assert.Equal(t, "gz", Extension("a.tar.gz"))

	assert.True(t, IsVideo("video/mp4"))
	assert.True(t, IsVideo("video/webm; codecs=vp9"))
	assert.False(t, IsVideo("image/png"))
	assert.False(t, IsVideo(""))
}

func TestFile_String(t *testing.T) {
	assert.Equal(t, "a.mp4 (2.0 KiB, video/mp4)", New("a.mp4", 2048, "video/mp4", nil).String())
	assert.Equal(t, "a (1 B, unknown type)", New("a", 1, "", nil).String())
}

func TestTypeByExtension(t *testing.T) {
	assert.Equal(t, "video/webm", TypeByExtension(".WEBM"))
	assert.Equal(t, "", TypeByExtension(".nope-not-a-type"))
}
