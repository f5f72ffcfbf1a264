package intake

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a minimal 44-byte PCM header with no samples.
func writeWAV(t *testing.T, path string) {
	t.Helper()
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], 48000)
	binary.LittleEndian.PutUint32(header[28:32], 96000)
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	require.NoError(t, os.WriteFile(path, header, 0o644))
}

func TestSelectAcceptsWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.WAV")
	writeWAV(t, path)

	in := New()
	file, err := in.Select(path)
	require.NoError(t, err)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, "input.WAV", file.Name)
	assert.Equal(t, int64(44), file.Size)

	current, ok := in.Current()
	require.True(t, ok)
	assert.Equal(t, file, current)
}

func TestSelectRejectsOtherExtensionsAndKeepsSelection(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "input.wav")
	writeWAV(t, good)
	bad := filepath.Join(root, "song.mp3")
	require.NoError(t, os.WriteFile(bad, []byte("ID3"), 0o644))

	in := New()
	first, err := in.Select(good)
	require.NoError(t, err)

	for _, path := range []string{bad, filepath.Join(root, "input.wav.txt"), filepath.Join(root, "noext")} {
		_, err := in.Select(path)
		var invalid *InvalidFileError
		require.ErrorAs(t, err, &invalid, path)

		current, ok := in.Current()
		require.True(t, ok)
		assert.Equal(t, first, current, "selection must be unchanged after %s", path)
	}
}

func TestSelectRejectsMissingFile(t *testing.T) {
	in := New()
	_, err := in.Select(filepath.Join(t.TempDir(), "missing.wav"))

	var invalid *InvalidFileError
	require.ErrorAs(t, err, &invalid)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, ok := in.Current()
	assert.False(t, ok)
}

func TestSelectRejectsEmptyPathAndDirectory(t *testing.T) {
	in := New()
	_, err := in.Select("   ")
	assert.Error(t, err)

	dir := filepath.Join(t.TempDir(), "folder.wav")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	_, err = in.Select(dir)
	var invalid *InvalidFileError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "not a regular file", invalid.Reason)
}

func TestSelectRejectsNonWAVEContent(t *testing.T) {
	root := t.TempDir()
	short := filepath.Join(root, "short.wav")
	require.NoError(t, os.WriteFile(short, []byte("RIFF"), 0o644))
	fake := filepath.Join(root, "fake.wav")
	require.NoError(t, os.WriteFile(fake, []byte("RIFF\x00\x00\x00\x00AVI LIST"), 0o644))

	in := New()
	for _, path := range []string{short, fake} {
		_, err := in.Select(path)
		var invalid *InvalidFileError
		require.ErrorAs(t, err, &invalid, path)
	}
}

func TestSelectAcceptsRF64(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	require.NoError(t, os.WriteFile(path, []byte("RF64\xff\xff\xff\xffWAVEds64"), 0o644))

	_, err := New().Select(path)
	require.NoError(t, err)
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.wav")
	writeWAV(t, path)

	in := New()
	_, err := in.Select(path)
	require.NoError(t, err)
	in.Clear()

	_, ok := in.Current()
	assert.False(t, ok)
}
