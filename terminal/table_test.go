package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleListing = "drwxr-xr-x 1 ftp ftp 0 Mar 04 10:15 media\r\n" +
	"-rw-r--r-- 1 ftp ftp 2048 Mar 04 10:16 flight log.bin\r\n" +
	"lrwxrwxrwx 1 ftp ftp 7 Jan 12 2023 latest -> media\r\n" +
	"total 3\r\n" +
	"drwxr-xr-x 1 ftp ftp 0 Mar 04 10:15 ..\r\n\x00"

func TestParseListing(t *testing.T) {
	files := ParseListing([]byte(sampleListing))
	require.Len(t, files, 3)

	assert.Equal(t, "media", files[0].Name)
	assert.True(t, files[0].IsDir)

	assert.Equal(t, "flight log.bin", files[1].Name)
	assert.Equal(t, uint64(2048), files[1].Size)
	assert.Equal(t, "Mar 04 10:16", files[1].Modified.Format("Jan 02 15:04"))

	assert.Equal(t, "latest", files[2].Name)
	assert.True(t, files[2].IsSymlink)
	assert.Equal(t, 2023, files[2].Modified.Year())
}

func TestParseListingEmpty(t *testing.T) {
	assert.Empty(t, ParseListing([]byte{0}))
	assert.Empty(t, ParseListing(nil))
}

func TestFormatRemoteListing(t *testing.T) {
	var out bytes.Buffer
	tf := NewTableFormatter(&out)
	require.NoError(t, tf.FormatRemoteListing([]byte(sampleListing)))

	text := out.String()
	assert.Contains(t, text, "media/")
	assert.Contains(t, text, "flight log.bin")
	assert.Contains(t, text, "BIN")
	assert.Contains(t, text, "2.0 KB")
	assert.Contains(t, text, "latest@")
}

func TestFormatEmptyListing(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewTableFormatter(&out).FormatRemoteListing([]byte{0}))
	assert.Equal(t, "Directory is empty\n", out.String())
}

func TestFormatLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	var out bytes.Buffer
	require.NoError(t, NewTableFormatter(&out).FormatLocalDirectory(dir))
	assert.Contains(t, out.String(), "photo.jpg")
	assert.Contains(t, out.String(), "JPG")
	assert.Contains(t, out.String(), "sub/")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "3.0 MB", formatSize(3<<20))
}
