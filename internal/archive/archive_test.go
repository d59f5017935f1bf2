package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCreateAndExtractRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := []Entry{
		{Path: writeFile(t, dir, "notes.txt", "first file"), Name: "notes.txt"},
		{Path: writeFile(t, dir, "todo.txt", "second file"), Name: "todo.txt"},
	}

	zipPath := filepath.Join(dir, "out.zip")
	require.NoError(t, CreateZip(entries, zipPath))

	outDir := filepath.Join(dir, "extracted")
	require.NoError(t, os.Mkdir(outDir, 0755))

	extracted, err := ExtractZip(zipPath, outDir)
	require.NoError(t, err)
	require.Len(t, extracted, 2)

	data, err := os.ReadFile(filepath.Join(outDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first file", string(data))
}

func TestCreateZipRejectsEmptyInput(t *testing.T) {
	err := CreateZip(nil, filepath.Join(t.TempDir(), "out.zip"))
	require.Error(t, err)
}

func TestExtractZipFlattensDirectories(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "nested.zip")

	out, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	f, err := w.Create("deep/nested/dir/file.txt")
	require.NoError(t, err)
	_, err = f.Write([]byte("buried"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	outDir := filepath.Join(dir, "extracted")
	require.NoError(t, os.Mkdir(outDir, 0755))

	extracted, err := ExtractZip(zipPath, outDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, "file.txt", extracted[0].Name)

	data, err := os.ReadFile(filepath.Join(outDir, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "buried", string(data))
}

func TestExtractZipSkipsMacOSMetadata(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "mac.zip")

	out, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	for name, content := range map[string]string{
		"__MACOSX/._photo.jpg": "resource fork",
		"photo.jpg":            "actual image",
	} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	outDir := filepath.Join(dir, "extracted")
	require.NoError(t, os.Mkdir(outDir, 0755))

	extracted, err := ExtractZip(zipPath, outDir)
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, "photo.jpg", extracted[0].Name)
}

func TestExtractZipRejectsEmptyArchive(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "empty.zip")

	out, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(out)
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	_, err = ExtractZip(zipPath, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")
}

func TestExtractZipRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	badPath := writeFile(t, dir, "bad.zip", "this is not a zip")

	_, err := ExtractZip(badPath, dir)
	require.Error(t, err)
}
