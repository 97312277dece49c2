package zipper

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBundlePlain(t *testing.T) {
	dir := t.TempDir()
	f1 := writeTempFile(t, dir, "users.json", `{"data":[],"meta":{}}`)
	dest := filepath.Join(dir, "out.zip")

	require.NoError(t, Bundle(dest, []string{f1}, ""))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "users.json", zr.File[0].Name)
}

func TestBundleRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.zip")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0o644))

	err := Bundle(dest, nil, "")
	assert.Error(t, err)
}

func TestBundleEncryptedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	content := `{"data":[{"name":"alice"}],"meta":{"count":1}}`
	f1 := writeTempFile(t, dir, "users.json", content)
	dest := filepath.Join(dir, "secure.zip")

	require.NoError(t, Bundle(dest, []string{f1}, "correct-horse"))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "users.json.enc", zr.File[0].Name)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	sealed, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()

	plain, err := Open("correct-horse", sealed)
	require.NoError(t, err)
	assert.Equal(t, content, string(plain))

	_, err = Open("wrong-password", sealed)
	assert.Error(t, err)
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "20240102150405_BloodHoundResults.zip", DefaultName("20240102150405", "", false))
	assert.Equal(t, "20240102150405_BloodHoundLoopResults.zip", DefaultName("20240102150405", "", true))
	assert.Equal(t, "20240102150405_acme_BloodHoundLoopResults.zip", DefaultName("20240102150405", "acme", true))
}
