package safe

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "cl.xml")
	require.NoError(t, os.WriteFile(regular, []byte("<registry/>"), 0o644))
	link := filepath.Join(dir, "link.xml")
	require.NoError(t, os.Symlink(regular, link))

	tests := []struct {
		name    string
		path    string
		opts    *ReadOptions
		want    string
		wantErr string
	}{
		{name: "regular file", path: regular, want: "<registry/>"},
		{name: "symlink rejected by default", path: link, wantErr: "symlink"},
		{name: "symlink allowed", path: link, opts: &ReadOptions{AllowSymlinks: true}, want: "<registry/>"},
		{name: "too large", path: regular, opts: &ReadOptions{MaxSize: 4}, wantErr: "exceeds maximum"},
		{name: "directory", path: dir, wantErr: "not a regular file"},
		{name: "missing", path: filepath.Join(dir, "missing.xml"), wantErr: "no such file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFile(tt.path, tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestWriteFile(t *testing.T) {
	t.Run("writes and sets permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "model.yaml")
		require.NoError(t, WriteFile(path, 0o600, func(w io.Writer) error {
			_, err := io.WriteString(w, "provider: test\n")
			return err
		}))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "provider: test\n", string(got))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("failed write keeps the previous content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "model.yaml")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

		boom := errors.New("encode failed")
		err := WriteFile(path, 0, func(w io.Writer) error {
			_, _ = io.WriteString(w, "partial")
			return boom
		})
		require.ErrorIs(t, err, boom)

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "old", string(got))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file is removed")
	})
}
