package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemorySaveAndGet(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	uri, err := m.Save(context.Background(), "combined/a.mp4", "video/mp4", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)
	require.Equal(t, "memory://combined/a.mp4", uri)

	content, ok := m.Get("combined/a.mp4")
	require.True(t, ok)
	require.Equal(t, []byte("payload"), content)
}

func TestLocalSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewLocal(dir)
	require.NoError(t, err)

	uri, err := store.Save(context.Background(), "combined/a.mp4", "video/mp4", strings.NewReader("payload"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	content, err := os.ReadFile(filepath.Join(dir, "combined", "a.mp4"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(content))
}

func TestLocalSaveRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "../escape.mp4", "video/mp4", strings.NewReader("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "traversal")
}

func TestNewLocalRequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewLocal("  ")
	require.Error(t, err)
}

func TestNoopSaveDrainsReader(t *testing.T) {
	t.Parallel()

	r := strings.NewReader("payload")
	uri, err := Noop{}.Save(context.Background(), "a.mp4", "video/mp4", r)
	require.NoError(t, err)
	require.Equal(t, "noop://a.mp4", uri)
	require.Zero(t, r.Len())
}
