package fsSource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSSourcePollDataEmitsEOF(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "doc.txt"), []byte("hello world"), 0o600,
	))

	src := New(Config{RootDir: dir})
	ctx := context.Background()

	require.NoError(t, src.CheckConnectivity(ctx))

	ch, err := src.PollData(ctx)
	require.NoError(t, err)

	var sawEOF bool
	var collected []byte
	for chunk := range ch {
		collected = append(collected, chunk.Data...)
		if chunk.EOF {
			sawEOF = true
		}
	}

	require.True(t, sawEOF)
	require.Equal(t, "hello world", string(collected))
}

func TestFSSourceGetSliceAndGetAll(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "doc.txt"), []byte("0123456789"), 0o600,
	))

	src := New(Config{RootDir: dir})
	ctx := context.Background()

	all, err := src.GetAll(ctx, "doc.txt")
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(all))

	slice, err := src.GetSlice(ctx, "doc.txt", 2, 4)
	require.NoError(t, err)
	require.Equal(t, "2345", string(slice))

	n, err := src.FileNumBytes(ctx, "doc.txt")
	require.NoError(t, err)
	require.Equal(t, int64(10), n)
}
