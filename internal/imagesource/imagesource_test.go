package imagesource

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herdwatch/herdwatch-go/internal/errors"
)

func writeTestImage(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.Gray{Y: 128})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestDirectorySourceRoundRobin(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "b.png"))
	writeTestImage(t, filepath.Join(dir, "a.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	source := NewDirectorySource(dir)
	require.NoError(t, source.Connect())

	var paths []string
	for i := 0; i < 3; i++ {
		frame, err := source.Capture(context.Background())
		require.NoError(t, err)
		assert.NotEmpty(t, frame.ID)
		assert.False(t, frame.CapturedAt.IsZero())
		paths = append(paths, filepath.Base(frame.SourcePath))
	}

	// sorted order, wrapping back to the first file
	assert.Equal(t, []string{"a.png", "b.png", "a.png"}, paths)
}

func TestDirectorySourceConnectErrors(t *testing.T) {
	source := NewDirectorySource("/nonexistent/path")
	assert.Error(t, source.Connect())

	empty := NewDirectorySource(t.TempDir())
	assert.Error(t, empty.Connect())
}

func TestDirectorySourceCaptureBeforeConnect(t *testing.T) {
	source := NewDirectorySource(t.TempDir())
	_, err := source.Capture(context.Background())
	assert.Error(t, err)
}

func TestCaptureCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"))

	source := NewDirectorySource(dir)
	require.NoError(t, source.Connect())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := source.Capture(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCaptureTimeout)
}

func TestFrameDecode(t *testing.T) {
	dir := t.TempDir()
	writeTestImage(t, filepath.Join(dir, "a.png"))

	frame, err := FrameFromFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	img, err := frame.Decode()
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	bad := &Frame{ID: "x", Data: []byte("not an image")}
	_, err = bad.Decode()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrImageRead)
}

func TestStaticSource(t *testing.T) {
	frames := []*Frame{{ID: "1"}, {ID: "2"}}
	source := NewStaticSource(frames...)
	require.NoError(t, source.Connect())

	first, err := source.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)

	second, err := source.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2", second.ID)
}
