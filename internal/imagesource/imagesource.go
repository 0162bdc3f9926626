// Package imagesource provides frame acquisition for the monitoring pipeline.
package imagesource

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/herdwatch/herdwatch-go/internal/errors"
)

// Frame is a single captured still image.
type Frame struct {
	ID         string
	Data       []byte
	CapturedAt time.Time
	SourcePath string
}

// Decode parses the frame payload into an image. An undecodable payload
// is a per-frame failure, wrapped as ErrImageRead.
func (f *Frame) Decode() (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: %w", errors.ErrImageRead, err)).
			Component("imagesource").
			Category(errors.CategoryImageDecode).
			FrameContext(f.ID, f.SourcePath).
			Build()
	}
	return img, nil
}

// Source yields decodable still images on demand. A failed capture is
// signalled, never a silently blank frame.
type Source interface {
	Connect() error
	Capture(ctx context.Context) (*Frame, error)
	Close() error
	Name() string
}

// DirectorySource cycles through the image files found in a directory,
// standing in for a camera feed.
type DirectorySource struct {
	dir   string
	mu    sync.Mutex
	files []string
	next  int
}

// NewDirectorySource creates a source over the image files in dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// Connect scans the directory for image files.
func (s *DirectorySource) Connect() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return errors.New(fmt.Errorf("reading source directory: %w", err)).
			Component("imagesource").
			Category(errors.CategoryCapture).
			Context("dir", s.dir).
			Build()
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif":
			files = append(files, filepath.Join(s.dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return errors.Newf("no image files in %s", s.dir).
			Component("imagesource").
			Category(errors.CategoryCapture).
			Build()
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.next = 0
	s.mu.Unlock()
	return nil
}

// Capture reads the next file in round-robin order. The context deadline
// bounds the read; expiry yields ErrCaptureTimeout.
func (s *DirectorySource) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	if len(s.files) == 0 {
		s.mu.Unlock()
		return nil, errors.Newf("source not connected").
			Component("imagesource").
			Category(errors.CategoryCapture).
			Build()
	}
	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)
	s.mu.Unlock()

	type readResult struct {
		data []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		data, err := os.ReadFile(path)
		ch <- readResult{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(fmt.Errorf("%w: %w", errors.ErrCaptureTimeout, ctx.Err())).
			Component("imagesource").
			Category(errors.CategoryTimeout).
			Context("path", path).
			Build()
	case res := <-ch:
		if res.err != nil {
			return nil, errors.New(fmt.Errorf("reading frame file: %w", res.err)).
				Component("imagesource").
				Category(errors.CategoryCapture).
				Context("path", path).
				Build()
		}
		return &Frame{
			ID:         uuid.New().String(),
			Data:       res.data,
			CapturedAt: time.Now(),
			SourcePath: path,
		}, nil
	}
}

// FrameFromFile loads a single image file as a frame, for one-shot analysis.
func FrameFromFile(path string) (*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading frame file: %w", err)).
			Component("imagesource").
			Category(errors.CategoryCapture).
			Context("path", path).
			Build()
	}
	return &Frame{
		ID:         uuid.New().String(),
		Data:       data,
		CapturedAt: time.Now(),
		SourcePath: path,
	}, nil
}

// Close releases the file list.
func (s *DirectorySource) Close() error {
	s.mu.Lock()
	s.files = nil
	s.mu.Unlock()
	return nil
}

func (s *DirectorySource) Name() string {
	return "directory:" + s.dir
}

// StaticSource serves a fixed set of frames in order, then repeats. Used
// in tests and one-shot analysis.
type StaticSource struct {
	mu     sync.Mutex
	frames []*Frame
	next   int

	// CaptureErr, when set, is returned by every Capture call.
	CaptureErr error
}

// NewStaticSource creates a source over pre-built frames.
func NewStaticSource(frames ...*Frame) *StaticSource {
	return &StaticSource{frames: frames}
}

func (s *StaticSource) Connect() error { return nil }

func (s *StaticSource) Capture(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrCaptureTimeout, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CaptureErr != nil {
		return nil, s.CaptureErr
	}
	if len(s.frames) == 0 {
		return nil, errors.Newf("static source has no frames").
			Component("imagesource").
			Category(errors.CategoryCapture).
			Build()
	}
	frame := s.frames[s.next]
	s.next = (s.next + 1) % len(s.frames)
	return frame, nil
}

func (s *StaticSource) Close() error { return nil }

func (s *StaticSource) Name() string { return "static" }
