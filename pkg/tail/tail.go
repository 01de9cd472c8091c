// Package tail follows a growing file, such as an event stream capture that
// is still being recorded, as an io.Reader.
package tail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Follower reads a file from the start and, instead of returning io.EOF at
// its current end, blocks until more bytes are written. It returns io.EOF
// once the file is removed or renamed and fully read, or when ctx is done.
type Follower struct {
	ctx     context.Context
	path    string
	file    *os.File
	watcher *fsnotify.Watcher
	gone    bool
}

// Follow opens path for following.
func Follow(ctx context.Context, path string) (*Follower, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	// Watch the directory: editors and recorders often replace the file.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		file.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	return &Follower{
		ctx:     ctx,
		path:    filepath.Clean(path),
		file:    file,
		watcher: watcher,
	}, nil
}

func (f *Follower) Read(p []byte) (int, error) {
	for {
		n, err := f.file.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if f.gone {
			return 0, io.EOF
		}

		if err := f.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the followed file changes.
func (f *Follower) wait() error {
	for {
		select {
		case <-f.ctx.Done():
			return io.EOF
		case event, ok := <-f.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Clean(event.Name) != f.path {
				continue
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				f.gone = true
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return nil
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return fmt.Errorf("file watcher error: %w", err)
		}
	}
}

// Close stops watching and closes the file.
func (f *Follower) Close() error {
	return errors.Join(f.watcher.Close(), f.file.Close())
}
