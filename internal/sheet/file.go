package sheet

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	appLog "choircal/internal/log"
)

// FileSource reads the export from a local CSV file.
type FileSource struct {
	id   string
	path string
}

func NewFileSource(id, path string) *FileSource {
	return &FileSource{id: id, path: path}
}

func (s *FileSource) ID() string { return s.id }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(s.path)
}

// Watch calls onChange after the file is written, created, renamed or
// removed. Editors often replace files, so the parent directory is watched.
// Bursts of events within debounce collapse into one call. Watch blocks
// until ctx is done.
func (s *FileSource) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	appLog.Debug("sheet file watch started", "id", s.id, "dir", dir, "file", file)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			appLog.Info("sheet file changed", "id", s.id, "path", s.path)
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("sheet file watch error", err, "id", s.id, "dir", dir)
		}
	}
}
