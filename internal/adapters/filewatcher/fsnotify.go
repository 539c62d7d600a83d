// Package filewatcher watches an inbox directory for contract files.
package filewatcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// DefaultExtensions are the file types reported when none are configured.
var DefaultExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".md"}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify.
//
// Events for one path are held until the path has been quiet for the settle
// period, so a file copied in with many writes is reported once. A write
// that follows a create is still reported as a create.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]bool
	settle     time.Duration
	logger     *zap.Logger

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

type pendingEvent struct {
	op  ports.FileOperation
	due time.Time
}

// NewFSNotifyWatcher creates a watcher for the given extensions. A settle
// period of zero reports every event immediately.
func NewFSNotifyWatcher(extensions []string, settle time.Duration, logger *zap.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &FSNotifyWatcher{
		watcher:    w,
		extensions: exts,
		settle:     settle,
		logger:     logger,
		done:       make(chan struct{}),
	}, nil
}

// Watch starts monitoring dir. The returned channel is closed when ctx ends
// or the watcher is stopped.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	w.wg.Add(1)
	go w.loop(ctx, events)

	w.logger.Info("watching inbox", zap.String("dir", dir), zap.Duration("settle", w.settle))
	return events, nil
}

func (w *FSNotifyWatcher) loop(ctx context.Context, out chan<- ports.FileEvent) {
	defer w.wg.Done()
	defer close(out)

	pending := make(map[string]pendingEvent)
	var tick <-chan time.Time
	if w.settle > 0 {
		ticker := time.NewTicker(tickInterval(w.settle))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isWatchedExtension(event.Name) {
				continue
			}
			op, ok := translate(event.Op)
			if !ok {
				continue
			}
			if w.settle <= 0 {
				if !w.send(ctx, out, ports.FileEvent{Path: event.Name, Operation: op}) {
					return
				}
				continue
			}
			if prev, seen := pending[event.Name]; seen && prev.op == ports.FileCreated && op == ports.FileModified {
				op = ports.FileCreated
			}
			pending[event.Name] = pendingEvent{op: op, due: time.Now().Add(w.settle)}
		case now := <-tick:
			for path, p := range pending {
				if now.Before(p.due) {
					continue
				}
				delete(pending, path)
				if !w.send(ctx, out, ports.FileEvent{Path: path, Operation: p.op}) {
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *FSNotifyWatcher) send(ctx context.Context, out chan<- ports.FileEvent, ev ports.FileEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-w.done:
		return false
	}
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *FSNotifyWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *FSNotifyWatcher) isWatchedExtension(path string) bool {
	return w.extensions[strings.ToLower(filepath.Ext(path))]
}

// translate maps fsnotify operations onto file operations. A rename moves
// the file away from the watched name, so it counts as a delete.
func translate(op fsnotify.Op) (ports.FileOperation, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return ports.FileCreated, true
	case op.Has(fsnotify.Write):
		return ports.FileModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	default:
		return 0, false
	}
}

func tickInterval(settle time.Duration) time.Duration {
	if d := settle / 4; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}
