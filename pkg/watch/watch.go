// Package watch re-runs a callback whenever an edit table file is saved.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/fsnotify.v1"
)

// DefaultDebounce coalesces the burst of events an editor emits on save.
const DefaultDebounce = 200 * time.Millisecond

// TableWatcher watches one file. The containing directory is watched so
// that editors replacing the file by rename are still noticed.
type TableWatcher struct {
	path     string
	debounce time.Duration
	onChange func(path string)
	onError  func(err error)

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewTableWatcher creates a watcher calling onChange after each settled
// change of path. A non-positive debounce selects DefaultDebounce.
func NewTableWatcher(path string, debounce time.Duration, onChange func(path string)) *TableWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &TableWatcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
	}
}

// SetOnError sets a callback for watcher errors. They are dropped otherwise.
func (tableWatcher *TableWatcher) SetOnError(fn func(err error)) {
	tableWatcher.onError = fn
}

// Watch starts watching in the background.
func (tableWatcher *TableWatcher) Watch() error {
	if tableWatcher.path == "" || tableWatcher.path == "." {
		return fmt.Errorf("no table file configured for watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	dir := filepath.Dir(tableWatcher.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}

	tableWatcher.watcher = watcher
	tableWatcher.stopChan = make(chan struct{})
	tableWatcher.done = make(chan struct{})

	go tableWatcher.watchLoop()
	return nil
}

// Run watches until ctx is cancelled.
func (tableWatcher *TableWatcher) Run(ctx context.Context) error {
	if err := tableWatcher.Watch(); err != nil {
		return err
	}
	<-ctx.Done()
	tableWatcher.Stop()
	return nil
}

// Stop ends watching and waits for the loop to exit. It is safe to call
// more than once.
func (tableWatcher *TableWatcher) Stop() {
	if tableWatcher.stopChan == nil {
		return
	}
	tableWatcher.stopOnce.Do(func() {
		close(tableWatcher.stopChan)
		<-tableWatcher.done
		tableWatcher.watcher.Close()
	})
}

func (tableWatcher *TableWatcher) watchLoop() {
	defer close(tableWatcher.done)

	var settle *time.Timer
	var settled <-chan time.Time

	for {
		select {
		case <-tableWatcher.stopChan:
			if settle != nil {
				settle.Stop()
			}
			return

		case event, ok := <-tableWatcher.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != tableWatcher.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if settle == nil {
				settle = time.NewTimer(tableWatcher.debounce)
			} else {
				if !settle.Stop() {
					select {
					case <-settle.C:
					default:
					}
				}
				settle.Reset(tableWatcher.debounce)
			}
			settled = settle.C

		case <-settled:
			settled = nil
			tableWatcher.onChange(tableWatcher.path)

		case err, ok := <-tableWatcher.watcher.Errors:
			if !ok {
				return
			}
			if tableWatcher.onError != nil {
				tableWatcher.onError(err)
			}
		}
	}
}
