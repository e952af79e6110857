package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors the .env file and invokes onChange with a freshly loaded
// Config whenever it is written. Used to adjust the log level at runtime
// without a restart. The returned stop function closes the watcher.
func Watch(onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file itself: editors replace
	// .env atomically, which would otherwise drop the watch.
	if err := watcher.Add("."); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != ".env" {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				onChange(Load())
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Close, nil
}
