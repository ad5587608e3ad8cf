package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

// DefaultDebounce coalesces bursts of editor writes into one reload.
const DefaultDebounce = 250 * time.Millisecond

// Watch signals on the returned channel after any of files changes and
// debounce has passed without further changes. The parent directories are
// watched so editors that replace files by rename are seen. The channel is
// closed when ctx is done.
func Watch(ctx context.Context, files []string, debounce time.Duration, logger *slog.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}

	targets := make(map[string]bool, len(files))
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("resolve %q: %w", f, err)
		}
		targets[filepath.Clean(abs)] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watch config dir: %w", err)
		}
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer watcher.Close()

		var (
			timer   *time.Timer
			timerCh <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !targets[filepath.Clean(event.Name)] {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerCh = timer.C
				} else {
					if !timer.Stop() {
						<-timerCh
					}
					timer.Reset(debounce)
				}
			case <-timerCh:
				timer = nil
				timerCh = nil
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "err", err)
			}
		}
	}()
	return out, nil
}

// Diff returns a line diff of the two configs' YAML forms, or "" when they
// are equal.
func Diff(previous, current *Config) string {
	return cmp.Diff(yamlLines(previous), yamlLines(current))
}

func yamlLines(c *Config) []string {
	if c == nil {
		return nil
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return []string{"<unencodable: " + err.Error() + ">"}
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}
