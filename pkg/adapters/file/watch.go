package file

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the bursts of events editors produce for one save.
const DefaultDebounce = 200 * time.Millisecond

// Watch reports the diagram types whose files change in the directory.
// The channel is closed when ctx is done or the watcher fails.
func (s *Source) Watch(ctx context.Context) (<-chan string, error) {
	return s.WatchDebounced(ctx, DefaultDebounce)
}

// WatchDebounced is Watch with a custom debounce interval.
func (s *Source) WatchDebounced(ctx context.Context, debounce time.Duration) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.Dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", s.Dir, err)
	}

	s.logger.Info("Watching diagrams", "dir", s.Dir)

	out := make(chan string, 16)
	go s.watchLoop(ctx, watcher, out, debounce)
	return out, nil
}

func (s *Source) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- string, debounce time.Duration) {
	defer close(out)
	defer func() { _ = watcher.Close() }()

	changed := map[string]struct{}{}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name, ok := diagramType(event.Name)
			if !ok {
				continue
			}
			changed[name] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Diagram watcher error", "dir", s.Dir, "err", err)

		case <-timer.C:
			names := make([]string, 0, len(changed))
			for name := range changed {
				names = append(names, name)
			}
			clear(changed)
			slices.Sort(names)

			for _, name := range names {
				s.logger.Debug("Diagram changed", "diagram_type", name)
				select {
				case out <- name:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
