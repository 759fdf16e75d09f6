package recorder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

// Roster supplies the accounts to watch. It is re-read every poll cycle.
type Roster interface {
	Accounts(ctx context.Context) ([]string, error)
}

// FileRoster reads one account per line from a text file.
type FileRoster struct {
	Path string
	Log  *slog.Logger
}

// Accounts implements Roster. A missing file yields an empty roster.
func (r FileRoster) Accounts(_ context.Context) ([]string, error) {
	f, err := os.Open(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		if r.Log != nil {
			r.Log.Warn("roster file not found", slog.String("path", r.Path))
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer f.Close()
	return ParseRoster(f)
}

// ParseRoster trims lines, skips blanks and # comments, strips a leading @
// and drops duplicates keeping the first occurrence.
func ParseRoster(r io.Reader) ([]string, error) {
	var accounts []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "@")
		if line != "" {
			accounts = append(accounts, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}
	return lo.Uniq(accounts), nil
}

// WatchRoster signals on the returned channel whenever the roster file is
// written, created or renamed. The channel is closed when ctx is done or
// the watcher fails.
func WatchRoster(ctx context.Context, path string, log *slog.Logger) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating roster watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer close(changed)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				log.Debug("roster changed", slog.String("path", abs), slog.String("op", ev.Op.String()))
				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("roster watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return changed, nil
}
