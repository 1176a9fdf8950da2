package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// File keeps preferences in a flat YAML map and writes through on every
// change. Edits made by hand are picked up while the file is watched.
type File struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	data    map[string]any
	watcher *fsnotify.Watcher
}

func OpenFile(path string, log zerolog.Logger) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prefs directory: %w", err)
	}

	f := &File{
		path: path,
		log:  log.With().Str("prefs", path).Logger(),
		data: make(map[string]any),
	}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// reload holds f.mu across read and swap so a concurrent Put is never
// replaced by an older copy of the file.
func (f *File) reload() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read prefs: %w", err)
	}

	data := make(map[string]any)
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse prefs: %w", err)
	}

	f.data = data
	return nil
}

// save must be called with f.mu held.
func (f *File) save() error {
	out, err := yaml.Marshal(f.data)
	if err != nil {
		return fmt.Errorf("failed to encode prefs: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write prefs: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *File) Lookup(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *File) Put(key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return f.save()
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.save()
}

// Watch reloads the map whenever the file changes on disk.
func (f *File) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		return err
	}

	f.mu.Lock()
	f.watcher = watcher
	f.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != f.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := f.reload(); err != nil {
					f.log.Warn().Err(err).Msg("prefs reload failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.log.Warn().Err(err).Msg("prefs watcher error")
			}
		}
	}()
	return nil
}

func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watcher == nil {
		return nil
	}
	err := f.watcher.Close()
	f.watcher = nil
	return err
}
