package prefs

import (
	"fmt"
	"io"
	"sync"

	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/rs/zerolog"
)

type Memory struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]any)}
}

func (m *Memory) Lookup(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) Put(key string, value any) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}

type Backend interface {
	brightness.Backend
	io.Closer
}

// Open returns the backend named by kind: "file", "sqlite" or "memory".
func Open(kind, path string, log zerolog.Logger) (Backend, error) {
	switch kind {
	case "", "file":
		f, err := OpenFile(path, log)
		if err != nil {
			return nil, err
		}
		if err := f.Watch(); err != nil {
			log.Warn().Err(err).Msg("prefs file will not be watched")
		}
		return f, nil
	case "sqlite":
		db, err := OpenSQLite(path, log)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown prefs backend %q", kind)
}
