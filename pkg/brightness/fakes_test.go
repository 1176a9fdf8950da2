package brightness

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

type memBackend struct {
	mu   sync.Mutex
	data map[string]any
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]any)}
}

func (m *memBackend) Lookup(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memBackend) Put(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// fakeGamma keeps one live table per display and logs every write.
type fakeGamma struct {
	mu       sync.Mutex
	tables   map[DisplayID]GammaTable
	writes   []gammaWrite
	failRead bool
	failWrit bool
}

type gammaWrite struct {
	id   DisplayID
	peak float64
}

func newFakeGamma() *fakeGamma {
	return &fakeGamma{tables: make(map[DisplayID]GammaTable)}
}

func (f *fakeGamma) ReadGamma(id DisplayID) (GammaTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead {
		return GammaTable{}, errors.New("read failed")
	}
	t, ok := f.tables[id]
	if !ok {
		return LinearGammaTable(GammaSamples), nil
	}
	return t, nil
}

func (f *fakeGamma) WriteGamma(id DisplayID, t GammaTable) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrit {
		return errors.New("write failed")
	}
	f.tables[id] = t
	f.writes = append(f.writes, gammaWrite{id: id, peak: t.Peak()})
	return nil
}

func (f *fakeGamma) log(id DisplayID) []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var peaks []float64
	for _, w := range f.writes {
		if w.id == id {
			peaks = append(peaks, w.peak)
		}
	}
	return peaks
}

type fakeTransport struct {
	mu     sync.Mutex
	values map[Command]int
	fail   bool
}

func (f *fakeTransport) ReadRegister(cmd Command) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return 0, errors.New("no ack")
	}
	return f.values[cmd], nil
}

func (f *fakeTransport) WriteRegister(cmd Command, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("no ack")
	}
	if f.values == nil {
		f.values = make(map[Command]int)
	}
	f.values[cmd] = value
	return nil
}

type osdCall struct {
	id         DisplayID
	cmd        Command
	value, max float64
}

type fakeOSD struct {
	mu    sync.Mutex
	calls []osdCall
}

func (f *fakeOSD) Show(id DisplayID, cmd Command, value, max float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, osdCall{id: id, cmd: cmd, value: value, max: max})
}

type fakeSlider struct {
	value float64
	set   bool
}

func (f *fakeSlider) SetValue(v float64) {
	f.value, f.set = v, true
}

// fakeDirectory models mirroring as member -> source.
type fakeDirectory struct {
	displays []*Display
	mirrors  map[DisplayID]DisplayID
}

func (f *fakeDirectory) Displays() []*Display {
	return f.displays
}

func (f *fakeDirectory) NonVirtualDisplays() []*Display {
	var out []*Display
	for _, d := range f.displays {
		if !d.IsVirtual() {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeDirectory) InMirrorSet(id DisplayID) bool {
	if _, ok := f.mirrors[id]; ok {
		return true
	}
	for _, src := range f.mirrors {
		if src == id {
			return true
		}
	}
	return false
}

func (f *fakeDirectory) MirrorOf(id DisplayID) DisplayID {
	return f.mirrors[id]
}

type fixture struct {
	backend *memBackend
	store   *Store
	device  *fakeGamma
	engine  *GammaEngine
	dir     *fakeDirectory
	osd     *fakeOSD
	ctrl    *Controller
}

func newFixture() *fixture {
	f := &fixture{
		backend: newMemBackend(),
		device:  newFakeGamma(),
		dir:     &fakeDirectory{mirrors: make(map[DisplayID]DisplayID)},
		osd:     &fakeOSD{},
	}
	f.store = NewStore(f.backend)
	f.engine = NewGammaEngine(f.device, f.store, &Reconfiguration{}, GammaOptions{
		StepDelay: 10_000, // 10µs keeps ramps short
		Logger:    zerolog.Nop(),
	})
	f.ctrl = NewController(f.store, f.engine, NewMirrorResolver(f.dir, f.store), f.osd, ControllerOptions{
		Logger: zerolog.Nop(),
	})
	return f
}

func (f *fixture) add(info Info) *Display {
	d, err := f.engine.NewDisplay(info)
	if err != nil {
		panic(err)
	}
	f.dir.displays = append(f.dir.displays, d)
	return d
}
