package brightness

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	GammaSamples = 256

	DefaultStepSize  = 0.005
	DefaultStepDelay = time.Millisecond

	queueSize = 64
)

var ErrNoGammaTable = errors.New("gamma table unavailable")

// GammaTable holds one transfer function, one slice per channel.
type GammaTable struct {
	Red   []float64
	Green []float64
	Blue  []float64
}

// LinearGammaTable returns the identity ramp with n samples per channel.
func LinearGammaTable(n int) GammaTable {
	t := GammaTable{
		Red:   make([]float64, n),
		Green: make([]float64, n),
		Blue:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		v := 0.0
		if n > 1 {
			v = float64(i) / float64(n-1)
		}
		t.Red[i], t.Green[i], t.Blue[i] = v, v, v
	}
	return t
}

func (t GammaTable) SampleCount() int {
	return len(t.Red)
}

// Peak is the largest sample across all three channels.
func (t GammaTable) Peak() float64 {
	peak := 0.0
	for _, ch := range [][]float64{t.Red, t.Green, t.Blue} {
		for _, v := range ch {
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}

func (t GammaTable) Scale(f float64) GammaTable {
	scale := func(in []float64) []float64 {
		out := make([]float64, len(in))
		for i, v := range in {
			out[i] = v * f
		}
		return out
	}
	return GammaTable{Red: scale(t.Red), Green: scale(t.Green), Blue: scale(t.Blue)}
}

// Reconfiguration is raised while the display topology is changing. Smooth
// transitions stop writing as soon as it is active.
type Reconfiguration struct {
	depth atomic.Int32
}

func (r *Reconfiguration) Begin() {
	r.depth.Add(1)
}

func (r *Reconfiguration) End() {
	if r.depth.Add(-1) < 0 {
		r.depth.Store(0)
	}
}

func (r *Reconfiguration) Active() bool {
	return r != nil && r.depth.Load() > 0
}

type GammaOptions struct {
	// LowThreshold is the software brightness floor. 0 allows a black screen.
	LowThreshold float64
	StepSize     float64
	StepDelay    time.Duration
	Logger       zerolog.Logger
}

type transition struct {
	id       uuid.UUID
	display  *Display
	from, to float64
}

type worker struct {
	queue chan transition
}

// GammaEngine renders software brightness onto display transfer tables.
type GammaEngine struct {
	device   GammaDevice
	store    *Store
	reconfig *Reconfiguration
	log      zerolog.Logger

	stepSize  float64
	stepDelay time.Duration

	mu       sync.Mutex
	low      float64
	workers  map[DisplayID]*worker
	defaults map[string]GammaTable
	closed   bool
	pending  int
	idle     *sync.Cond
}

func NewGammaEngine(device GammaDevice, store *Store, reconfig *Reconfiguration, opts GammaOptions) *GammaEngine {
	if opts.StepSize <= 0 {
		opts.StepSize = DefaultStepSize
	}
	if opts.StepDelay <= 0 {
		opts.StepDelay = DefaultStepDelay
	}
	if reconfig == nil {
		reconfig = &Reconfiguration{}
	}
	e := &GammaEngine{
		device:    device,
		store:     store,
		reconfig:  reconfig,
		log:       opts.Logger.With().Str("component", "gamma").Logger(),
		stepSize:  opts.StepSize,
		stepDelay: opts.StepDelay,
		workers:   make(map[DisplayID]*worker),
		defaults:  make(map[string]GammaTable),
	}
	e.idle = sync.NewCond(&e.mu)
	e.SetLowThreshold(opts.LowThreshold)
	return e
}

func (e *GammaEngine) Reconfiguration() *Reconfiguration {
	return e.reconfig
}

func (e *GammaEngine) SetLowThreshold(low float64) {
	e.mu.Lock()
	e.low = clamp01(low)
	if e.low >= 1 {
		e.low = 0
	}
	e.mu.Unlock()
}

func (e *GammaEngine) lowThreshold() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.low
}

// NewDisplay builds a Display and snapshots its default gamma table before
// anything else can touch it. A display seen before keeps its first snapshot,
// since the live table may still carry software brightness.
func (e *GammaEngine) NewDisplay(info Info) (*Display, error) {
	d := newDisplay(info)
	if d.Kind == Virtual {
		return d, nil
	}

	e.mu.Lock()
	table, ok := e.defaults[d.Key()]
	e.mu.Unlock()
	if ok {
		d.defaultGamma = table
		d.defaultPeak = table.Peak()
		return d, nil
	}

	if err := e.CaptureDefault(d); err != nil {
		return d, err
	}
	return d, nil
}

func (e *GammaEngine) CaptureDefault(d *Display) error {
	table, err := e.device.ReadGamma(d.ID)
	if err != nil {
		return err
	}
	if table.SampleCount() == 0 {
		return ErrNoGammaTable
	}
	d.defaultGamma = table
	d.defaultPeak = table.Peak()

	e.mu.Lock()
	e.defaults[d.Key()] = table
	e.mu.Unlock()

	e.log.Debug().
		Str("display", d.Key()).
		Int("samples", table.SampleCount()).
		Float64("peak", d.defaultPeak).
		Msg("captured default gamma")
	return nil
}

func (e *GammaEngine) transform(v float64) float64 {
	low := e.lowThreshold()
	return v*(1-low) + low
}

func (e *GammaEngine) inverse(v float64) float64 {
	low := e.lowThreshold()
	return (v - low) / (1 - low)
}

func (e *GammaEngine) write(d *Display, factor float64) error {
	return e.device.WriteGamma(d.ID, d.defaultGamma.Scale(factor))
}

// Apply sets the software brightness of d. Smooth changes are queued on the
// display's worker and Apply returns right away.
func (e *GammaEngine) Apply(d *Display, value float64, smooth bool) bool {
	if d.Kind == Virtual || d.defaultGamma.SampleCount() == 0 {
		return false
	}
	value = clamp01(value)

	var current float64
	if e.store.HasSoftwareBrightness(d) {
		current = e.store.SoftwareBrightness(d)
	} else {
		current = e.ReadCurrent(d)
	}
	from, to := e.transform(current), e.transform(value)
	if !smooth {
		if err := e.write(d, to); err != nil {
			e.log.Error().Err(err).Str("display", d.Key()).Msg("gamma write failed")
			return false
		}
	} else if !e.submit(transition{id: uuid.New(), display: d, from: from, to: to}) {
		return false
	}

	if err := e.store.SetSoftwareBrightness(d, value); err != nil {
		e.log.Warn().Err(err).Str("display", d.Key()).Msg("failed to persist software brightness")
	}
	return true
}

func (e *GammaEngine) submit(t transition) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}

	w, ok := e.workers[t.display.ID]
	if !ok {
		w = &worker{queue: make(chan transition, queueSize)}
		e.workers[t.display.ID] = w
		go e.run(w)
	}

	select {
	case w.queue <- t:
		e.pending++
		return true
	default:
		e.log.Warn().Str("display", t.display.Key()).Msg("transition queue full, dropping request")
		return false
	}
}

func (e *GammaEngine) run(w *worker) {
	for t := range w.queue {
		e.ramp(t)
		e.mu.Lock()
		e.pending--
		if e.pending == 0 {
			e.idle.Broadcast()
		}
		e.mu.Unlock()
	}
}

func (e *GammaEngine) ramp(t transition) {
	d := t.display
	d.gate.Lock()
	defer d.gate.Unlock()

	log := e.log.With().Str("transition", t.id.String()).Str("display", d.Key()).Logger()
	log.Debug().Float64("from", t.from).Float64("to", t.to).Msg("smooth transition started")

	step := e.stepSize
	if t.from > t.to {
		step = -step
	}
	for v := t.from; (step > 0 && v < t.to) || (step < 0 && v > t.to); v += step {
		if e.reconfig.Active() {
			log.Debug().Msg("reconfiguration in progress, transition aborted")
			return
		}
		if err := e.write(d, v); err != nil {
			log.Error().Err(err).Msg("gamma write failed")
			return
		}
		time.Sleep(e.stepDelay)
	}

	if e.reconfig.Active() {
		log.Debug().Msg("reconfiguration in progress, transition aborted")
		return
	}
	if err := e.write(d, t.to); err != nil {
		log.Error().Err(err).Msg("gamma write failed")
		return
	}
	log.Debug().Msg("smooth transition finished")
}

// ReadCurrent recovers the applied software brightness from the live table.
// Any read failure reports full brightness.
func (e *GammaEngine) ReadCurrent(d *Display) float64 {
	if d.Kind == Virtual || d.defaultPeak <= 0 {
		return 1
	}
	table, err := e.device.ReadGamma(d.ID)
	if err != nil || table.SampleCount() == 0 {
		return 1
	}
	ratio := table.Peak() / d.defaultPeak
	return math.Round(e.inverse(ratio)*GammaSamples) / GammaSamples
}

func (e *GammaEngine) Reset(d *Display) bool {
	return e.Apply(d, 1, false)
}

func (e *GammaEngine) IsNonDefault(d *Display) bool {
	if d.Kind == Virtual {
		return false
	}
	return e.ReadCurrent(d) < 1
}

// Wait blocks until every queued transition has finished or aborted.
func (e *GammaEngine) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.pending > 0 {
		e.idle.Wait()
	}
}

func (e *GammaEngine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for id, w := range e.workers {
		close(w.queue)
		delete(e.workers, id)
	}
	e.mu.Unlock()
	e.Wait()
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
