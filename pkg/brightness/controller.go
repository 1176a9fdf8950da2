package brightness

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
)

const (
	coarseStep = 1.0 / 16
	osdScale   = 64
)

// ComputeStep returns the next brightness level. Values snap to 1/16 (or
// 1/64 for fine steps) with a quarter-step offset so a level sitting exactly
// on a boundary still moves.
func ComputeStep(current float64, up, fine bool) float64 {
	step := coarseStep
	if !up {
		step = -step
	}
	delta := step / 4
	if fine {
		step = delta
	}
	return clamp01(math.Ceil((current+delta)/step) * step)
}

type ControllerOptions struct {
	// Smooth makes software steps ramp instead of jumping.
	Smooth bool
	Logger zerolog.Logger
}

// Controller is the single entry point for brightness changes.
type Controller struct {
	store   *Store
	gamma   *GammaEngine
	mirrors *MirrorResolver
	osd     OSD
	log     zerolog.Logger

	mu      sync.RWMutex
	smooth  bool
	sliders map[DisplayID]Slider
}

func NewController(store *Store, gamma *GammaEngine, mirrors *MirrorResolver, osd OSD, opts ControllerOptions) *Controller {
	return &Controller{
		store:   store,
		gamma:   gamma,
		mirrors: mirrors,
		osd:     osd,
		log:     opts.Logger.With().Str("component", "controller").Logger(),
		smooth:  opts.Smooth,
		sliders: make(map[DisplayID]Slider),
	}
}

func (c *Controller) Store() *Store {
	return c.store
}

func (c *Controller) Gamma() *GammaEngine {
	return c.gamma
}

func (c *Controller) SetSmooth(smooth bool) {
	c.mu.Lock()
	c.smooth = smooth
	c.mu.Unlock()
}

func (c *Controller) SetOSD(osd OSD) {
	c.mu.Lock()
	c.osd = osd
	c.mu.Unlock()
}

func (c *Controller) Bind(id DisplayID, s Slider) {
	c.mu.Lock()
	c.sliders[id] = s
	c.mu.Unlock()
}

func (c *Controller) Unbind(id DisplayID) {
	c.mu.Lock()
	delete(c.sliders, id)
	c.mu.Unlock()
}

// UsesHardware reports whether d is driven through its Transport.
func (c *Controller) UsesHardware(d *Display) bool {
	return !c.mirrors.UsesSoftware(d) && d.Kind == HardwareControllable
}

// Step moves brightness one step up or down. Feedback is only emitted when
// the change was applied.
func (c *Controller) Step(d *Display, up, fine bool) bool {
	if !c.store.Enabled(d) {
		c.log.Debug().Str("display", d.Key()).Msg("display disabled, step ignored")
		return false
	}

	c.mu.RLock()
	smooth := c.smooth
	c.mu.RUnlock()

	value := ComputeStep(c.Brightness(d), up, fine)
	if !c.SetBrightness(d, value, smooth) {
		return false
	}

	c.mu.RLock()
	osd, slider := c.osd, c.sliders[d.ID]
	c.mu.RUnlock()

	if osd != nil {
		osd.Show(c.OSDTarget(d), Brightness, value*osdScale, osdScale)
	}
	if slider != nil {
		slider.SetValue(value)
	}
	return true
}

// SetBrightness applies value through hardware or gamma and persists it on
// success.
func (c *Controller) SetBrightness(d *Display, value float64, smooth bool) bool {
	value = clamp01(value)

	var ok bool
	switch {
	case d.Kind == Virtual:
		return false
	case c.UsesHardware(d):
		ok = c.writeHardware(d, value)
	default:
		ok = c.gamma.Apply(d, value, smooth)
	}
	if !ok {
		return false
	}

	if err := c.store.SaveValue(d, Brightness, value); err != nil {
		c.log.Warn().Err(err).Str("display", d.Key()).Msg("failed to persist brightness")
	}
	return true
}

func (c *Controller) writeHardware(d *Display, value float64) bool {
	raw := int(math.Round(value * float64(c.store.MaxValue(d))))
	if err := d.Transport.WriteRegister(Brightness, raw); err != nil {
		c.log.Error().Err(err).Str("display", d.Key()).Int("value", raw).Msg("hardware brightness write failed")
		return false
	}
	return true
}

// Brightness prefers the stored value, so an untouched display reports its
// real state instead of zero.
func (c *Controller) Brightness(d *Display) float64 {
	if c.store.HasValue(d, Brightness) {
		return c.store.Value(d, Brightness)
	}
	if c.UsesHardware(d) {
		raw, err := d.Transport.ReadRegister(Brightness)
		if err == nil {
			return clamp01(float64(raw) / float64(c.store.MaxValue(d)))
		}
		c.log.Debug().Err(err).Str("display", d.Key()).Msg("hardware brightness read failed")
	}
	return c.gamma.ReadCurrent(d)
}

func (c *Controller) OSDTarget(d *Display) DisplayID {
	return c.mirrors.OSDTarget(d)
}

// Restore puts the persisted software brightness back on d, e.g. after the
// OS reset the gamma tables.
func (c *Controller) Restore(d *Display) bool {
	if !c.mirrors.UsesSoftware(d) || !c.store.HasSoftwareBrightness(d) {
		return false
	}
	return c.gamma.Apply(d, c.store.SoftwareBrightness(d), false)
}

// Reset returns d to its default gamma and, on the software path, stores
// full brightness as the level to restore.
func (c *Controller) Reset(d *Display) bool {
	if !c.gamma.Reset(d) {
		return false
	}
	if c.mirrors.UsesSoftware(d) {
		if err := c.store.SaveValue(d, Brightness, 1); err != nil {
			c.log.Warn().Err(err).Str("display", d.Key()).Msg("failed to persist brightness")
		}
	}
	return true
}
