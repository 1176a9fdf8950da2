package manager

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/hoppxi/glint/internal/mutter"
	"github.com/hoppxi/glint/internal/osd"
	"github.com/hoppxi/glint/internal/prefs"
	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/rs/zerolog"
)

var (
	ErrNotApplied = errors.New("brightness change was not applied")
	ErrDisabled   = errors.New("display is disabled")
)

// Topology is what the service needs from the display registry.
type Topology interface {
	brightness.Directory
	brightness.GammaDevice
	Refresh(engine *brightness.GammaEngine) error
	Find(query string) (*brightness.Display, error)
	Connector(id brightness.DisplayID) string
	Close() error
}

// rangedTransport is implemented by transports that report the register's
// upper bound, like DDC/CI.
type rangedTransport interface {
	Get(cmd brightness.Command) (current, max uint16, err error)
}

type Status struct {
	ID            brightness.DisplayID `json:"id"`
	Key           string               `json:"key"`
	Name          string               `json:"name"`
	Connector     string               `json:"connector,omitempty"`
	Kind          string               `json:"kind"`
	Builtin       bool                 `json:"builtin"`
	Hardware      bool                 `json:"hardware"`
	Enabled       bool                 `json:"enabled"`
	ForceSoftware bool                 `json:"force_software"`
	Brightness    float64              `json:"brightness"`
	Percent       int                  `json:"percent"`
	MirrorOf      brightness.DisplayID `json:"mirror_of,omitempty"`
	OSDTarget     brightness.DisplayID `json:"osd_target"`
}

// Service owns the brightness stack of a running daemon.
type Service struct {
	log      zerolog.Logger
	topo     Topology
	backend  prefs.Backend
	reconfig *brightness.Reconfiguration
	store    *brightness.Store
	engine   *brightness.GammaEngine
	ctrl     *brightness.Controller

	mu         sync.Mutex
	osd        brightness.OSD
	osdBackend string
	osdTimeout time.Duration
}

func NewService(topo Topology, backend prefs.Backend, cfg Settings, log zerolog.Logger) *Service {
	store := brightness.NewStore(backend)
	reconfig := &brightness.Reconfiguration{}
	engine := brightness.NewGammaEngine(topo, store, reconfig, brightness.GammaOptions{
		LowThreshold: cfg.LowThreshold,
		StepDelay:    cfg.StepDelay,
		Logger:       log,
	})
	ctrl := brightness.NewController(store, engine, brightness.NewMirrorResolver(topo, store), nil, brightness.ControllerOptions{
		Smooth: cfg.Smooth,
		Logger: log,
	})

	s := &Service{
		log:      log.With().Str("component", "service").Logger(),
		topo:     topo,
		backend:  backend,
		reconfig: reconfig,
		store:    store,
		engine:   engine,
		ctrl:     ctrl,
	}
	s.Apply(cfg)
	return s
}

// Open connects to the compositor, opens the preference backend and restores
// persisted brightness on every display.
func Open(cfg Settings, log zerolog.Logger) (*Service, error) {
	backend, err := prefs.Open(cfg.PrefsBackend, cfg.PrefsPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open prefs: %w", err)
	}

	reg, err := mutter.Connect(mutter.Options{DDC: cfg.DDC, Logger: log})
	if err != nil {
		backend.Close()
		return nil, err
	}

	s := NewService(reg, backend, cfg, log)
	if err := s.Reconfigure(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) Controller() *brightness.Controller {
	return s.ctrl
}

// Apply pushes hot-reloadable settings into the running stack.
func (s *Service) Apply(cfg Settings) {
	s.ctrl.SetSmooth(cfg.Smooth)
	s.engine.SetLowThreshold(cfg.LowThreshold)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.osdBackend == cfg.OSDBackend && s.osdTimeout == cfg.OSDTimeout && s.osd != nil {
		return
	}

	var renderer brightness.OSD
	switch cfg.OSDBackend {
	case "eww":
		renderer = osd.NewEww(cfg.OSDTimeout, s.log)
	case "notify":
		renderer = osd.NewNotify(cfg.OSDTimeout, s.friendlyName, s.log)
	case "", "none":
	default:
		s.log.Warn().Str("backend", cfg.OSDBackend).Msg("unknown osd backend, feedback disabled")
	}
	s.ctrl.SetOSD(renderer)

	if c, ok := s.osd.(io.Closer); ok {
		c.Close()
	}
	s.osd, s.osdBackend, s.osdTimeout = renderer, cfg.OSDBackend, cfg.OSDTimeout
}

func (s *Service) friendlyName(id brightness.DisplayID) string {
	for _, d := range s.topo.Displays() {
		if d.ID == id {
			return s.store.FriendlyName(d)
		}
	}
	return ""
}

// Reconfigure stops in-flight transitions, re-reads the topology and puts
// persisted brightness back once the new displays are in place.
func (s *Service) Reconfigure() error {
	s.reconfig.Begin()
	s.engine.Wait()
	err := s.topo.Refresh(s.engine)
	s.reconfig.End()
	if err != nil {
		return fmt.Errorf("failed to refresh displays: %w", err)
	}

	for _, d := range s.topo.NonVirtualDisplays() {
		if t, ok := d.Transport.(rangedTransport); ok {
			if _, max, err := t.Get(brightness.Brightness); err == nil && max > 0 {
				if err := s.store.SetMaxValue(d, int(max)); err != nil {
					s.log.Warn().Err(err).Str("display", d.Key()).Msg("failed to persist max value")
				}
			}
		}
		if s.ctrl.Restore(d) {
			s.log.Info().Str("display", d.Key()).Float64("brightness", s.store.SoftwareBrightness(d)).Msg("software brightness restored")
		}
	}
	return nil
}

// DefaultDisplay is the query that picks the first non-virtual display.
const DefaultDisplay = "-"

func (s *Service) find(query string) (*brightness.Display, error) {
	if query == DefaultDisplay {
		query = ""
	}
	return s.topo.Find(query)
}

func (s *Service) status(d *brightness.Display) Status {
	v := s.ctrl.Brightness(d)
	st := Status{
		ID:            d.ID,
		Key:           d.Key(),
		Name:          s.store.FriendlyName(d),
		Connector:     s.topo.Connector(d.ID),
		Kind:          d.Kind.String(),
		Builtin:       d.Builtin,
		Hardware:      s.ctrl.UsesHardware(d),
		Enabled:       s.store.Enabled(d),
		ForceSoftware: s.store.ForceSoftware(d),
		Brightness:    v,
		Percent:       int(math.Round(v * 100)),
		OSDTarget:     s.ctrl.OSDTarget(d),
	}
	if s.topo.InMirrorSet(d.ID) {
		st.MirrorOf = s.topo.MirrorOf(d.ID)
	}
	return st
}

func (s *Service) List() []Status {
	var out []Status
	for _, d := range s.topo.NonVirtualDisplays() {
		out = append(out, s.status(d))
	}
	return out
}

func (s *Service) Status(query string) (Status, error) {
	d, err := s.find(query)
	if err != nil {
		return Status{}, err
	}
	return s.status(d), nil
}

func (s *Service) Set(query string, value float64, smooth bool) (float64, error) {
	d, err := s.find(query)
	if err != nil {
		return 0, err
	}
	if !s.store.Enabled(d) {
		return 0, ErrDisabled
	}
	if !s.ctrl.SetBrightness(d, value, smooth) {
		return 0, ErrNotApplied
	}
	return s.ctrl.Brightness(d), nil
}

func (s *Service) Step(query string, up, fine bool) (float64, error) {
	d, err := s.find(query)
	if err != nil {
		return 0, err
	}
	if !s.store.Enabled(d) {
		return 0, ErrDisabled
	}
	if !s.ctrl.Step(d, up, fine) {
		return 0, ErrNotApplied
	}
	return s.ctrl.Brightness(d), nil
}

func (s *Service) Reset(query string) error {
	d, err := s.find(query)
	if err != nil {
		return err
	}
	if !s.ctrl.Reset(d) {
		return ErrNotApplied
	}
	return nil
}

func (s *Service) SetForceSoftware(query string, force bool) error {
	d, err := s.find(query)
	if err != nil {
		return err
	}
	if !force && s.ctrl.Gamma().IsNonDefault(d) {
		s.ctrl.Gamma().Reset(d)
	}
	return s.store.SetForceSoftware(d, force)
}

func (s *Service) SetEnabled(query string, enabled bool) error {
	d, err := s.find(query)
	if err != nil {
		return err
	}
	return s.store.SetEnabled(d, enabled)
}

func (s *Service) Rename(query, name string) error {
	d, err := s.find(query)
	if err != nil {
		return err
	}
	return s.store.SetFriendlyName(d, name)
}

func (s *Service) Close() error {
	s.engine.Close()

	s.mu.Lock()
	if c, ok := s.osd.(io.Closer); ok {
		c.Close()
	}
	s.osd = nil
	s.mu.Unlock()

	return errors.Join(s.topo.Close(), s.backend.Close())
}
