// Package mutter reads the display topology and gamma tables from GNOME
// Mutter over the session bus.
package mutter

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/hoppxi/glint/internal/ddc"
	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/hoppxi/glint/pkg/displayinfo"
	"github.com/hoppxi/glint/pkg/operation"
	"github.com/rs/zerolog"
)

const (
	BusName    = "org.gnome.Mutter.DisplayConfig"
	ObjectPath = "/org/gnome/Mutter/DisplayConfig"
)

var ErrUnknownDisplay = errors.New("unknown display")

type Options struct {
	// DDC enables DDC/CI probing of external monitors.
	DDC    bool
	Logger zerolog.Logger
}

type Registry struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	opts Options
	log  zerolog.Logger

	mu         sync.RWMutex
	serial     uint32
	displays   []*brightness.Display
	connectors map[brightness.DisplayID]string
	crtcOf     map[brightness.DisplayID]uint32
	mirrorOf   map[brightness.DisplayID]brightness.DisplayID
	inMirror   map[brightness.DisplayID]bool
	buses      []io.Closer
}

func Connect(opts Options) (*Registry, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Registry{
		conn:       conn,
		obj:        conn.Object(BusName, ObjectPath),
		opts:       opts,
		log:        opts.Logger.With().Str("component", "mutter").Logger(),
		connectors: make(map[brightness.DisplayID]string),
		crtcOf:     make(map[brightness.DisplayID]uint32),
		mirrorOf:   make(map[brightness.DisplayID]brightness.DisplayID),
		inMirror:   make(map[brightness.DisplayID]bool),
	}, nil
}

func (r *Registry) resources() (resources, error) {
	var (
		res        resources
		modes      []mode
		maxW, maxH int32
	)
	err := r.obj.Call(BusName+".GetResources", 0).
		Store(&res.serial, &res.crtcs, &res.outputs, &modes, &maxW, &maxH)
	if err != nil {
		return res, fmt.Errorf("GetResources: %w", err)
	}
	return res, nil
}

// Refresh re-enumerates outputs and rebuilds every Display, capturing fresh
// default gamma tables through engine.
func (r *Registry) Refresh(engine *brightness.GammaEngine) error {
	res, err := r.resources()
	if err != nil {
		return err
	}
	mirrorOf, inMirror := mirrorSets(res)

	r.mu.Lock()
	for _, b := range r.buses {
		b.Close()
	}
	r.buses = nil
	r.serial = res.serial
	r.connectors = make(map[brightness.DisplayID]string)
	r.crtcOf = make(map[brightness.DisplayID]uint32)
	for _, o := range res.outputs {
		if o.active() {
			id := brightness.DisplayID(o.ID)
			r.crtcOf[id] = uint32(o.CurrentCrtc)
			r.connectors[id] = o.Name
		}
	}
	r.mirrorOf, r.inMirror = mirrorOf, inMirror
	r.mu.Unlock()

	var displays []*brightness.Display
	for _, o := range res.outputs {
		if !o.active() {
			continue
		}
		info := r.describe(o)
		d, err := engine.NewDisplay(info)
		if err != nil {
			r.log.Warn().Err(err).Str("output", o.Name).Msg("no gamma table, software brightness unavailable")
		}
		r.log.Info().Str("output", o.Name).Str("display", d.Key()).Str("kind", d.Kind.String()).Msg("display attached")
		displays = append(displays, d)
	}

	r.mu.Lock()
	r.displays = displays
	r.mu.Unlock()
	return nil
}

func (r *Registry) describe(o output) brightness.Info {
	info := brightness.Info{
		ID:      brightness.DisplayID(o.ID),
		Name:    o.displayName(),
		Vendor:  vendorCode(o.stringProp("vendor")),
		Model:   modelCode(o.stringProp("product")),
		Kind:    brightness.SoftwareOnly,
		Builtin: o.builtin(),
	}

	switch {
	case o.virtual():
		info.Kind = brightness.Virtual
	case info.Builtin:
		if len(displayinfo.Devices()) > 0 {
			info.Kind = brightness.HardwareControllable
			info.Transport = operation.NewBacklight("")
		}
	case r.opts.DDC:
		path, ok := ddc.BusForConnector(o.Name)
		if !ok {
			break
		}
		bus, err := ddc.Open(path)
		if err != nil {
			r.log.Debug().Err(err).Str("output", o.Name).Msg("ddc unavailable")
			break
		}
		if _, err := bus.ReadRegister(brightness.Brightness); err != nil {
			r.log.Debug().Err(err).Str("output", o.Name).Msg("monitor did not answer ddc")
			bus.Close()
			break
		}
		r.mu.Lock()
		r.buses = append(r.buses, bus)
		r.mu.Unlock()
		info.Kind = brightness.HardwareControllable
		info.Transport = bus
	}
	return info
}

func (r *Registry) crtc(id brightness.DisplayID) (serial, crtc uint32, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.crtcOf[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownDisplay, id)
	}
	return r.serial, c, nil
}

func (r *Registry) ReadGamma(id brightness.DisplayID) (brightness.GammaTable, error) {
	serial, crtc, err := r.crtc(id)
	if err != nil {
		return brightness.GammaTable{}, err
	}
	var red, green, blue []uint16
	if err := r.obj.Call(BusName+".GetCrtcGamma", 0, serial, crtc).Store(&red, &green, &blue); err != nil {
		return brightness.GammaTable{}, fmt.Errorf("GetCrtcGamma: %w", err)
	}
	return toTable(red, green, blue), nil
}

func (r *Registry) WriteGamma(id brightness.DisplayID, t brightness.GammaTable) error {
	serial, crtc, err := r.crtc(id)
	if err != nil {
		return err
	}
	red, green, blue := fromTable(t)
	if call := r.obj.Call(BusName+".SetCrtcGamma", 0, serial, crtc, red, green, blue); call.Err != nil {
		return fmt.Errorf("SetCrtcGamma: %w", call.Err)
	}
	return nil
}

func (r *Registry) Displays() []*brightness.Display {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*brightness.Display(nil), r.displays...)
}

func (r *Registry) NonVirtualDisplays() []*brightness.Display {
	var out []*brightness.Display
	for _, d := range r.Displays() {
		if !d.IsVirtual() {
			out = append(out, d)
		}
	}
	return out
}

func (r *Registry) InMirrorSet(id brightness.DisplayID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.inMirror[id]
}

func (r *Registry) MirrorOf(id brightness.DisplayID) brightness.DisplayID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mirrorOf[id]
}

func (r *Registry) Connector(id brightness.DisplayID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectors[id]
}

// Find resolves a user supplied display reference: numeric id, connector
// name, persistent key or display name. An empty query picks the first
// non-virtual display.
func (r *Registry) Find(query string) (*brightness.Display, error) {
	displays := r.Displays()
	if query == "" {
		for _, d := range displays {
			if !d.IsVirtual() {
				return d, nil
			}
		}
		return nil, fmt.Errorf("%w: no displays", ErrUnknownDisplay)
	}

	if n, err := strconv.ParseUint(query, 10, 32); err == nil {
		for _, d := range displays {
			if d.ID == brightness.DisplayID(n) {
				return d, nil
			}
		}
	}
	for _, d := range displays {
		if strings.EqualFold(r.Connector(d.ID), query) || d.Key() == query || strings.EqualFold(d.Name, query) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDisplay, query)
}

func (r *Registry) Close() error {
	r.mu.Lock()
	for _, b := range r.buses {
		b.Close()
	}
	r.buses = nil
	r.mu.Unlock()
	return r.conn.Close()
}
