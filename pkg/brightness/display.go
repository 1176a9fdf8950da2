package brightness

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
)

type DisplayID uint32

// Kind tags how a display's brightness can be driven.
type Kind int

const (
	HardwareControllable Kind = iota
	SoftwareOnly
	Virtual
)

func (k Kind) String() string {
	switch k {
	case HardwareControllable:
		return "hardware"
	case SoftwareOnly:
		return "software"
	case Virtual:
		return "virtual"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Info is what a registry knows about an output before it becomes a Display.
type Info struct {
	ID        DisplayID
	Name      string
	Vendor    uint32
	Model     uint32
	Kind      Kind
	Builtin   bool
	Transport Transport
}

type Display struct {
	ID        DisplayID
	Name      string
	Vendor    uint32
	Model     uint32
	Kind      Kind
	Builtin   bool
	Transport Transport

	key string

	// default gamma snapshot, written once by CaptureDefault
	defaultGamma GammaTable
	defaultPeak  float64

	// serializes smooth transitions
	gate sync.Mutex
}

func newDisplay(info Info) *Display {
	return &Display{
		ID:        info.ID,
		Name:      info.Name,
		Vendor:    info.Vendor,
		Model:     info.Model,
		Kind:      info.Kind,
		Builtin:   info.Builtin,
		Transport: info.Transport,
		key:       PersistentKey(info.Name, info.Vendor, info.Model, info.ID),
	}
}

// PersistentKey derives the preference key for an output. It is stable across
// sessions as long as the OS hands out the same identifier.
func PersistentKey(name string, vendor, model uint32, id DisplayID) string {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	return fmt.Sprintf("(%s%d%d@%d)", compact, vendor, model, id)
}

func (d *Display) Key() string {
	return d.key
}

// DefaultGamma returns the snapshot taken when the display was attached.
func (d *Display) DefaultGamma() GammaTable {
	return d.defaultGamma
}

func (d *Display) DefaultPeak() float64 {
	return d.defaultPeak
}

func (d *Display) IsVirtual() bool {
	return d.Kind == Virtual
}

func (d *Display) String() string {
	return fmt.Sprintf("%s [%d, %s]", d.Name, d.ID, d.Kind)
}
