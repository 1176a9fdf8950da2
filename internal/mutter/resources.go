package mutter

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/hoppxi/glint/pkg/brightness"
)

type crtc struct {
	ID               uint32
	WinsysID         int64
	X, Y             int32
	Width, Height    int32
	CurrentMode      int32
	CurrentTransform uint32
	Transforms       []uint32
	Properties       map[string]dbus.Variant
}

type output struct {
	ID            uint32
	WinsysID      int64
	CurrentCrtc   int32
	PossibleCrtcs []uint32
	Name          string
	Modes         []uint32
	Clones        []uint32
	Properties    map[string]dbus.Variant
}

type mode struct {
	ID        uint32
	WinsysID  int64
	Width     uint32
	Height    uint32
	Frequency float64
	Flags     uint32
}

type resources struct {
	serial  uint32
	crtcs   []crtc
	outputs []output
}

func (o output) stringProp(name string) string {
	if v, ok := o.Properties[name]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func (o output) boolProp(name string) bool {
	if v, ok := o.Properties[name]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

func (o output) active() bool {
	return o.CurrentCrtc >= 0
}

func (o output) builtin() bool {
	name := strings.ToUpper(o.Name)
	for _, prefix := range []string{"EDP", "LVDS", "DSI"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (o output) virtual() bool {
	name := strings.ToUpper(o.Name)
	return strings.HasPrefix(name, "VIRTUAL") || strings.HasPrefix(name, "META-")
}

func (o output) displayName() string {
	for _, prop := range []string{"display-name", "product"} {
		if s := o.stringProp(prop); s != "" {
			return s
		}
	}
	return o.Name
}

// vendorCode packs a three letter PNP id the way EDID stores it.
func vendorCode(pnp string) uint32 {
	if len(pnp) != 3 {
		return 0
	}
	var code uint32
	for _, c := range strings.ToUpper(pnp) {
		if c < 'A' || c > 'Z' {
			return 0
		}
		code = code<<5 | uint32(c-'@')
	}
	return code
}

func modelCode(product string) uint32 {
	n, err := strconv.ParseUint(product, 0, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// mirrorSets groups active outputs showing the same region. The source of a
// group is its primary output, or the lowest id.
func mirrorSets(res resources) (mirrorOf map[brightness.DisplayID]brightness.DisplayID, inSet map[brightness.DisplayID]bool) {
	mirrorOf = make(map[brightness.DisplayID]brightness.DisplayID)
	inSet = make(map[brightness.DisplayID]bool)

	crtcs := make(map[int32]crtc, len(res.crtcs))
	for _, c := range res.crtcs {
		crtcs[int32(c.ID)] = c
	}

	type region struct{ x, y, w, h int32 }
	groups := make(map[region][]output)
	for _, o := range res.outputs {
		c, ok := crtcs[o.CurrentCrtc]
		if !o.active() || !ok {
			continue
		}
		r := region{c.X, c.Y, c.Width, c.Height}
		groups[r] = append(groups[r], o)
	}

	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		source := members[0]
		for _, m := range members {
			if m.boolProp("primary") {
				source = m
				break
			}
		}
		for _, m := range members {
			id := brightness.DisplayID(m.ID)
			inSet[id] = true
			if m.ID != source.ID {
				mirrorOf[id] = brightness.DisplayID(source.ID)
			}
		}
	}
	return mirrorOf, inSet
}

func toTable(red, green, blue []uint16) brightness.GammaTable {
	conv := func(in []uint16) []float64 {
		out := make([]float64, len(in))
		for i, v := range in {
			out[i] = float64(v) / math.MaxUint16
		}
		return out
	}
	return brightness.GammaTable{Red: conv(red), Green: conv(green), Blue: conv(blue)}
}

func fromTable(t brightness.GammaTable) (red, green, blue []uint16) {
	conv := func(in []float64) []uint16 {
		out := make([]uint16, len(in))
		for i, v := range in {
			out[i] = uint16(math.Round(math.Min(math.Max(v, 0), 1) * math.MaxUint16))
		}
		return out
	}
	return conv(t.Red), conv(t.Green), conv(t.Blue)
}
