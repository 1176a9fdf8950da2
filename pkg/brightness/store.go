package brightness

import (
	"strconv"

	"github.com/spf13/cast"
)

// Command identifies a controllable display property by its VCP code.
type Command int

const (
	NoCommand          Command = 0x00
	Brightness         Command = 0x10
	Contrast           Command = 0x12
	AudioSpeakerVolume Command = 0x62
	AudioMuteScreen    Command = 0x8D
)

func (c Command) String() string {
	switch c {
	case Brightness:
		return "brightness"
	case Contrast:
		return "contrast"
	case AudioSpeakerVolume:
		return "volume"
	case AudioMuteScreen:
		return "mute"
	}
	return "0x" + strconv.FormatInt(int64(c), 16)
}

type Namespace string

const (
	NsValue        Namespace = "value"
	NsState        Namespace = "state"
	NsForceSw      Namespace = "forceSw"
	NsSwBrightness Namespace = "swBrightness"
	NsFriendlyName Namespace = "friendlyName"
	NsMaxValue     Namespace = "maxValue"
)

const DefaultMaxValue = 100

type Key struct {
	Namespace Namespace
	Command   Command
	Display   string
}

func (k Key) String() string {
	if k.Command == NoCommand {
		return string(k.Namespace) + "/" + k.Display
	}
	return string(k.Namespace) + "/" + strconv.Itoa(int(k.Command)) + "/" + k.Display
}

// Store is the typed view over a Backend. It keeps no state of its own.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) Exists(k Key) bool {
	_, ok := s.backend.Lookup(k.String())
	return ok
}

func (s *Store) Float(k Key) float64 {
	v, _ := s.backend.Lookup(k.String())
	return cast.ToFloat64(v)
}

func (s *Store) Int(k Key) int {
	v, _ := s.backend.Lookup(k.String())
	return cast.ToInt(v)
}

func (s *Store) String(k Key) string {
	v, _ := s.backend.Lookup(k.String())
	return cast.ToString(v)
}

func (s *Store) Bool(k Key) bool {
	v, _ := s.backend.Lookup(k.String())
	return cast.ToBool(v)
}

func (s *Store) Set(k Key, value any) error {
	return s.backend.Put(k.String(), value)
}

func (s *Store) Delete(k Key) error {
	return s.backend.Remove(k.String())
}

func valueKey(d *Display, cmd Command) Key {
	return Key{Namespace: NsValue, Command: cmd, Display: d.Key()}
}

func flagKey(ns Namespace, d *Display) Key {
	return Key{Namespace: ns, Display: d.Key()}
}

// HasValue reports whether a value for cmd was ever saved for d.
func (s *Store) HasValue(d *Display, cmd Command) bool {
	return s.Exists(valueKey(d, cmd))
}

// Value returns the saved value, or 0 when none is stored. Check HasValue
// first when the difference matters.
func (s *Store) Value(d *Display, cmd Command) float64 {
	return s.Float(valueKey(d, cmd))
}

func (s *Store) SaveValue(d *Display, cmd Command, value float64) error {
	return s.Set(valueKey(d, cmd), value)
}

func (s *Store) Enabled(d *Display) bool {
	k := flagKey(NsState, d)
	if !s.Exists(k) {
		return true
	}
	return s.Bool(k)
}

func (s *Store) SetEnabled(d *Display, enabled bool) error {
	return s.Set(flagKey(NsState, d), enabled)
}

func (s *Store) ForceSoftware(d *Display) bool {
	return s.Bool(flagKey(NsForceSw, d))
}

func (s *Store) SetForceSoftware(d *Display, force bool) error {
	return s.Set(flagKey(NsForceSw, d), force)
}

func (s *Store) HasSoftwareBrightness(d *Display) bool {
	return s.Exists(flagKey(NsSwBrightness, d))
}

func (s *Store) SoftwareBrightness(d *Display) float64 {
	return s.Float(flagKey(NsSwBrightness, d))
}

func (s *Store) SetSoftwareBrightness(d *Display, value float64) error {
	return s.Set(flagKey(NsSwBrightness, d), value)
}

func (s *Store) FriendlyName(d *Display) string {
	k := flagKey(NsFriendlyName, d)
	if !s.Exists(k) {
		return d.Name
	}
	return s.String(k)
}

func (s *Store) SetFriendlyName(d *Display, name string) error {
	return s.Set(flagKey(NsFriendlyName, d), name)
}

// MaxValue is the hardware register value that maps to full brightness.
func (s *Store) MaxValue(d *Display) int {
	k := Key{Namespace: NsMaxValue, Command: Brightness, Display: d.Key()}
	if v := s.Int(k); v > 0 {
		return v
	}
	return DefaultMaxValue
}

func (s *Store) SetMaxValue(d *Display, max int) error {
	return s.Set(Key{Namespace: NsMaxValue, Command: Brightness, Display: d.Key()}, max)
}
