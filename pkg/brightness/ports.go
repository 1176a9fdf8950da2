package brightness

// Transport sends and reads hardware control registers for one display.
type Transport interface {
	ReadRegister(cmd Command) (int, error)
	WriteRegister(cmd Command, value int) error
}

// GammaDevice reads and writes the color transfer table of an output.
type GammaDevice interface {
	ReadGamma(id DisplayID) (GammaTable, error)
	WriteGamma(id DisplayID, table GammaTable) error
}

// Directory is the read-only view of the display registry.
type Directory interface {
	Displays() []*Display
	NonVirtualDisplays() []*Display
	// InMirrorSet reports whether id takes part in a hardware or software mirror.
	InMirrorSet(id DisplayID) bool
	// MirrorOf returns the display id mirrors, or 0 when it mirrors nothing.
	MirrorOf(id DisplayID) DisplayID
}

// OSD renders on-screen feedback. Calls are fire-and-forget.
type OSD interface {
	Show(id DisplayID, cmd Command, value, max float64)
}

type Slider interface {
	SetValue(value float64)
}

// Backend is a key-value persistence store.
type Backend interface {
	Lookup(key string) (any, bool)
	Put(key string, value any) error
	Remove(key string) error
}
