package brightness

// MirrorResolver answers mirror topology questions from the registry. It
// never mutates anything.
type MirrorResolver struct {
	dir   Directory
	store *Store
}

func NewMirrorResolver(dir Directory, store *Store) *MirrorResolver {
	return &MirrorResolver{dir: dir, store: store}
}

// UsesSoftware reports whether brightness for d goes through the gamma table.
func (r *MirrorResolver) UsesSoftware(d *Display) bool {
	switch d.Kind {
	case SoftwareOnly:
		return true
	case HardwareControllable:
		return d.Transport == nil || r.store.ForceSoftware(d)
	}
	return false
}

// Source returns the display d mirrors, if it is a known non-virtual display.
func (r *MirrorResolver) Source(d *Display) *Display {
	if !r.dir.InMirrorSet(d.ID) {
		return nil
	}
	src := r.dir.MirrorOf(d.ID)
	if src == 0 {
		return nil
	}
	for _, m := range r.dir.NonVirtualDisplays() {
		if m.ID == src {
			return m
		}
	}
	return nil
}

// Members lists every non-virtual display mirroring the same source as d,
// d included. The source itself is not a member.
func (r *MirrorResolver) Members(d *Display) []*Display {
	src := r.dir.MirrorOf(d.ID)
	if src == 0 || !r.dir.InMirrorSet(d.ID) {
		return nil
	}
	var members []*Display
	for _, m := range r.dir.NonVirtualDisplays() {
		if r.dir.MirrorOf(m.ID) == src {
			members = append(members, m)
		}
	}
	return members
}

// OSDTarget picks where feedback for d should be drawn. When d is the only
// mirror of a software-driven external display, that display gets it.
func (r *MirrorResolver) OSDTarget(d *Display) DisplayID {
	src := r.Source(d)
	if src == nil || src.Builtin || !r.UsesSoftware(src) {
		return d.ID
	}
	for _, m := range r.Members(d) {
		if m.ID != d.ID {
			return d.ID
		}
	}
	return src.ID
}
