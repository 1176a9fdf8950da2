package manager

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/hoppxi/glint/internal/prefs"
	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/rs/zerolog"
)

type fakeTopology struct {
	mu       sync.Mutex
	infos    []brightness.Info
	displays []*brightness.Display
	tables   map[brightness.DisplayID]brightness.GammaTable
	refresh  int
}

func newFakeTopology(infos ...brightness.Info) *fakeTopology {
	return &fakeTopology{infos: infos, tables: make(map[brightness.DisplayID]brightness.GammaTable)}
}

func (f *fakeTopology) Refresh(engine *brightness.GammaEngine) error {
	var displays []*brightness.Display
	for _, info := range f.infos {
		d, _ := engine.NewDisplay(info)
		displays = append(displays, d)
	}
	f.mu.Lock()
	f.displays = displays
	f.refresh++
	f.mu.Unlock()
	return nil
}

func (f *fakeTopology) Displays() []*brightness.Display {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*brightness.Display(nil), f.displays...)
}

func (f *fakeTopology) NonVirtualDisplays() []*brightness.Display {
	var out []*brightness.Display
	for _, d := range f.Displays() {
		if !d.IsVirtual() {
			out = append(out, d)
		}
	}
	return out
}

func (f *fakeTopology) InMirrorSet(brightness.DisplayID) bool { return false }
func (f *fakeTopology) MirrorOf(brightness.DisplayID) brightness.DisplayID { return 0 }
func (f *fakeTopology) Connector(id brightness.DisplayID) string { return fmt.Sprintf("DP-%d", id) }
func (f *fakeTopology) Close() error { return nil }

func (f *fakeTopology) Find(query string) (*brightness.Display, error) {
	for _, d := range f.Displays() {
		if fmt.Sprint(d.ID) == query || f.Connector(d.ID) == query {
			return d, nil
		}
	}
	return nil, fmt.Errorf("unknown display: %s", query)
}

func (f *fakeTopology) ReadGamma(id brightness.DisplayID) (brightness.GammaTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tables[id]; ok {
		return t, nil
	}
	return brightness.LinearGammaTable(brightness.GammaSamples), nil
}

func (f *fakeTopology) WriteGamma(id brightness.DisplayID, t brightness.GammaTable) error {
	f.mu.Lock()
	f.tables[id] = t
	f.mu.Unlock()
	return nil
}

func (f *fakeTopology) peak(id brightness.DisplayID) float64 {
	t, _ := f.ReadGamma(id)
	return t.Peak()
}

// fakeDDC answers like a DDC/CI bus with a register range of 0..max.
type fakeDDC struct {
	mu      sync.Mutex
	max     uint16
	current int
}

func (f *fakeDDC) Get(brightness.Command) (uint16, uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint16(f.current), f.max, nil
}

func (f *fakeDDC) ReadRegister(brightness.Command) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeDDC) WriteRegister(_ brightness.Command, v int) error {
	f.mu.Lock()
	f.current = v
	f.mu.Unlock()
	return nil
}

func newTestService(t *testing.T, topo *fakeTopology) *Service {
	t.Helper()
	svc := NewService(topo, prefs.NewMemory(), Settings{OSDBackend: "none"}, zerolog.Nop())
	if err := svc.Reconfigure(); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func softwareInfo(id brightness.DisplayID) brightness.Info {
	return brightness.Info{ID: id, Name: "External", Vendor: 0x10AC, Model: 42, Kind: brightness.SoftwareOnly}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.4", 0.4, false},
		{"40%", 0.4, false},
		{" 100% ", 1, false},
		{"abc", 0, true},
		{"x%", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHandleRejectsMalformedCommands(t *testing.T) {
	svc := newTestService(t, newFakeTopology(softwareInfo(1)))

	tests := map[string]string{
		"":              "ERR: empty command",
		"FROB":          "ERR: unknown command",
		"SET 1":         "ERR: usage: SET <id> <value> [smooth]",
		"STEP 1 left":   `ERR: expected up or down, got "left"`,
		"ENABLE 1 sure": `ERR: expected on or off, got "sure"`,
		"GET 99":        "ERR: unknown display: 99",
		"SET 1 lots":    `ERR: invalid level "lots"`,
	}
	for line, want := range tests {
		if got := svc.Handle(line); got != want {
			t.Errorf("Handle(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestHandleSetAndGet(t *testing.T) {
	topo := newFakeTopology(softwareInfo(1))
	svc := newTestService(t, topo)

	if got := svc.Handle("SET 1 40%"); got != "OK: 0.4000" {
		t.Fatalf("SET = %q", got)
	}
	if got := svc.Handle("get DP-1"); got != "OK: 0.4000" {
		t.Errorf("GET = %q", got)
	}
	if p := topo.peak(1); math.Abs(p-0.4) > 1e-9 {
		t.Errorf("gamma peak = %v, want 0.4", p)
	}
}

func TestHandleStep(t *testing.T) {
	svc := newTestService(t, newFakeTopology(softwareInfo(1)))

	svc.Handle("SET 1 0.5")
	if got := svc.Handle("STEP 1 up"); got != "OK: 0.5625" {
		t.Errorf("STEP up = %q", got)
	}
	if got := svc.Handle("STEP 1 down fine"); got != "OK: 0.5469" {
		t.Errorf("STEP down fine = %q", got)
	}
}

func TestHandleDisabledDisplay(t *testing.T) {
	svc := newTestService(t, newFakeTopology(softwareInfo(1)))

	if got := svc.Handle("ENABLE 1 off"); got != "OK: false" {
		t.Fatalf("ENABLE = %q", got)
	}
	if got := svc.Handle("STEP 1 up"); got != "ERR: display is disabled" {
		t.Errorf("STEP on disabled display = %q", got)
	}
}

func TestHandleRenameShowsInList(t *testing.T) {
	svc := newTestService(t, newFakeTopology(softwareInfo(1), brightness.Info{ID: 2, Name: "Virtual", Kind: brightness.Virtual}))

	if got := svc.Handle("RENAME 1 Desk Monitor"); got != "OK: Desk Monitor" {
		t.Fatalf("RENAME = %q", got)
	}

	got := svc.Handle("LIST")
	payload, found := strings.CutPrefix(got, "OK: ")
	if !found {
		t.Fatalf("LIST = %q", got)
	}
	var list []Status
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		t.Fatalf("LIST payload: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("LIST returned %d displays, want 1 non-virtual", len(list))
	}
	if list[0].Name != "Desk Monitor" || list[0].Connector != "DP-1" || list[0].Kind != brightness.SoftwareOnly.String() {
		t.Errorf("status = %+v", list[0])
	}
}

func TestReconfigureRestoresSoftwareBrightness(t *testing.T) {
	topo := newFakeTopology(softwareInfo(1))
	svc := newTestService(t, topo)

	svc.Handle("SET 1 0.5")

	// the compositor resets gamma when the layout changes
	topo.WriteGamma(1, brightness.LinearGammaTable(brightness.GammaSamples))

	if err := svc.Reconfigure(); err != nil {
		t.Fatal(err)
	}
	if p := topo.peak(1); math.Abs(p-0.5) > 1e-9 {
		t.Errorf("peak after reconfigure = %v, want 0.5", p)
	}
}

func TestReconfigureKeepsDefaultGamma(t *testing.T) {
	topo := newFakeTopology(softwareInfo(1))
	svc := newTestService(t, topo)

	if got := svc.Handle("SET 1 0.5"); got != "OK: 0.5000" {
		t.Fatalf("SET = %q", got)
	}

	// gamma is left dimmed between layout changes
	for i := 0; i < 3; i++ {
		if err := svc.Reconfigure(); err != nil {
			t.Fatal(err)
		}
		if p := topo.peak(1); math.Abs(p-0.5) > 1e-9 {
			t.Fatalf("peak after reconfigure %d = %v, want 0.5", i+1, p)
		}
	}

	if got := svc.Handle("GET 1"); got != "OK: 0.5000" {
		t.Errorf("GET = %q", got)
	}
	if topo.refresh != 4 {
		t.Errorf("refresh count = %d, want 4", topo.refresh)
	}

	if got := svc.Handle("RESET 1"); got != "OK: reset" {
		t.Fatalf("RESET = %q", got)
	}
	if p := topo.peak(1); math.Abs(p-1) > 1e-9 {
		t.Errorf("peak after reset = %v, want 1", p)
	}
}

func TestReconfigureReadsHardwareRange(t *testing.T) {
	bus := &fakeDDC{max: 200, current: 100}
	topo := newFakeTopology(brightness.Info{ID: 3, Name: "DDC", Kind: brightness.HardwareControllable, Transport: bus})
	svc := newTestService(t, topo)

	if got := svc.Handle("SET 3 0.25"); got != "OK: 0.2500" {
		t.Fatalf("SET = %q", got)
	}
	if v, _ := bus.ReadRegister(brightness.Brightness); v != 50 {
		t.Errorf("register = %d, want 50 of 200", v)
	}
}

func TestForceSoftwareOffResetsGamma(t *testing.T) {
	bus := &fakeDDC{max: 100, current: 100}
	topo := newFakeTopology(brightness.Info{ID: 3, Name: "DDC", Kind: brightness.HardwareControllable, Transport: bus})
	svc := newTestService(t, topo)

	svc.Handle("FORCESW 3 on")
	svc.Handle("SET 3 0.5")
	if p := topo.peak(3); math.Abs(p-0.5) > 1e-9 {
		t.Fatalf("forced software peak = %v, want 0.5", p)
	}

	if got := svc.Handle("FORCESW 3 off"); got != "OK: false" {
		t.Fatalf("FORCESW off = %q", got)
	}
	if p := topo.peak(3); math.Abs(p-1) > 1e-9 {
		t.Errorf("peak after leaving software mode = %v, want 1", p)
	}
}
