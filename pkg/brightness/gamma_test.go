package brightness

import (
	"math"
	"sync"
	"testing"
)

func TestCaptureDefaultPeak(t *testing.T) {
	f := newFixture()
	table := LinearGammaTable(GammaSamples).Scale(0.5)
	table.Green[10] = 0.9
	f.device.tables[1] = table

	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	if got := d.DefaultPeak(); got != 0.9 {
		t.Errorf("peak = %v, want 0.9", got)
	}
	if got := d.DefaultGamma().SampleCount(); got != GammaSamples {
		t.Errorf("samples = %d, want %d", got, GammaSamples)
	}
}

func TestApplyReadCurrentRoundTrip(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	for i := 0; i <= 100; i++ {
		v := float64(i) / 100
		if !f.engine.Apply(d, v, false) {
			t.Fatalf("Apply(%v) failed", v)
		}
		got := f.engine.ReadCurrent(d)
		if math.Abs(got-v) > 1.0/GammaSamples {
			t.Errorf("ReadCurrent after Apply(%v) = %v", v, got)
		}
	}
}

func TestApplyClampsValue(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	f.engine.Apply(d, 1.7, false)
	if got := f.engine.ReadCurrent(d); got != 1 {
		t.Errorf("ReadCurrent = %v, want 1", got)
	}
	f.engine.Apply(d, -3, false)
	if got := f.engine.ReadCurrent(d); got != 0 {
		t.Errorf("ReadCurrent = %v, want 0", got)
	}
}

func TestLowThresholdFloor(t *testing.T) {
	f := newFixture()
	f.engine.SetLowThreshold(0.2)
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	f.engine.Apply(d, 0, false)
	peaks := f.device.log(1)
	if got := peaks[len(peaks)-1]; math.Abs(got-0.2) > 1e-9 {
		t.Errorf("written peak = %v, want 0.2", got)
	}
	if got := f.engine.ReadCurrent(d); got != 0 {
		t.Errorf("ReadCurrent = %v, want 0", got)
	}
}

func TestResetThenIsNonDefault(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	f.engine.Apply(d, 0.3, false)
	if !f.engine.IsNonDefault(d) {
		t.Fatal("expected non-default after dimming")
	}
	f.engine.Reset(d)
	if f.engine.IsNonDefault(d) {
		t.Error("expected default after reset")
	}
}

func TestVirtualDisplayNeverNonDefault(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 9, Name: "Dummy", Kind: Virtual})
	f.device.tables[9] = LinearGammaTable(GammaSamples).Scale(0.1)

	if f.engine.IsNonDefault(d) {
		t.Error("virtual display reported non-default brightness")
	}
	if f.engine.Apply(d, 0.5, false) {
		t.Error("virtual display accepted software brightness")
	}
}

func TestReadCurrentFallsBackOnError(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})
	f.engine.Apply(d, 0.25, false)

	f.device.failRead = true
	if got := f.engine.ReadCurrent(d); got != 1 {
		t.Errorf("ReadCurrent = %v, want 1", got)
	}
}

func TestSmoothTransitionsDoNotInterleave(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	if !f.engine.Apply(d, 0.2, true) {
		t.Fatal("first smooth apply rejected")
	}
	if !f.engine.Apply(d, 0.8, true) {
		t.Fatal("second smooth apply rejected")
	}
	f.engine.Wait()

	peaks := f.device.log(1)
	if len(peaks) < 10 {
		t.Fatalf("expected a ramp, got %d writes", len(peaks))
	}

	turn := -1
	for i, p := range peaks {
		if p == 0.2 {
			turn = i
			break
		}
	}
	if turn < 0 {
		t.Fatal("first transition never wrote its final table")
	}
	for i := 1; i <= turn; i++ {
		if peaks[i] > peaks[i-1] {
			t.Fatalf("write %d went up during the first transition: %v -> %v", i, peaks[i-1], peaks[i])
		}
	}
	for i := turn + 1; i < len(peaks); i++ {
		if peaks[i] < peaks[i-1] {
			t.Fatalf("write %d went down during the second transition: %v -> %v", i, peaks[i-1], peaks[i])
		}
	}
	if last := peaks[len(peaks)-1]; last != 0.8 {
		t.Errorf("final peak = %v, want 0.8", last)
	}
}

func TestSmoothTransitionAbortsDuringReconfiguration(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	f.engine.Reconfiguration().Begin()
	f.engine.Apply(d, 0.1, true)
	f.engine.Wait()
	if n := len(f.device.log(1)); n != 0 {
		t.Fatalf("expected no writes while reconfiguring, got %d", n)
	}

	f.engine.Reconfiguration().End()
	f.engine.Apply(d, 0.5, true)
	f.engine.Wait()
	peaks := f.device.log(1)
	if len(peaks) == 0 || peaks[len(peaks)-1] != 0.5 {
		t.Errorf("transition after reconfiguration did not complete: %v", peaks)
	}
}

func TestSmoothTransitionsOnSeparateDisplays(t *testing.T) {
	f := newFixture()
	a := f.add(Info{ID: 1, Name: "Left", Kind: SoftwareOnly})
	b := f.add(Info{ID: 2, Name: "Right", Kind: SoftwareOnly})

	f.engine.Apply(a, 0.4, true)
	f.engine.Apply(b, 0.6, true)
	f.engine.Wait()

	if got := f.engine.ReadCurrent(a); math.Abs(got-0.4) > 1.0/GammaSamples {
		t.Errorf("left = %v, want 0.4", got)
	}
	if got := f.engine.ReadCurrent(b); math.Abs(got-0.6) > 1.0/GammaSamples {
		t.Errorf("right = %v, want 0.6", got)
	}
}

func TestCloseRejectsNewTransitions(t *testing.T) {
	f := newFixture()
	d := f.add(Info{ID: 1, Name: "Panel", Kind: SoftwareOnly})

	f.engine.Apply(d, 0.5, true)
	f.engine.Close()
	if f.engine.Apply(d, 0.2, true) {
		t.Error("closed engine accepted a smooth transition")
	}
}

func TestNewDisplayKeepsFirstDefault(t *testing.T) {
	f := newFixture()
	info := Info{ID: 1, Name: "Panel", Vendor: 0x10AC, Model: 42, Kind: SoftwareOnly}
	d := f.add(info)
	f.engine.Apply(d, 0.5, false)

	for i := 0; i < 3; i++ {
		again, err := f.engine.NewDisplay(info)
		if err != nil {
			t.Fatal(err)
		}
		if got := again.DefaultPeak(); got != 1 {
			t.Fatalf("default peak after %d rebuilds = %v, want 1", i+1, got)
		}
		if !f.engine.Apply(again, 0.5, false) {
			t.Fatal("Apply failed")
		}
		if got := f.engine.ReadCurrent(again); math.Abs(got-0.5) > 1.0/GammaSamples {
			t.Fatalf("ReadCurrent = %v, want 0.5", got)
		}
	}
}

func TestWaitWithConcurrentSubmits(t *testing.T) {
	f := newFixture()
	a := f.add(Info{ID: 1, Name: "Left", Kind: SoftwareOnly})
	b := f.add(Info{ID: 2, Name: "Right", Kind: SoftwareOnly})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			f.engine.Apply(a, 0.3, true)
		}()
		go func() {
			defer wg.Done()
			f.engine.Wait()
		}()
	}
	f.engine.Apply(b, 0.7, true)
	wg.Wait()
	f.engine.Wait()

	if got := f.engine.ReadCurrent(a); math.Abs(got-0.3) > 1.0/GammaSamples {
		t.Errorf("left = %v, want 0.3", got)
	}
	if got := f.engine.ReadCurrent(b); math.Abs(got-0.7) > 1.0/GammaSamples {
		t.Errorf("right = %v, want 0.7", got)
	}
}
