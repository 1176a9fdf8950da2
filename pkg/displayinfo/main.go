package displayinfo

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BacklightRoot is where the kernel exposes backlight devices.
var BacklightRoot = "/sys/class/backlight"

var ErrNoBacklight = errors.New("no backlight devices found")

type DisplayInfo struct {
	Device  string
	Level   int
	Current int
	Max     int
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimSpace(string(data))
	return strconv.Atoi(s)
}

// Devices lists backlight device names, e.g. "intel_backlight".
func Devices() []string {
	paths, err := filepath.Glob(filepath.Join(BacklightRoot, "*"))
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	return names
}

// GetDisplayInfo reads one backlight device. An empty name picks the first.
func GetDisplayInfo(device string) (*DisplayInfo, error) {
	if device == "" {
		devices := Devices()
		if len(devices) == 0 {
			return nil, ErrNoBacklight
		}
		device = devices[0]
	}

	dir := filepath.Join(BacklightRoot, device)
	current, err := readInt(filepath.Join(dir, "brightness"))
	if err != nil {
		return nil, err
	}

	maxVal, err := readInt(filepath.Join(dir, "max_brightness"))
	if err != nil {
		return nil, err
	}

	if maxVal <= 0 {
		return nil, errors.New("invalid max_brightness value")
	}

	percent := int(float64(current)/float64(maxVal)*100.0 + 0.5)
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}

	return &DisplayInfo{
		Device:  device,
		Level:   percent,
		Current: current,
		Max:     maxVal,
	}, nil
}
