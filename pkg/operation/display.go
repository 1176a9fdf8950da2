package operation

import (
	"fmt"
	"os/exec"
	"strconv"

	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/hoppxi/glint/pkg/displayinfo"
)

// Backlight drives a built-in panel through the kernel backlight class.
// Register values are percentages.
type Backlight struct {
	Device string

	run func(name string, args ...string) error
}

func NewBacklight(device string) *Backlight {
	return &Backlight{Device: device, run: runCommand}
}

func runCommand(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (b *Backlight) ReadRegister(cmd brightness.Command) (int, error) {
	if cmd != brightness.Brightness {
		return 0, fmt.Errorf("backlight does not support %s", cmd)
	}
	info, err := displayinfo.GetDisplayInfo(b.Device)
	if err != nil {
		return 0, err
	}
	return info.Level, nil
}

// WriteRegister sets the backlight level (0-100) through brightnessctl, which
// works without root when the udev rules are installed.
func (b *Backlight) WriteRegister(cmd brightness.Command, value int) error {
	if cmd != brightness.Brightness {
		return fmt.Errorf("backlight does not support %s", cmd)
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}

	args := []string{"--quiet"}
	if b.Device != "" {
		args = append(args, "--device="+b.Device)
	}
	args = append(args, "set", strconv.Itoa(value)+"%")
	if err := b.run("brightnessctl", args...); err != nil {
		return fmt.Errorf("failed to set brightness: %w", err)
	}
	return nil
}
