package manager

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseLevel accepts a fraction ("0.4") or a percentage ("40%").
func ParseLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if p, ok := strings.CutSuffix(s, "%"); ok {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid percentage %q", s)
		}
		return n / 100, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid level %q", s)
	}
	return n, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func ok(format string, args ...any) string {
	return "OK: " + fmt.Sprintf(format, args...)
}

func fail(err error) string {
	return "ERR: " + err.Error()
}

// Handle runs one IPC command line against the service and returns the
// response text.
func (s *Service) Handle(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "ERR: empty command"
	}
	args := fields[1:]

	need := func(n int, usage string) error {
		if len(args) < n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}

	switch strings.ToUpper(fields[0]) {
	case "LIST":
		data, err := json.Marshal(s.List())
		if err != nil {
			return fail(err)
		}
		return ok("%s", data)

	case "GET":
		if err := need(1, "GET <id>"); err != nil {
			return fail(err)
		}
		st, err := s.Status(args[0])
		if err != nil {
			return fail(err)
		}
		return ok("%.4f", st.Brightness)

	case "SET":
		if err := need(2, "SET <id> <value> [smooth]"); err != nil {
			return fail(err)
		}
		level, err := ParseLevel(args[1])
		if err != nil {
			return fail(err)
		}
		smooth := len(args) > 2 && strings.EqualFold(args[2], "smooth")
		v, err := s.Set(args[0], level, smooth)
		if err != nil {
			return fail(err)
		}
		return ok("%.4f", v)

	case "STEP":
		if err := need(2, "STEP <id> up|down [fine]"); err != nil {
			return fail(err)
		}
		var up bool
		switch strings.ToLower(args[1]) {
		case "up", "+":
			up = true
		case "down", "-":
		default:
			return fail(fmt.Errorf("expected up or down, got %q", args[1]))
		}
		fine := len(args) > 2 && strings.EqualFold(args[2], "fine")
		v, err := s.Step(args[0], up, fine)
		if err != nil {
			return fail(err)
		}
		return ok("%.4f", v)

	case "RESET":
		if err := need(1, "RESET <id>"); err != nil {
			return fail(err)
		}
		if err := s.Reset(args[0]); err != nil {
			return fail(err)
		}
		return ok("reset")

	case "FORCESW", "ENABLE":
		if err := need(2, fields[0]+" <id> on|off"); err != nil {
			return fail(err)
		}
		on, err := parseSwitch(args[1])
		if err != nil {
			return fail(err)
		}
		if strings.EqualFold(fields[0], "FORCESW") {
			err = s.SetForceSoftware(args[0], on)
		} else {
			err = s.SetEnabled(args[0], on)
		}
		if err != nil {
			return fail(err)
		}
		return ok("%t", on)

	case "RENAME":
		if err := need(2, "RENAME <id> <name>"); err != nil {
			return fail(err)
		}
		name := strings.Join(args[1:], " ")
		if err := s.Rename(args[0], name); err != nil {
			return fail(err)
		}
		return ok("%s", name)
	}

	return "ERR: unknown command"
}
