package subscribe

import (
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"
)

const (
	mutterInterface = "org.gnome.Mutter.DisplayConfig"
	mutterPath      = "/org/gnome/Mutter/DisplayConfig"
)

// isDRMChange reports whether a raw uevent describes a connector or mode
// change on a DRM card.
func isDRMChange(msg string) bool {
	var drm, change bool
	for _, field := range strings.Split(msg, "\x00") {
		switch field {
		case "SUBSYSTEM=drm":
			drm = true
		case "ACTION=change":
			change = true
		}
	}
	return drm && change
}

func notify(events chan<- struct{}) {
	select {
	case events <- struct{}{}:
	default:
	}
}

// DisplayEvents emits when the kernel reports a DRM hotplug. Bursts are
// coalesced into a single pending event.
func DisplayEvents(log zerolog.Logger) <-chan struct{} {
	events := make(chan struct{}, 1)

	go func() {
		fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_RAW, syscall.NETLINK_KOBJECT_UEVENT)
		if err != nil {
			log.Error().Err(err).Msg("failed to open netlink socket")
			return
		}
		defer syscall.Close(fd)

		addr := &syscall.SockaddrNetlink{
			Family: syscall.AF_NETLINK,
			Groups: 1, // broadcast uevents
		}
		if err := syscall.Bind(fd, addr); err != nil {
			log.Error().Err(err).Msg("failed to bind netlink socket")
			return
		}

		buf := make([]byte, 8192)
		for {
			n, _, err := syscall.Recvfrom(fd, buf, 0)
			if err != nil {
				log.Debug().Err(err).Msg("netlink recv error")
				continue
			}
			if isDRMChange(string(buf[:n])) {
				notify(events)
			}
		}
	}()

	return events
}

// MonitorEvents emits on Mutter's MonitorsChanged signal, which fires after
// the compositor applied a new layout and reset the CRTC gamma ramps.
func MonitorEvents(log zerolog.Logger) <-chan struct{} {
	events := make(chan struct{}, 1)

	go func() {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			log.Error().Err(err).Msg("failed to connect to session bus")
			return
		}
		defer conn.Close()

		if err := conn.AddMatchSignal(
			dbus.WithMatchInterface(mutterInterface),
			dbus.WithMatchMember("MonitorsChanged"),
			dbus.WithMatchObjectPath(mutterPath),
		); err != nil {
			log.Error().Err(err).Msg("failed to subscribe to MonitorsChanged")
			return
		}

		signals := make(chan *dbus.Signal, 10)
		conn.Signal(signals)
		log.Debug().Msg("listening for monitor changes")

		for sig := range signals {
			if sig.Name == mutterInterface+".MonitorsChanged" {
				notify(events)
			}
		}
	}()

	return events
}
