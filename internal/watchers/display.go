package watchers

import (
	"time"

	"github.com/hoppxi/glint/internal/subscribe"
	"github.com/rs/zerolog"
)

// settle lets a burst of hotplug events finish before the topology is read.
const settle = 500 * time.Millisecond

type Reconfigurer interface {
	Reconfigure() error
}

// DisplayWatcher reconfigures r whenever the kernel or the compositor
// reports a topology change.
func DisplayWatcher(r Reconfigurer, log zerolog.Logger) func(stop <-chan struct{}) {
	return func(stop <-chan struct{}) {
		watchTopology(r, subscribe.DisplayEvents(log), subscribe.MonitorEvents(log), settle, log, stop)
	}
}

func watchTopology(r Reconfigurer, kernel, compositor <-chan struct{}, delay time.Duration, log zerolog.Logger, stop <-chan struct{}) {
	var pending <-chan time.Time
	for {
		select {
		case <-stop:
			return
		case <-kernel:
			pending = time.After(delay)
		case <-compositor:
			pending = time.After(delay)
		case <-pending:
			pending = nil
			if err := r.Reconfigure(); err != nil {
				log.Error().Err(err).Msg("display reconfiguration failed")
			}
		}
	}
}
