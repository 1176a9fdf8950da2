package watchers

import (
	"github.com/hoppxi/glint/internal/subscribe"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ConfigWatcher calls apply with v after every change to the config file.
func ConfigWatcher(v *viper.Viper, apply func(*viper.Viper), log zerolog.Logger) func(stop <-chan struct{}) {
	return func(stop <-chan struct{}) {
		events := subscribe.ConfigEvents(v)
		for {
			select {
			case <-stop:
				return
			case name := <-events:
				log.Info().Str("file", name).Msg("config changed")
				apply(v)
			}
		}
	}
}
