package subscribe

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

func ConfigEvents(v *viper.Viper) <-chan string {
	events := make(chan string)

	v.OnConfigChange(func(e fsnotify.Event) {
		select {
		case events <- e.Name:
		case <-time.After(10 * time.Millisecond):
		}
	})
	v.WatchConfig()

	return events
}
