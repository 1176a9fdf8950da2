package osd

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/rs/zerolog"
)

type Event struct {
	Display brightness.DisplayID `json:"display"`
	Command string               `json:"command"`
	Value   float64              `json:"value"`
	Max     float64              `json:"max"`
	Percent int                  `json:"percent"`
}

func newEvent(id brightness.DisplayID, cmd brightness.Command, value, max float64) Event {
	percent := 0
	if max > 0 {
		percent = int(value/max*100 + 0.5)
	}
	return Event{Display: id, Command: cmd.String(), Value: value, Max: max, Percent: percent}
}

// Eww publishes OSD state as eww variables: OSD_BRIGHTNESS_INFO carries the
// JSON event and OSD_BRIGHTNESS toggles visibility.
type Eww struct {
	timeout time.Duration
	log     zerolog.Logger
	run     func(args ...string) error

	once  sync.Once
	queue chan Event

	mu     sync.Mutex
	hide   *time.Timer
	closed bool
}

func NewEww(timeout time.Duration, log zerolog.Logger) *Eww {
	return &Eww{
		timeout: timeout,
		log:     log.With().Str("osd", "eww").Logger(),
		run: func(args ...string) error {
			return exec.Command("eww", args...).Run()
		},
		queue: make(chan Event, 8),
	}
}

func (e *Eww) updateEww(module string, data any) {
	jsonData, _ := json.Marshal(data)
	if err := e.run("update", module+"="+string(jsonData)); err != nil {
		e.log.Debug().Err(err).Str("var", module).Msg("eww update failed")
	}
}

func (e *Eww) updateEwwNoJson(module string, data any) {
	if err := e.run("update", fmt.Sprintf("%s=%v", module, data)); err != nil {
		e.log.Debug().Err(err).Str("var", module).Msg("eww update failed")
	}
}

func (e *Eww) Show(id brightness.DisplayID, cmd brightness.Command, value, max float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	e.once.Do(func() { go e.loop() })
	select {
	case e.queue <- newEvent(id, cmd, value, max):
	default:
		e.log.Debug().Msg("osd queue full, event dropped")
	}
}

func (e *Eww) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.queue)
	if e.hide != nil {
		e.hide.Stop()
	}
	return nil
}

func (e *Eww) loop() {
	for ev := range e.queue {
		e.updateEww("OSD_BRIGHTNESS_INFO", ev)
		e.updateEwwNoJson("OSD_BRIGHTNESS", true)

		e.mu.Lock()
		if e.hide != nil {
			e.hide.Stop()
		}
		e.hide = time.AfterFunc(e.timeout, func() {
			e.updateEwwNoJson("OSD_BRIGHTNESS", false)
		})
		e.mu.Unlock()
	}
}
