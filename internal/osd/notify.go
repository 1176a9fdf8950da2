package osd

import (
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/hoppxi/glint/pkg/brightness"
	"github.com/rs/zerolog"
)

const syncTag = "glint-brightness"

// Notify shows OSD feedback as a desktop notification with a progress hint,
// replacing the previous one so repeated key presses update a single bubble.
type Notify struct {
	timeout time.Duration
	log     zerolog.Logger
	names   func(brightness.DisplayID) string

	mu        sync.Mutex
	conn      *dbus.Conn
	replaceID uint32
}

// NewNotify takes an optional names func used for the notification title.
func NewNotify(timeout time.Duration, names func(brightness.DisplayID) string, log zerolog.Logger) *Notify {
	return &Notify{
		timeout: timeout,
		names:   names,
		log:     log.With().Str("osd", "notify").Logger(),
	}
}

func (n *Notify) Show(id brightness.DisplayID, cmd brightness.Command, value, max float64) {
	go n.send(newEvent(id, cmd, value, max))
}

func (n *Notify) send(ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			n.log.Warn().Err(err).Msg("session bus unavailable")
			return
		}
		n.conn = conn
	}

	summary := "Brightness"
	if n.names != nil {
		if name := n.names(ev.Display); name != "" {
			summary = name
		}
	}

	hints := map[string]dbus.Variant{
		"value":                           dbus.MakeVariant(int32(ev.Percent)),
		"x-canonical-private-synchronous": dbus.MakeVariant(syncTag),
		"transient":                       dbus.MakeVariant(true),
		"urgency":                         dbus.MakeVariant(byte(0)),
	}

	obj := n.conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	var id uint32
	err := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"glint",
		n.replaceID,
		"display-brightness-symbolic",
		summary,
		fmt.Sprintf("%s %d%%", ev.Command, ev.Percent),
		[]string{},
		hints,
		int32(n.timeout/time.Millisecond),
	).Store(&id)
	if err != nil {
		n.log.Debug().Err(err).Msg("notify failed")
		n.conn.Close()
		n.conn = nil
		return
	}
	n.replaceID = id
}

func (n *Notify) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}
