// Package ddc talks DDC/CI to external monitors through the Linux i2c-dev
// interface.
package ddc

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hoppxi/glint/pkg/brightness"
	"golang.org/x/sys/unix"
)

const (
	i2cSlave = 0x0703

	slaveAddr = 0x37
	hostAddr  = 0x51
	destAddr  = 0x6E
	replyAddr = 0x50

	opGetVCP      = 0x01
	opGetVCPReply = 0x02
	opSetVCP      = 0x03

	replyLen   = 11
	replyDelay = 40 * time.Millisecond
	writeDelay = 50 * time.Millisecond
	retries    = 3
)

var (
	ErrBadReply    = errors.New("ddc: malformed reply")
	ErrChecksum    = errors.New("ddc: reply checksum mismatch")
	ErrUnsupported = errors.New("ddc: feature not supported")
)

func checksum(seed byte, b []byte) byte {
	x := seed
	for _, v := range b {
		x ^= v
	}
	return x
}

func encodeGet(code byte) []byte {
	msg := []byte{hostAddr, 0x82, opGetVCP, code}
	return append(msg, checksum(destAddr, msg))
}

func encodeSet(code byte, value uint16) []byte {
	msg := []byte{hostAddr, 0x84, opSetVCP, code, byte(value >> 8), byte(value)}
	return append(msg, checksum(destAddr, msg))
}

// decodeReply parses a "get VCP feature" reply and returns the current and
// maximum values.
func decodeReply(code byte, buf []byte) (current, max uint16, err error) {
	if len(buf) < replyLen {
		return 0, 0, ErrBadReply
	}
	if buf[0] != destAddr || buf[1] != 0x88 || buf[2] != opGetVCPReply {
		return 0, 0, ErrBadReply
	}
	if checksum(replyAddr, buf[:replyLen-1]) != buf[replyLen-1] {
		return 0, 0, ErrChecksum
	}
	if buf[3] != 0 {
		return 0, 0, ErrUnsupported
	}
	if buf[4] != code {
		return 0, 0, fmt.Errorf("%w: asked for 0x%02x, got 0x%02x", ErrBadReply, code, buf[4])
	}
	max = uint16(buf[6])<<8 | uint16(buf[7])
	current = uint16(buf[8])<<8 | uint16(buf[9])
	return current, max, nil
}

// Bus is one monitor's DDC/CI channel. It implements brightness.Transport.
type Bus struct {
	path string

	mu  sync.Mutex
	dev io.ReadWriteCloser
	// time of the last write, DDC needs a pause between messages
	last  time.Time
	sleep func(time.Duration)
}

func Open(path string) (*Bus, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, slaveAddr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to select ddc slave on %s: %w", path, err)
	}
	return newBus(path, os.NewFile(uintptr(fd), path)), nil
}

func newBus(path string, dev io.ReadWriteCloser) *Bus {
	return &Bus{path: path, dev: dev, sleep: time.Sleep}
}

func (b *Bus) Path() string {
	return b.path
}

func (b *Bus) pause(d time.Duration) {
	if wait := d - time.Since(b.last); wait > 0 {
		b.sleep(wait)
	}
}

func (b *Bus) send(msg []byte) error {
	b.pause(writeDelay)
	_, err := b.dev.Write(msg)
	b.last = time.Now()
	return err
}

// Get returns the current and maximum value of a VCP feature.
func (b *Bus) Get(cmd brightness.Command) (current, max uint16, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for attempt := 0; attempt < retries; attempt++ {
		if err = b.send(encodeGet(byte(cmd))); err != nil {
			continue
		}
		b.sleep(replyDelay)

		buf := make([]byte, replyLen)
		if _, err = io.ReadFull(b.dev, buf); err != nil {
			continue
		}
		current, max, err = decodeReply(byte(cmd), buf)
		if err == nil || errors.Is(err, ErrUnsupported) {
			return current, max, err
		}
	}
	return 0, 0, err
}

func (b *Bus) Set(cmd brightness.Command, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		if err = b.send(encodeSet(byte(cmd), value)); err == nil {
			return nil
		}
	}
	return err
}

func (b *Bus) ReadRegister(cmd brightness.Command) (int, error) {
	current, _, err := b.Get(cmd)
	return int(current), err
}

func (b *Bus) WriteRegister(cmd brightness.Command, value int) error {
	if value < 0 {
		value = 0
	}
	if value > 0xFFFF {
		value = 0xFFFF
	}
	return b.Set(cmd, uint16(value))
}

func (b *Bus) Close() error {
	return b.dev.Close()
}

// BusForConnector finds the i2c device DRM exposes for a connector name like
// "DP-1" or "HDMI-1".
func BusForConnector(connector string) (string, bool) {
	names := []string{connector}
	if rest, ok := strings.CutPrefix(connector, "HDMI-"); ok && !strings.HasPrefix(rest, "A-") {
		names = append(names, "HDMI-A-"+rest)
	}

	for _, name := range names {
		dirs, _ := filepath.Glob("/sys/class/drm/card*-" + name)
		for _, dir := range dirs {
			if target, err := filepath.EvalSymlinks(filepath.Join(dir, "ddc")); err == nil {
				return filepath.Join("/dev", filepath.Base(target)), true
			}
			if buses, _ := filepath.Glob(filepath.Join(dir, "i2c-*")); len(buses) > 0 {
				return filepath.Join("/dev", filepath.Base(buses[0])), true
			}
		}
	}
	return "", false
}
