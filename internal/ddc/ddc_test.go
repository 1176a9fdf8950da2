package ddc

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/hoppxi/glint/pkg/brightness"
)

type fakeDevice struct {
	written [][]byte
	replies [][]byte
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	f.written = append(f.written, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeDevice) Read(p []byte) (int, error) {
	if len(f.replies) == 0 {
		return 0, errors.New("no reply")
	}
	n := copy(p, f.replies[0])
	f.replies = f.replies[1:]
	return n, nil
}

func (f *fakeDevice) Close() error { return nil }

func reply(code byte, result byte, max, current uint16) []byte {
	msg := []byte{destAddr, 0x88, opGetVCPReply, result, code, 0x00,
		byte(max >> 8), byte(max), byte(current >> 8), byte(current)}
	return append(msg, checksum(replyAddr, msg))
}

func newTestBus(dev *fakeDevice) *Bus {
	b := newBus("/dev/i2c-test", dev)
	b.sleep = func(time.Duration) {}
	return b
}

func TestEncodeSet(t *testing.T) {
	got := encodeSet(0x10, 50)
	want := []byte{0x51, 0x84, 0x03, 0x10, 0x00, 0x32, 0x6E ^ 0x51 ^ 0x84 ^ 0x03 ^ 0x10 ^ 0x00 ^ 0x32}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeSet = % x, want % x", got, want)
	}
}

func TestEncodeGet(t *testing.T) {
	got := encodeGet(0x10)
	want := []byte{0x51, 0x82, 0x01, 0x10, 0x6E ^ 0x51 ^ 0x82 ^ 0x01 ^ 0x10}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeGet = % x, want % x", got, want)
	}
}

func TestDecodeReply(t *testing.T) {
	cur, max, err := decodeReply(0x10, reply(0x10, 0, 100, 64))
	if err != nil {
		t.Fatalf("decodeReply: %v", err)
	}
	if cur != 64 || max != 100 {
		t.Errorf("got current=%d max=%d, want 64/100", cur, max)
	}
}

func TestDecodeReplyErrors(t *testing.T) {
	bad := reply(0x10, 0, 100, 64)
	bad[10] ^= 0xFF

	tests := []struct {
		name string
		buf  []byte
		want error
	}{
		{"short", []byte{0x6E, 0x88}, ErrBadReply},
		{"checksum", bad, ErrChecksum},
		{"unsupported", reply(0x10, 1, 0, 0), ErrUnsupported},
		{"wrong code", reply(0x12, 0, 100, 50), ErrBadReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := decodeReply(0x10, tt.buf); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBusReadRetries(t *testing.T) {
	bad := reply(0x10, 0, 100, 30)
	bad[10] ^= 0x01
	dev := &fakeDevice{replies: [][]byte{bad, reply(0x10, 0, 100, 30)}}
	b := newTestBus(dev)

	v, err := b.ReadRegister(brightness.Brightness)
	if err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if v != 30 {
		t.Errorf("value = %d, want 30", v)
	}
	if len(dev.written) != 2 {
		t.Errorf("requests = %d, want 2", len(dev.written))
	}
}

func TestBusWriteClamps(t *testing.T) {
	dev := &fakeDevice{}
	b := newTestBus(dev)

	if err := b.WriteRegister(brightness.Brightness, 70000); err != nil {
		t.Fatal(err)
	}
	if got := dev.written[0]; got[4] != 0xFF || got[5] != 0xFF {
		t.Errorf("value bytes = % x, want ff ff", got[4:6])
	}
}
