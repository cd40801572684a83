package probe

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sockaddr(family uint16, tail ...byte) [AddrLen]byte {
	var raw [AddrLen]byte
	binary.NativeEndian.PutUint16(raw[0:2], family)
	copy(raw[2:], tail)
	return raw
}

func TestParseIPv4(t *testing.T) {
	tests := []struct {
		name string
		raw  [AddrLen]byte
		want uint32
	}{
		{"ipv4", sockaddr(2, 0, 0, 192, 168, 1, 1), 0xC0A80101},
		{"ipv4 with port", sockaddr(2, 0x08, 0x01, 10, 0, 0, 7), 0x0A000007},
		{"ipv6", sockaddr(10, 0, 0, 192, 168, 1, 1, 0xfe, 0x80), 0},
		{"unix", sockaddr(1, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff), 0},
		{"unset", [AddrLen]byte{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseIPv4(tt.raw))
		})
	}
}

type fakeRequest struct {
	uid    uint32
	uidOK  bool
	addr   [AddrLen]byte
	addrOK bool
}

func (f *fakeRequest) PrincipalID() (uint32, bool) { return f.uid, f.uidOK }

func (f *fakeRequest) RawClientAddr() ([AddrLen]byte, bool) { return f.addr, f.addrOK }

func TestBuildKey(t *testing.T) {
	v4 := sockaddr(2, 0, 0, 192, 168, 1, 1)

	assert.Equal(t,
		TrafficKey{Ino: 100, UID: 1000, IPv4: 0xC0A80101},
		BuildKey(100, &fakeRequest{uid: 1000, uidOK: true, addr: v4, addrOK: true}))

	assert.Equal(t,
		TrafficKey{Ino: 100, UID: 1000},
		BuildKey(100, &fakeRequest{uid: 1000, uidOK: true, addr: v4}),
		"unreadable address defaults to 0")

	assert.Equal(t,
		TrafficKey{Ino: 100, IPv4: 0xC0A80101},
		BuildKey(100, &fakeRequest{uid: 1000, addr: v4, addrOK: true}),
		"unreadable principal defaults to 0")

	assert.Equal(t, TrafficKey{Ino: 7}, BuildKey(7, nil))
}

func TestFormatIPv4(t *testing.T) {
	assert.Equal(t, "192.168.1.1", FormatIPv4(0xC0A80101))
	assert.Equal(t, "0.0.0.0", FormatIPv4(0))
	assert.Equal(t, "ino=5 uid=0 ip=10.0.0.7", TrafficKey{Ino: 5, IPv4: 0x0A000007}.String())
}
