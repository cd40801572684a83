// probe/hostsim/hostsim.go
// Package hostsim provides in-memory stand-ins for the nfsd structures the
// probe reads. A nil pointer anywhere in a chain behaves like a NULL
// kernel pointer.
package hostsim

import (
	"encoding/binary"
	"net/netip"

	"nfstraffic/probe"
)

const (
	afInet  = 2
	afInet6 = 10
)

// Inode is a struct inode with only i_ino.
type Inode struct {
	Number uint64
}

func (i *Inode) Ino() (uint64, bool) { return i.Number, true }

// Dentry is a struct dentry. A dentry with a nil Up is the root and is
// its own parent.
type Dentry struct {
	Label string
	Node  *Inode
	Up    *Dentry
}

func (d *Dentry) Inode() (probe.Inode, bool) {
	if d.Node == nil {
		return nil, false
	}
	return d.Node, true
}

func (d *Dentry) Name() ([]byte, bool) { return []byte(d.Label), true }

func (d *Dentry) Parent() (probe.Dentry, bool) {
	if d.Up == nil {
		return d, true
	}
	return d.Up, true
}

// NewFile builds a dentry for name under parent with inode number ino.
func NewFile(parent *Dentry, name string, ino uint64) *Dentry {
	return &Dentry{Label: name, Node: &Inode{Number: ino}, Up: parent}
}

// CompoundState holds the current file handle's dentry.
type CompoundState struct {
	Current *Dentry
}

func (c *CompoundState) CurrentDentry() (probe.Dentry, bool) {
	if c.Current == nil {
		return nil, false
	}
	return c.Current, true
}

// Request is a struct svc_rqst with the credential and peer address.
type Request struct {
	UID  uint32
	Addr [probe.AddrLen]byte
}

func (r *Request) PrincipalID() (uint32, bool) { return r.UID, true }

func (r *Request) RawClientAddr() ([probe.AddrLen]byte, bool) { return r.Addr, true }

// NewRequest builds a request from uid and client address. An invalid
// addr leaves the address zeroed (family 0).
func NewRequest(uid uint32, addr netip.Addr) *Request {
	return &Request{UID: uid, Addr: SockAddr(addr)}
}

// SockAddr lays out addr the way the leading bytes of a sockaddr_in or
// sockaddr_in6 look in host memory.
func SockAddr(addr netip.Addr) [probe.AddrLen]byte {
	var raw [probe.AddrLen]byte
	switch {
	case addr.Is4():
		binary.NativeEndian.PutUint16(raw[0:2], afInet)
		a := addr.As4()
		copy(raw[4:8], a[:])
	case addr.Is6():
		binary.NativeEndian.PutUint16(raw[0:2], afInet6)
		a := addr.As16()
		// sin6_flowinfo occupies 4..7; the address starts at 8
		copy(raw[8:16], a[:8])
	}
	return raw
}

// Op is a union nfsd4_op_u.
type Op struct {
	PayloadLen uint32
	Length     uint32
}

func (o *Op) WritePayloadLen() (uint32, bool) { return o.PayloadLen, true }

func (o *Op) ReadLength() (uint32, bool) { return o.Length, true }

// WriteOp returns params for a write of n bytes.
func WriteOp(n uint32) *Op { return &Op{PayloadLen: n} }

// ReadOp returns params for a read of n bytes.
func ReadOp(n uint32) *Op { return &Op{Length: n} }
