// probe/key.go
package probe

import (
	"encoding/binary"
	"fmt"
)

// afInet is AF_INET as stored in sockaddr.sa_family.
const afInet = 2

// TrafficKey identifies one aggregation bucket. Field order and widths
// match struct key_t in the kernel program.
type TrafficKey struct {
	Ino  uint64 // inode number of the file
	UID  uint32 // rq_cred.cr_uid
	IPv4 uint32 // client address in network order, 0 if unknown or not IPv4
}

func (k TrafficKey) String() string {
	return fmt.Sprintf("ino=%d uid=%d ip=%s", k.Ino, k.UID, FormatIPv4(k.IPv4))
}

// ParseIPv4 extracts sin_addr from the leading bytes of a sockaddr. The
// family tag is in host byte order; the address is returned as the
// numeric value of the network-order bytes, so 192.168.1.1 is 0xC0A80101.
// IPv6 and every other family collapse to 0, which means distinct IPv6
// clients share a bucket.
func ParseIPv4(raw [AddrLen]byte) uint32 {
	if binary.NativeEndian.Uint16(raw[0:2]) != afInet {
		return 0
	}
	return binary.BigEndian.Uint32(raw[4:8])
}

// ClientIPv4 reads rq_addr and parses it; unreadable addresses yield 0.
func ClientIPv4(rq RequestContext) uint32 {
	if isNil(rq) {
		return 0
	}
	raw, ok := read(rq.RawClientAddr)
	if !ok {
		return 0
	}
	return ParseIPv4(raw)
}

// BuildKey composes the bucket key for one invocation. An unreadable
// principal reads as uid 0, the same value BPF_CORE_READ leaves behind.
func BuildKey(ino uint64, rq RequestContext) TrafficKey {
	key := TrafficKey{Ino: ino, IPv4: ClientIPv4(rq)}
	if !isNil(rq) {
		if uid, ok := read(rq.PrincipalID); ok {
			key.UID = uid
		}
	}
	return key
}

// FormatIPv4 renders a key address as dotted quad.
func FormatIPv4(ip uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip))
}
