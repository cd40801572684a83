// nfscollector/utility/ip.go
package utility

import (
	"encoding/binary"
	"net"
)

// IPv4ToInt converts a dotted-quad address to the numeric form used in
// probe keys (network byte order read as a big-endian integer).
func IPv4ToInt(ip net.IP) (uint32, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v4), true
}
