// nfscollector/utility/command.go
package utility

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Opcode represents a view command typed into the UI.
type Opcode int

const (
	OpSort      Opcode = iota + 1 // change the file table ordering
	OpFilterUID                   // only show one user
	OpFilterIP                    // only show one client
	OpClear                       // drop filters
)

func (o Opcode) String() string {
	switch o {
	case OpSort:
		return "sort"
	case OpFilterUID:
		return "filter uid"
	case OpFilterIP:
		return "filter ip"
	case OpClear:
		return "clear"
	default:
		return "unknown"
	}
}

// SortKey selects the file table ordering.
type SortKey int

const (
	SortBytes SortKey = iota
	SortRequests
)

type Command struct {
	Op   Opcode
	Sort SortKey // for sort
	UID  uint32  // for filter uid
	IPv4 uint32  // for filter ip
}

func ParseCommand(input string) (*Command, error) {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	switch parts[0] {
	case "clear":
		if len(parts) != 1 {
			return nil, fmt.Errorf("clear takes no arguments")
		}
		return &Command{Op: OpClear}, nil

	case "sort":
		// "sort" is followed by "bytes" or "requests"
		if len(parts) != 2 {
			return nil, fmt.Errorf("usage: sort bytes|requests")
		}
		switch parts[1] {
		case "bytes":
			return &Command{Op: OpSort, Sort: SortBytes}, nil
		case "requests", "reqs":
			return &Command{Op: OpSort, Sort: SortRequests}, nil
		}
		return nil, fmt.Errorf("unknown sort key %q", parts[1])

	case "filter":
		// "filter" is followed by "uid N" or "ip A.B.C.D"
		if len(parts) != 3 {
			return nil, fmt.Errorf("usage: filter uid N | filter ip A.B.C.D")
		}
		switch parts[1] {
		case "uid":
			uid, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid uid %q", parts[2])
			}
			return &Command{Op: OpFilterUID, UID: uint32(uid)}, nil
		case "ip":
			ip, ok := IPv4ToInt(net.ParseIP(parts[2]))
			if !ok {
				return nil, fmt.Errorf("bad IPv4 address %q", parts[2])
			}
			return &Command{Op: OpFilterIP, IPv4: ip}, nil
		}
		return nil, fmt.Errorf("unknown filter %q", parts[1])

	default:
		return nil, fmt.Errorf("unknown op %q", parts[0])
	}
}
