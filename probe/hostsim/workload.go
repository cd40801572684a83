// probe/hostsim/workload.go
package hostsim

import (
	"fmt"
	"math/rand/v2"
	"net/netip"
)

// Operation is one generated hook invocation.
type Operation struct {
	Write   bool
	Request *Request
	State   *CompoundState
	Params  *Op
}

// Workload generates NFS operations over a small export tree: a fixed set
// of files, users and clients, with a share of requests whose file handle
// has no dentry.
type Workload struct {
	rnd      *rand.Rand
	files    []*Dentry
	requests []*Request
	orphans  float64
}

// NewWorkload builds a deterministic workload for seed.
func NewWorkload(seed uint64, files, users, clients int, orphans float64) *Workload {
	w := &Workload{
		rnd:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		orphans: orphans,
	}
	files, users, clients = max(files, 1), max(users, 1), max(clients, 1)

	root := &Dentry{Label: "/", Node: &Inode{Number: 2}}
	dirs := []*Dentry{
		NewFile(root, "home", 11),
		NewFile(root, "scratch", 12),
		NewFile(root, "datasets", 13),
	}
	for i := 0; i < files; i++ {
		dir := dirs[i%len(dirs)]
		w.files = append(w.files, NewFile(dir, fmt.Sprintf("file-%03d.dat", i), uint64(1000+i)))
	}

	for u := 0; u < users; u++ {
		for c := 0; c < clients; c++ {
			addr := netip.AddrFrom4([4]byte{10, 0, byte(c / 250), byte(c%250 + 1)})
			w.requests = append(w.requests, NewRequest(uint32(1000+u), addr))
		}
	}
	return w
}

// Next returns the next operation.
func (w *Workload) Next() Operation {
	op := Operation{
		Write:   w.rnd.IntN(3) == 0,
		Request: w.requests[w.rnd.IntN(len(w.requests))],
		State:   &CompoundState{},
	}
	if w.rnd.Float64() >= w.orphans {
		op.State.Current = w.files[w.rnd.IntN(len(w.files))]
	}

	// NFSv4 clients typically use rsize/wsize-sized transfers
	size := uint32(4096 << w.rnd.IntN(6))
	if op.Write {
		op.Params = WriteOp(size)
	} else {
		op.Params = ReadOp(size)
	}
	return op
}
