// probe/host.go
// Package probe holds the per-operation logic that runs at the nfsd write
// and read hooks: safe traversal of host structures, key building, traffic
// aggregation and filename event emission.
package probe

// Sizes shared with the kernel program in bpf/nfs_traffic.c.
const (
	NameLen = 64 // d_name buffer, including the terminating NUL
	AddrLen = 16 // leading bytes of rq_addr (sockaddr_storage)
)

// RequestContext mirrors the parts of struct svc_rqst the handlers read.
// Every accessor reports ok=false when the field cannot be read.
type RequestContext interface {
	PrincipalID() (uint32, bool)
	RawClientAddr() ([AddrLen]byte, bool)
}

// CompoundState mirrors struct nfsd4_compound_state; CurrentDentry follows
// current_fh.fh_dentry.
type CompoundState interface {
	CurrentDentry() (Dentry, bool)
}

// Dentry mirrors struct dentry.
type Dentry interface {
	Inode() (Inode, bool)
	Name() ([]byte, bool)
	Parent() (Dentry, bool)
}

// Inode mirrors struct inode.
type Inode interface {
	Ino() (uint64, bool)
}

// OpParams mirrors union nfsd4_op_u. Only the member matching the hook is
// meaningful.
type OpParams interface {
	WritePayloadLen() (uint32, bool) // write.wr_payload.buflen
	ReadLength() (uint32, bool)      // read.rd_length
}
