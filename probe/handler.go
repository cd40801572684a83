// probe/handler.go
package probe

import (
	"go.uber.org/zap"
)

// OnWrite handles one nfsd4_write. The byte count is the payload buffer
// length, not the number of bytes the filesystem ended up writing.
func (p *Probe) OnWrite(rq RequestContext, cs CompoundState, op OpParams) {
	p.handle(rq, cs, true, func() (uint32, bool) {
		if isNil(op) {
			return 0, false
		}
		return read(op.WritePayloadLen)
	})
}

// OnRead handles one nfsd4_read. The byte count is the requested length.
func (p *Probe) OnRead(rq RequestContext, cs CompoundState, op OpParams) {
	p.handle(rq, cs, false, func() (uint32, bool) {
		if isNil(op) {
			return 0, false
		}
		return read(op.ReadLength)
	})
}

func (p *Probe) handle(rq RequestContext, cs CompoundState, isWrite bool, byteCount func() (uint32, bool)) {
	p.invocations.Inc()

	dentry, ino, err := ReadIno(cs)
	if err != nil {
		p.aborted.Inc()
		p.logger.Debug("skipping operation", zap.Bool("write", isWrite), zap.Error(err))
		return
	}

	var name, parent [NameLen]byte
	ReadName(&name, dentry)
	if p.cfg.ParentNames {
		if pd, ok := ReadParent(dentry); ok {
			ReadName(&parent, pd)
		}
	}

	key := BuildKey(ino, rq)
	n, _ := byteCount()

	if p.table.Record(key, isWrite, n) {
		p.recorded.Inc()
	}

	var parentPtr *[NameLen]byte
	if p.cfg.ParentNames {
		parentPtr = &parent
	}
	if p.emitter.Emit(key.Ino, &name, parentPtr) {
		p.emitted.Inc()
	}

	if ce := p.logger.Check(zap.DebugLevel, "nfs operation"); ce != nil {
		ce.Write(
			zap.Bool("write", isWrite),
			zap.Uint32("bytes", n),
			zap.Stringer("key", key),
			zap.String("name", NameString(name)))
	}
}
