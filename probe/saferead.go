// probe/saferead.go
package probe

import (
	"errors"
	"reflect"
)

var (
	// ErrUnavailable reports an absent or unreadable host structure.
	ErrUnavailable = errors.New("host structure unavailable")
	ErrNoDentry    = wrapUnavailable("dentry")
	ErrNoInode     = wrapUnavailable("inode")
)

type unavailableError struct{ what string }

func wrapUnavailable(what string) error { return &unavailableError{what} }

func (e *unavailableError) Error() string { return "could not read " + e.what }
func (e *unavailableError) Unwrap() error { return ErrUnavailable }

// read runs a single accessor step. A nil receiver or a panicking accessor
// reads as absent, the way bpf_probe_read returns an error instead of
// faulting.
func read[T any](f func() (T, bool)) (v T, ok bool) {
	defer func() {
		if recover() != nil {
			var zero T
			v, ok = zero, false
		}
	}()
	return f()
}

// isNil catches typed nil pointers stored in an interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// ReadDentry follows cstate->current_fh.fh_dentry.
func ReadDentry(cs CompoundState) (Dentry, error) {
	if isNil(cs) {
		return nil, ErrNoDentry
	}
	d, ok := read(cs.CurrentDentry)
	if !ok || isNil(d) {
		return nil, ErrNoDentry
	}
	return d, nil
}

// ReadInode follows dentry->d_inode.
func ReadInode(d Dentry) (Inode, error) {
	if isNil(d) {
		return nil, ErrNoInode
	}
	in, ok := read(d.Inode)
	if !ok || isNil(in) {
		return nil, ErrNoInode
	}
	return in, nil
}

// ReadIno resolves the full chain down to i_ino. An inode whose number
// cannot be read is treated like a missing inode.
func ReadIno(cs CompoundState) (Dentry, uint64, error) {
	d, err := ReadDentry(cs)
	if err != nil {
		return nil, 0, err
	}
	in, err := ReadInode(d)
	if err != nil {
		return nil, 0, err
	}
	ino, ok := read(in.Ino)
	if !ok {
		return nil, 0, ErrNoInode
	}
	return d, ino, nil
}

// ReadParent follows dentry->d_parent. The root dentry is its own parent
// in the kernel, so callers get the root's name back for top-level files.
func ReadParent(d Dentry) (Dentry, bool) {
	if isNil(d) {
		return nil, false
	}
	p, ok := read(d.Parent)
	if !ok || isNil(p) {
		return nil, false
	}
	return p, true
}

// ReadName copies dentry->d_name.name into buf with bpf_probe_read_str
// semantics: at most NameLen-1 bytes, stopping at the first NUL, always
// terminated, the rest zeroed. It returns the number of content bytes.
func ReadName(buf *[NameLen]byte, d Dentry) int {
	*buf = [NameLen]byte{}
	if isNil(d) {
		return 0
	}
	name, ok := read(d.Name)
	if !ok {
		return 0
	}
	return CopyName(buf, name)
}

// CopyName is the truncating copy used by ReadName.
func CopyName(buf *[NameLen]byte, src []byte) int {
	n := 0
	for n < NameLen-1 && n < len(src) && src[n] != 0 {
		buf[n] = src[n]
		n++
	}
	buf[n] = 0
	return n
}

// NameString returns the content of a NUL-terminated name buffer.
func NameString(buf [NameLen]byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf[:])
}
