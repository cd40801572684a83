package probe

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInode struct {
	ino uint64
	ok  bool
}

func (f *fakeInode) Ino() (uint64, bool) { return f.ino, f.ok }

type fakeDentry struct {
	inode  Inode
	name   []byte
	parent Dentry
	panics bool
}

func (f *fakeDentry) Inode() (Inode, bool) {
	if f.panics {
		panic("bad pointer")
	}
	return f.inode, f.inode != nil
}

func (f *fakeDentry) Name() ([]byte, bool) { return f.name, f.name != nil }

func (f *fakeDentry) Parent() (Dentry, bool) { return f.parent, f.parent != nil }

type fakeState struct{ dentry Dentry }

func (f *fakeState) CurrentDentry() (Dentry, bool) { return f.dentry, true }

func TestReadInoChain(t *testing.T) {
	var typedNil *fakeDentry

	tests := []struct {
		name    string
		state   CompoundState
		wantErr error
		wantIno uint64
	}{
		{name: "nil state", state: nil, wantErr: ErrNoDentry},
		{name: "no dentry", state: &fakeState{}, wantErr: ErrNoDentry},
		{name: "typed nil dentry", state: &fakeState{dentry: typedNil}, wantErr: ErrNoDentry},
		{name: "no inode", state: &fakeState{dentry: &fakeDentry{}}, wantErr: ErrNoInode},
		{name: "panicking accessor", state: &fakeState{dentry: &fakeDentry{panics: true}}, wantErr: ErrNoInode},
		{name: "unreadable ino", state: &fakeState{dentry: &fakeDentry{inode: &fakeInode{}}}, wantErr: ErrNoInode},
		{name: "complete", state: &fakeState{dentry: &fakeDentry{inode: &fakeInode{ino: 42, ok: true}}}, wantIno: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ino, err := ReadIno(tt.state)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantIno, ino)
		})
	}
}

func TestReadNameTruncates(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 100)
	buf := [NameLen]byte{}

	n := ReadName(&buf, &fakeDentry{name: long})

	assert.Equal(t, NameLen-1, n)
	assert.Equal(t, byte(0), buf[NameLen-1])
	assert.Equal(t, string(long[:NameLen-1]), NameString(buf))
}

func TestReadNameExactFit(t *testing.T) {
	buf := [NameLen]byte{}
	src := bytes.Repeat([]byte("a"), NameLen-1)

	n := ReadName(&buf, &fakeDentry{name: src})

	assert.Equal(t, NameLen-1, n)
	assert.Equal(t, string(src), NameString(buf))
}

func TestReadNameStopsAtNUL(t *testing.T) {
	buf := [NameLen]byte{}
	for i := range buf {
		buf[i] = 0xff
	}

	n := ReadName(&buf, &fakeDentry{name: []byte("a.txt\x00junk")})

	assert.Equal(t, 5, n)
	assert.Equal(t, "a.txt", NameString(buf))
	assert.Equal(t, [NameLen - 5]byte{}, [NameLen - 5]byte(buf[5:]), "tail must be zeroed")
}

func TestReadNameUnavailable(t *testing.T) {
	buf := [NameLen]byte{'s', 't', 'a', 'l', 'e'}

	assert.Zero(t, ReadName(&buf, nil))
	assert.Equal(t, [NameLen]byte{}, buf)

	assert.Zero(t, ReadName(&buf, &fakeDentry{}))
	assert.Equal(t, "", NameString(buf))
}

func TestReadParent(t *testing.T) {
	parent := &fakeDentry{name: []byte("exports")}

	p, ok := ReadParent(&fakeDentry{parent: parent})
	require.True(t, ok)
	assert.Same(t, parent, p)

	_, ok = ReadParent(&fakeDentry{})
	assert.False(t, ok)

	_, ok = ReadParent(nil)
	assert.False(t, ok)
}
