package proto

import (
	"bytes"

	"github.com/valyala/bytebufferpool"
)

// ResolvedName is a NUL-terminated name buffer owned by the caller.
// It must be released with Release once the caller is done with it.
type ResolvedName struct {
	buf *bytebufferpool.ByteBuffer
}

// NewResolvedName copies text into a pooled buffer and terminates it with NUL
func NewResolvedName(text string) *ResolvedName {
	b := bytebufferpool.Get()
	_, _ = b.WriteString(text)
	_ = b.WriteByte(0)
	return &ResolvedName{buf: b}
}

// Bytes returns the raw buffer including the terminating NUL.
// The slice is invalid after Release.
func (n *ResolvedName) Bytes() []byte {
	if n == nil || n.buf == nil {
		return nil
	}
	return n.buf.Bytes()
}

// String returns the name up to the first NUL
func (n *ResolvedName) String() string {
	b := n.Bytes()
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Release returns the buffer to the pool. Calling it twice is a no-op.
func (n *ResolvedName) Release() {
	if n == nil || n.buf == nil {
		return
	}
	bytebufferpool.Put(n.buf)
	n.buf = nil
}

// Released reports whether Release has been called
func (n *ResolvedName) Released() bool {
	return n == nil || n.buf == nil
}
