// Package transport carries the handoff surface between the codec and
// whatever moves the bytes: a body is a byte stream plus a boundary token
// and, optionally, a declared content length. Buffer is an in-memory
// implementation of that surface, standing in for an HTTP exchange in
// tests and embedding hosts.
package transport

import "bytes"

// Buffer is a byte sink that captures an encoded body together with its
// boundary and an optionally declared content length.
type Buffer struct {
	buf      bytes.Buffer
	boundary string
	declared int64
}

// NewBuffer returns a capture sink for a body framed by the given
// boundary. No content length is declared until SetContentLength.
func NewBuffer(boundary string) *Buffer {
	return &Buffer{boundary: boundary, declared: -1}
}

func (b *Buffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// SetContentLength declares the body length a transport would announce
// ahead of the bytes.
func (b *Buffer) SetContentLength(n int64) {
	b.declared = n
}

// Boundary returns the delimiter token the body was framed with.
func (b *Buffer) Boundary() string {
	return b.boundary
}

// Len returns the number of bytes captured so far.
func (b *Buffer) Len() int {
	return b.buf.Len()
}

// Request snapshots the captured body as the decode-side view: a byte
// source carrying the boundary, the declared length, and the actual
// size.
func (b *Buffer) Request() *Request {
	return &Request{
		rd:       bytes.NewReader(b.buf.Bytes()),
		boundary: b.boundary,
		declared: b.declared,
	}
}

// Request is the source side of a captured body.
type Request struct {
	rd       *bytes.Reader
	boundary string
	declared int64
}

func (r *Request) Read(p []byte) (int, error) {
	return r.rd.Read(p)
}

// Boundary returns the delimiter token negotiated for the body.
func (r *Request) Boundary() string {
	return r.boundary
}

// ContentLength returns the declared body length, if one was declared.
func (r *Request) ContentLength() (int64, bool) {
	if r.declared < 0 {
		return 0, false
	}
	return r.declared, true
}

// Size returns the actual number of body bytes, regardless of how many
// have been read.
func (r *Request) Size() int64 {
	return r.rd.Size()
}
