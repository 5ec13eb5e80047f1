package decoder

import (
	"io"

	"github.com/danmuck/formwire/header"
	"github.com/danmuck/formwire/internal/observability"
)

// Entry is one decoded part: its header plus a bounded reader over its
// payload. The reader stops exactly at the byte before the next
// delimiter; it never reads past it. An Entry is invalidated as soon as
// the decoder moves on, after which every operation reports
// ErrEntryConsumed.
type Entry struct {
	Header header.Header

	d *Decoder

	// payload bytes identified in the buffer but not yet handed out
	n int
	// terminal state for this entry: io.EOF once the delimiter is
	// reached, or the source's error
	err error
	// sticky error from the underlying source, consulted by the scanner
	readErr error

	total   int64
	counted bool
	invalid bool
}

// Read yields the part's payload bytes.
//
// The loop peeks at everything buffered, asks the scanner how much of it
// is payload, and forces one more byte into the buffer whenever the
// scanner held everything back as a possible delimiter prefix. A
// delimiter split across two reads of the source is reassembled in the
// buffer before the scanner ever sees its tail.
func (e *Entry) Read(p []byte) (int, error) {
	if e.invalid || e.d == nil {
		return 0, ErrEntryConsumed
	}
	br := e.d.br

	for e.n == 0 && e.err == nil {
		peek, _ := br.Peek(br.Buffered())
		e.n, e.err = scanPayload(peek, e.d.delim, e.readErr)
		if e.err == io.EOF && !e.counted {
			e.counted = true
			observability.ObserveDecodedEntry(e.total + int64(e.n))
		}
		if e.n == 0 && e.err == nil {
			// everything buffered could still be delimiter prefix
			_, e.readErr = br.Peek(len(peek) + 1)
			if e.readErr == io.EOF {
				e.readErr = io.ErrUnexpectedEOF
			}
		}
	}

	if e.n == 0 {
		return 0, e.err
	}
	n := len(p)
	if n > e.n {
		n = e.n
	}
	n, _ = br.Read(p[:n])
	e.total += int64(n)
	e.n -= n
	if e.n == 0 {
		return n, e.err
	}
	return n, nil
}

// Next consumes the remainder of this entry and returns the one that
// follows, or io.EOF after the terminal delimiter. The receiver must not
// be used afterwards.
func (e *Entry) Next() (*Entry, error) {
	if e.invalid || e.d == nil {
		return nil, ErrEntryConsumed
	}
	if e.d.current != e {
		return nil, ErrEntryConsumed
	}
	return e.d.ReadEntry()
}

// discard scans forward to this entry's delimiter, dropping unread
// payload bytes.
func (e *Entry) discard() error {
	if e.invalid {
		return nil
	}
	buf := make([]byte, 4096)
	for {
		_, err := e.Read(buf)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
