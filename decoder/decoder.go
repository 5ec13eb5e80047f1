// Package decoder owns the streaming side of the codec: walking a byte
// source for boundary delimiters and exposing each delimited region as a
// bounded, strictly sequential entry reader.
//
// Ownership boundary:
// - delimiter scanning, including matches that straddle read buffers
// - per-part header block parsing
// - the one-live-entry ordering contract
package decoder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	"github.com/danmuck/formwire/boundary"
	"github.com/danmuck/formwire/header"
	"github.com/danmuck/formwire/internal/logging"
	"github.com/danmuck/formwire/internal/observability"
)

var (
	ErrNotMultipart    = errors.New("decoder: source is not a multipart form body")
	ErrMalformedHeader = errors.New("decoder: malformed part header")
	ErrLengthMismatch  = errors.New("decoder: declared content length does not match source size")
	ErrEntryConsumed   = errors.New("decoder: entry already consumed")
)

// Request is the transport-level view of an incoming body: the bytes, the
// boundary token negotiated out of band, and the length the peer declared,
// if any.
type Request interface {
	io.Reader
	Boundary() string
	ContentLength() (int64, bool)
}

// Decoder yields the parts of one multipart body in order. It is not
// reentrant: at most one live Entry exists at a time, and requesting the
// next entry discards whatever the previous one left unread.
type Decoder struct {
	br      *bufio.Reader
	bound   string
	delim   []byte // "\r\n--" + boundary, the anchor every part ends at
	current *Entry
	started bool
	done    bool
	err     error
	entries int
}

// New returns a decoder reading r, framed by the given boundary token.
func New(r io.Reader, token string) (*Decoder, error) {
	if r == nil {
		observability.ObserveDecodeFailure("not_multipart")
		return nil, ErrNotMultipart
	}
	if err := boundary.Validate(token); err != nil {
		observability.ObserveDecodeFailure("not_multipart")
		return nil, fmt.Errorf("%w: %v", ErrNotMultipart, err)
	}
	return &Decoder{
		br:    bufio.NewReaderSize(r, 4096),
		bound: token,
		delim: []byte("\r\n--" + token),
	}, nil
}

// FromRequest builds a decoder from a transport request. When the source
// reports its actual size, a declared content length that disagrees with
// it fails here, before any decoding.
func FromRequest(req Request) (*Decoder, error) {
	if req == nil {
		observability.ObserveDecodeFailure("not_multipart")
		return nil, ErrNotMultipart
	}
	if declared, ok := req.ContentLength(); ok {
		if sized, hasSize := req.(interface{ Size() int64 }); hasSize && sized.Size() != declared {
			observability.ObserveDecodeFailure("length_mismatch")
			return nil, ErrLengthMismatch
		}
	}
	return New(req, req.Boundary())
}

// Boundary returns the delimiter token in use.
func (d *Decoder) Boundary() string {
	return d.bound
}

// ReadEntry returns the next part, or io.EOF after the terminal
// delimiter. Unread bytes of the previously returned entry are discarded
// by scanning forward; they are never folded into the next entry.
func (d *Decoder) ReadEntry() (*Entry, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.done {
		return nil, io.EOF
	}

	if d.current != nil {
		err := d.current.discard()
		d.current.invalid = true
		d.current = nil
		if err != nil {
			return nil, d.fail(err, "io")
		}
	}

	var end bool
	var err error
	if !d.started {
		d.started = true
		end, err = d.seekFirstDelimiter()
	} else {
		end, err = d.advance()
	}
	if err != nil {
		return nil, d.fail(err, failureReason(err))
	}
	if end {
		d.done = true
		logging.Logger.Debug().
			Int("entries", d.entries).
			Msg("decoder: body complete")
		return nil, io.EOF
	}

	mh, err := textproto.NewReader(d.br).ReadMIMEHeader()
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		return nil, d.fail(wrapped, "malformed_header")
	}
	h, err := header.Parse(mh)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrMalformedHeader, err)
		return nil, d.fail(wrapped, "malformed_header")
	}

	entry := &Entry{Header: h, d: d}
	d.current = entry
	d.entries++
	logging.Logger.Trace().
		Str("name", h.Name).
		Str("filename", h.Filename).
		Msg("decoder: entry header parsed")
	return entry, nil
}

// seekFirstDelimiter positions the stream just past the first delimiter
// line. The first delimiter has no preceding CRLF; anything before it is
// preamble and is skipped. Reports end for an immediately terminal body.
func (d *Decoder) seekFirstDelimiter() (bool, error) {
	dash := "--" + d.bound
	for {
		line, err := d.br.ReadString('\n')
		switch strings.TrimRight(line, "\r\n") {
		case dash:
			if err != nil {
				// delimiter with no header block behind it
				return false, io.ErrUnexpectedEOF
			}
			return false, nil
		case dash + "--":
			d.drainEpilogue()
			return true, nil
		}
		if err == io.EOF {
			return false, io.ErrUnexpectedEOF
		}
		if err != nil {
			return false, err
		}
	}
}

// advance consumes the delimiter the current entry stopped at and reports
// whether it closed the body. The entry reader only stops on a confirmed
// delimiter, so the two bytes after it are already buffered.
func (d *Decoder) advance() (bool, error) {
	got := make([]byte, len(d.delim))
	if _, err := io.ReadFull(d.br, got); err != nil {
		return false, unexpectedEOF(err)
	}
	if !bytes.Equal(got, d.delim) {
		return false, fmt.Errorf("%w: delimiter desync", ErrMalformedHeader)
	}

	next, err := d.br.Peek(2)
	if err != nil || len(next) < 2 {
		return false, unexpectedEOF(err)
	}
	switch {
	case next[0] == '-' && next[1] == '-':
		if _, err := d.br.Discard(2); err != nil {
			return false, unexpectedEOF(err)
		}
		d.drainEpilogue()
		return true, nil
	case next[0] == '\r' && next[1] == '\n':
		if _, err := d.br.Discard(2); err != nil {
			return false, unexpectedEOF(err)
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: delimiter desync", ErrMalformedHeader)
	}
}

// drainEpilogue swallows whatever follows the terminal delimiter. The
// body is already complete, so trailing bytes carry no information.
func (d *Decoder) drainEpilogue() {
	_, _ = io.Copy(io.Discard, d.br)
}

func (d *Decoder) fail(err error, reason string) error {
	d.err = err
	observability.ObserveDecodeFailure(reason)
	return err
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, io.ErrUnexpectedEOF):
		return "truncated"
	default:
		return "io"
	}
}

func unexpectedEOF(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
