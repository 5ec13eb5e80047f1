// Package encoder owns the eager, write-through side of the codec.
//
// Ownership boundary:
// - delimiter and header emission as fields are added
// - the terminal delimiter on Close
//
// Bytes hit the sink as soon as a field is written, so the total body
// length is unknown until Close. Transports that must announce a length
// up front use encoder/lazy instead.
package encoder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danmuck/formwire/boundary"
	"github.com/danmuck/formwire/header"
	"github.com/danmuck/formwire/internal/logging"
	"github.com/danmuck/formwire/internal/observability"
)

var ErrInvalidState = errors.New("encoder: encoder is closed or failed")

// Encoder writes multipart/form-data parts to a sink in the order they
// are added. It is single-pass: once written, a field cannot be revised,
// and any write failure poisons the encoder for further use.
type Encoder struct {
	w        io.Writer
	boundary string
	parts    int
	closed   bool
	failed   bool
}

// New returns an encoder over w with a freshly generated boundary.
func New(w io.Writer) (*Encoder, error) {
	token, err := boundary.Generate()
	if err != nil {
		return nil, err
	}
	return NewWithBoundary(w, token)
}

// NewWithBoundary returns an encoder over w using the given boundary.
func NewWithBoundary(w io.Writer, token string) (*Encoder, error) {
	if err := boundary.Validate(token); err != nil {
		return nil, err
	}
	return &Encoder{w: w, boundary: token}, nil
}

// Boundary returns the delimiter token in use.
func (e *Encoder) Boundary() string {
	return e.boundary
}

// ContentType returns the content-type header value a transport should
// announce for this body.
func (e *Encoder) ContentType() string {
	return "multipart/form-data; boundary=" + e.boundary
}

// WriteText emits a text field. Text fields carry no filename and no
// Content-Type line.
func (e *Encoder) WriteText(name, value string) error {
	n, err := e.writePart(header.Header{Name: name}, strings.NewReader(value))
	if err != nil {
		return err
	}
	observability.ObserveEncodedPart("text", n)
	return nil
}

// WriteStream emits a binary field, copying r to the sink in bounded
// chunks. filename and contentType are omitted from the header block
// when empty.
func (e *Encoder) WriteStream(name string, r io.Reader, filename, contentType string) error {
	h := header.Header{Name: name, Filename: filename, ContentType: contentType}
	n, err := e.writePart(h, r)
	if err != nil {
		return err
	}
	observability.ObserveEncodedPart("stream", n)
	return nil
}

func (e *Encoder) writePart(h header.Header, body io.Reader) (int64, error) {
	if e.closed || e.failed {
		return 0, ErrInvalidState
	}
	if _, err := fmt.Fprintf(e.w, "--%s\r\n", e.boundary); err != nil {
		return 0, e.fail(err)
	}
	if err := h.Render(e.w); err != nil {
		return 0, e.fail(err)
	}
	n, err := io.Copy(e.w, body)
	if err != nil {
		return 0, e.fail(err)
	}
	if _, err := io.WriteString(e.w, "\r\n"); err != nil {
		return 0, e.fail(err)
	}
	e.parts++
	logging.Logger.Trace().
		Str("name", h.Name).
		Int64("bytes", n).
		Msg("encoder: part written")
	return n, nil
}

// Close emits the terminal delimiter. The encoder accepts no further
// writes afterwards.
func (e *Encoder) Close() error {
	if e.closed || e.failed {
		return ErrInvalidState
	}
	e.closed = true
	if _, err := fmt.Fprintf(e.w, "--%s--\r\n", e.boundary); err != nil {
		e.failed = true
		return err
	}
	logging.Logger.Debug().
		Int("parts", e.parts).
		Msg("encoder: body complete")
	return nil
}

func (e *Encoder) fail(err error) error {
	e.failed = true
	return err
}
