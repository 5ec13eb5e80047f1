package lazy

import (
	"errors"
	"io"
)

// Prepared is the composed multipart body: an ordered run of literal
// delimiter/header segments interleaved with the caller's payload
// sources. It is consumed exactly once, sequentially; a payload source
// error is terminal and the stream must not be resumed afterwards.
type Prepared struct {
	boundary   string
	segments   []io.Reader
	bodies     []io.Reader
	index      int
	contentLen int64
	err        error
}

// Boundary returns the delimiter token laid into the body.
func (p *Prepared) Boundary() string {
	return p.boundary
}

// ContentType returns the content-type header value a transport should
// announce for this body.
func (p *Prepared) ContentType() string {
	return "multipart/form-data; boundary=" + p.boundary
}

// ContentLength returns the total body length. ok is false when any
// payload source was added with an unknown size.
func (p *Prepared) ContentLength() (n int64, ok bool) {
	if p.contentLen == UnknownSize {
		return 0, false
	}
	return p.contentLen, true
}

// Read walks the segments in order, moving to the next only once the
// current one is exhausted. Equivalent to concatenating the segments
// without materializing the body.
func (p *Prepared) Read(buf []byte) (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	for p.index < len(p.segments) {
		n, err := p.segments[p.index].Read(buf)
		if err == io.EOF {
			p.index++
			if n > 0 {
				return n, nil
			}
			continue
		}
		if err != nil {
			p.err = err
			return n, err
		}
		if n > 0 {
			return n, nil
		}
	}
	p.err = io.EOF
	return 0, io.EOF
}

// Close closes every payload source that is a Closer, aggregating
// failures.
func (p *Prepared) Close() error {
	var errs []error
	for _, body := range p.bodies {
		if c, ok := body.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
