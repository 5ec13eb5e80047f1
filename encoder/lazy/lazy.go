// Package lazy owns the deferred side of the encoder: fields are
// recorded as descriptors and no byte moves until Prepare lays the body
// out as a single readable stream with a precomputed content length.
//
// Transports that must announce a length before the first byte use this
// path; everything else can use the write-through encoder.
package lazy

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/formwire/boundary"
	"github.com/danmuck/formwire/header"
)

var ErrInvalidState = errors.New("lazy: builder already prepared")

// UnknownSize marks a payload source whose length is not declared. A
// single unknown source makes the whole body length unknown.
const UnknownSize = int64(-1)

type field struct {
	header header.Header
	body   io.Reader
	size   int64
}

// Builder collects field descriptors. The zero value is ready to use.
type Builder struct {
	fields   []field
	prepared bool
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddText records a text field.
func (b *Builder) AddText(name, value string) error {
	return b.add(field{
		header: header.Header{Name: name},
		body:   strings.NewReader(value),
		size:   int64(len(value)),
	})
}

// AddBytes records a binary field backed by an in-memory value.
func (b *Builder) AddBytes(name string, value []byte, filename, contentType string) error {
	return b.add(field{
		header: header.Header{Name: name, Filename: filename, ContentType: contentType},
		body:   bytes.NewReader(value),
		size:   int64(len(value)),
	})
}

// AddStream records a binary field backed by r. size is the number of
// bytes r will produce, or UnknownSize when the caller cannot declare
// one.
func (b *Builder) AddStream(name string, r io.Reader, filename, contentType string, size int64) error {
	if size < 0 {
		size = UnknownSize
	}
	return b.add(field{
		header: header.Header{Name: name, Filename: filename, ContentType: contentType},
		body:   r,
		size:   size,
	})
}

// AddFile records a binary field backed by the file at path. The part's
// filename is the path's base name and its size comes from the file's
// stat, so the prepared body keeps a known length.
func (b *Builder) AddFile(name, path string) error {
	if b.prepared {
		return ErrInvalidState
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.New("lazy: " + path + " is a directory")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return b.add(field{
		header: header.Header{
			Name:        name,
			Filename:    filepath.Base(path),
			ContentType: header.DefaultContentType,
		},
		body: f,
		size: info.Size(),
	})
}

func (b *Builder) add(f field) error {
	if b.prepared {
		return ErrInvalidState
	}
	if f.header.Name == "" {
		return header.ErrMissingName
	}
	b.fields = append(b.fields, f)
	return nil
}

// Prepare lays the body out with a freshly generated boundary. The
// builder accepts no further fields afterwards.
func (b *Builder) Prepare() (*Prepared, error) {
	token, err := boundary.Generate()
	if err != nil {
		return nil, err
	}
	return b.PrepareWithBoundary(token)
}

// PrepareWithBoundary lays the body out with the given boundary. Fields
// appear in the exact order they were added, files interspersed among
// texts included.
func (b *Builder) PrepareWithBoundary(token string) (*Prepared, error) {
	if b.prepared {
		return nil, ErrInvalidState
	}
	if err := boundary.Validate(token); err != nil {
		return nil, err
	}
	b.prepared = true

	segments := make([]io.Reader, 0, len(b.fields)*2+1)
	bodies := make([]io.Reader, 0, len(b.fields))
	total := int64(0)
	known := true

	for i, f := range b.fields {
		var lit bytes.Buffer
		if i == 0 {
			lit.WriteString("--" + token + "\r\n")
		} else {
			lit.WriteString("\r\n--" + token + "\r\n")
		}
		if err := f.header.Render(&lit); err != nil {
			return nil, err
		}
		total += int64(lit.Len())
		segments = append(segments, bytes.NewReader(lit.Bytes()))

		segments = append(segments, f.body)
		bodies = append(bodies, f.body)
		if f.size == UnknownSize {
			known = false
		} else {
			total += f.size
		}
	}

	var tail bytes.Buffer
	if len(b.fields) == 0 {
		tail.WriteString("--" + token + "--\r\n")
	} else {
		tail.WriteString("\r\n--" + token + "--\r\n")
	}
	total += int64(tail.Len())
	segments = append(segments, bytes.NewReader(tail.Bytes()))

	contentLen := total
	if !known {
		contentLen = UnknownSize
	}

	return &Prepared{
		boundary:   token,
		segments:   segments,
		bodies:     bodies,
		contentLen: contentLen,
	}, nil
}
