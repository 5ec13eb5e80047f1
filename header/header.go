// Package header owns the per-part header model.
//
// Ownership boundary:
// - the (name, filename, content type) triple carried by every part
// - rendering a header block onto the wire
// - parsing a header block off the wire
package header

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/textproto"
	"strings"
)

// DefaultContentType applies when a part carries no Content-Type line and
// is treated as binary.
const DefaultContentType = "application/octet-stream"

var (
	ErrMissingName = errors.New("header: content-disposition name missing")
	ErrMalformed   = errors.New("header: malformed header block")
)

// Header is the fixed header of one part. Name is required; Filename and
// ContentType are optional and absent when empty. Extra holds headers the
// codec does not recognize; they are preserved on decode and never
// interpreted.
type Header struct {
	Name        string
	Filename    string
	ContentType string
	Extra       textproto.MIMEHeader
}

// ContentTypeOrDefault returns the declared content type, or
// DefaultContentType when none was supplied.
func (h Header) ContentTypeOrDefault() string {
	if h.ContentType == "" {
		return DefaultContentType
	}
	return h.ContentType
}

// Render writes the header block for h, including the blank line that
// terminates it. Absent filename and content type produce no output.
func (h Header) Render(w io.Writer) error {
	if h.Name == "" {
		return ErrMissingName
	}

	var sb strings.Builder
	sb.WriteString(`Content-Disposition: form-data; name="`)
	sb.WriteString(escapeQuotes(h.Name))
	sb.WriteString(`"`)
	if h.Filename != "" {
		sb.WriteString(`; filename="`)
		sb.WriteString(escapeQuotes(h.Filename))
		sb.WriteString(`"`)
	}
	sb.WriteString("\r\n")
	if h.ContentType != "" {
		sb.WriteString("Content-Type: ")
		sb.WriteString(h.ContentType)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Parse builds a Header from a parsed MIME header block. Unknown headers
// are collected into Extra rather than rejected.
func Parse(mh textproto.MIMEHeader) (Header, error) {
	disposition := mh.Get("Content-Disposition")
	if disposition == "" {
		return Header{}, fmt.Errorf("%w: no content-disposition", ErrMalformed)
	}

	kind, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if kind != "form-data" {
		return Header{}, fmt.Errorf("%w: disposition %q is not form-data", ErrMalformed, kind)
	}

	name, ok := params["name"]
	if !ok || name == "" {
		return Header{}, ErrMissingName
	}

	h := Header{
		Name:        name,
		Filename:    params["filename"],
		ContentType: mh.Get("Content-Type"),
	}

	for key, values := range mh {
		switch key {
		case "Content-Disposition", "Content-Type":
			continue
		}
		if h.Extra == nil {
			h.Extra = make(textproto.MIMEHeader)
		}
		h.Extra[key] = values
	}

	return h, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
