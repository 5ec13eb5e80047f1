package decoder_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/formwire/decoder"
)

type vectorFile struct {
	Vectors []vector `toml:"vectors"`
}

type vector struct {
	Name     string        `toml:"name"`
	Boundary string        `toml:"boundary"`
	Body     string        `toml:"body"`
	Err      string        `toml:"err"`
	Entries  []vectorEntry `toml:"entries"`
}

type vectorEntry struct {
	Name        string `toml:"name"`
	Filename    string `toml:"filename"`
	ContentType string `toml:"content_type"`
	Data        string `toml:"data"`
}

func wantError(t *testing.T, kind string) error {
	t.Helper()
	switch kind {
	case "malformed_header":
		return decoder.ErrMalformedHeader
	case "truncated":
		return io.ErrUnexpectedEOF
	default:
		t.Fatalf("unknown err kind in vector file: %q", kind)
		return nil
	}
}

func TestWireVectors(t *testing.T) {
	var vf vectorFile
	if _, err := toml.DecodeFile("testdata/vectors.toml", &vf); err != nil {
		t.Fatalf("load vectors: %v", err)
	}
	if len(vf.Vectors) == 0 {
		t.Fatal("vector file is empty")
	}

	for _, vec := range vf.Vectors {
		t.Run(vec.Name, func(t *testing.T) {
			dec, err := decoder.New(strings.NewReader(vec.Body), vec.Boundary)
			if err != nil {
				t.Fatalf("new decoder: %v", err)
			}

			var got []vectorEntry
			var decodeErr error
			for {
				entry, err := dec.ReadEntry()
				if err == io.EOF {
					break
				}
				if err != nil {
					decodeErr = err
					break
				}
				data, err := io.ReadAll(entry)
				if err != nil {
					decodeErr = err
					break
				}
				got = append(got, vectorEntry{
					Name:        entry.Header.Name,
					Filename:    entry.Header.Filename,
					ContentType: entry.Header.ContentType,
					Data:        string(data),
				})
			}

			if vec.Err != "" {
				want := wantError(t, vec.Err)
				if !errors.Is(decodeErr, want) {
					t.Fatalf("expected %v, got %v", want, decodeErr)
				}
				return
			}

			if decodeErr != nil {
				t.Fatalf("decode failed: %v", decodeErr)
			}
			if len(got) != len(vec.Entries) {
				t.Fatalf("decoded %d entries, want %d: %+v", len(got), len(vec.Entries), got)
			}
			for i, want := range vec.Entries {
				if got[i] != want {
					t.Fatalf("entry %d mismatch:\n got %+v\nwant %+v", i, got[i], want)
				}
			}
		})
	}
}
