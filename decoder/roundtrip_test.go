package decoder_test

import (
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"testing"

	randomdata "github.com/Pallinder/go-randomdata"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/formwire/boundary"
	"github.com/danmuck/formwire/decoder"
	"github.com/danmuck/formwire/encoder"
	"github.com/danmuck/formwire/encoder/lazy"
	"github.com/danmuck/formwire/internal/testutil/testlog"
	"github.com/danmuck/formwire/transport"
)

type formField struct {
	name        string
	value       string
	filename    string
	contentType string
}

func randomValue(rng *rand.Rand) string {
	var sb strings.Builder
	words := 1 + rng.Intn(6)
	for i := 0; i < words; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(randomdata.SillyName())
	}
	return sb.String()
}

// randomForm builds a handful of fields whose values deliberately contain
// dash runs and CRLF-dash sequences, the payloads most likely to trip a
// delimiter scanner.
func randomForm(rng *rand.Rand) []formField {
	n := 3 + rng.Intn(10)
	fields := make([]formField, 0, n)
	for i := 0; i < n; i++ {
		f := formField{
			name:  fmt.Sprintf("%s_%d", randomdata.SillyName(), i),
			value: randomValue(rng),
		}
		switch rng.Intn(4) {
		case 0:
			f.value += fmt.Sprintf("\r\n------%d", randomdata.Number(10000000, 99999999))
		case 1:
			f.value = "--" + f.value + "----"
		case 2:
			f.filename = randomdata.SillyName() + ".bin"
			f.contentType = "application/octet-stream"
		}
		// repeated names are legal and must survive the trip
		if i > 0 && rng.Intn(5) == 0 {
			f.name = fields[0].name
		}
		fields = append(fields, f)
	}
	return fields
}

func encodeEager(t *testing.T, fields []formField) *transport.Buffer {
	t.Helper()
	token, err := boundary.Generate()
	require.NoError(t, err)
	buf := transport.NewBuffer(token)
	enc, err := encoder.NewWithBoundary(buf, token)
	require.NoError(t, err)
	for _, f := range fields {
		if f.filename != "" {
			require.NoError(t, enc.WriteStream(f.name, strings.NewReader(f.value), f.filename, f.contentType))
		} else {
			require.NoError(t, enc.WriteText(f.name, f.value))
		}
	}
	require.NoError(t, enc.Close())
	buf.SetContentLength(int64(buf.Len()))
	return buf
}

func encodeLazy(t *testing.T, fields []formField) *transport.Buffer {
	t.Helper()
	b := lazy.NewBuilder()
	for _, f := range fields {
		if f.filename != "" {
			require.NoError(t, b.AddBytes(f.name, []byte(f.value), f.filename, f.contentType))
		} else {
			require.NoError(t, b.AddText(f.name, f.value))
		}
	}
	prep, err := b.Prepare()
	require.NoError(t, err)
	defer prep.Close()

	declared, known := prep.ContentLength()
	require.True(t, known, "all sizes declared, length must be known")

	buf := transport.NewBuffer(prep.Boundary())
	n, err := io.Copy(buf, prep)
	require.NoError(t, err)
	require.Equal(t, declared, n, "prepared stream must deliver its declared length")
	buf.SetContentLength(declared)
	return buf
}

func decodeLoop(t *testing.T, buf *transport.Buffer) []formField {
	t.Helper()
	dec, err := decoder.FromRequest(buf.Request())
	require.NoError(t, err)
	var fields []formField
	for {
		entry, err := dec.ReadEntry()
		if err == io.EOF {
			return fields
		}
		require.NoError(t, err)
		data, err := io.ReadAll(entry)
		require.NoError(t, err)
		fields = append(fields, formField{
			name:        entry.Header.Name,
			value:       string(data),
			filename:    entry.Header.Filename,
			contentType: entry.Header.ContentType,
		})
	}
}

func decodeChain(t *testing.T, buf *transport.Buffer) []formField {
	t.Helper()
	dec, err := decoder.FromRequest(buf.Request())
	require.NoError(t, err)
	var fields []formField
	entry, err := dec.ReadEntry()
	for err == nil {
		data, readErr := io.ReadAll(entry)
		require.NoError(t, readErr)
		fields = append(fields, formField{
			name:        entry.Header.Name,
			value:       string(data),
			filename:    entry.Header.Filename,
			contentType: entry.Header.ContentType,
		})
		entry, err = entry.Next()
	}
	require.ErrorIs(t, err, io.EOF)
	return fields
}

// byName groups field values per name so order-insensitive comparison
// still catches dropped or duplicated entries.
func byName(fields []formField) map[string][]string {
	m := make(map[string][]string)
	for _, f := range fields {
		m[f.name] = append(m[f.name], f.value)
	}
	for _, vs := range m {
		sort.Strings(vs)
	}
	return m
}

func TestRandomizedRoundTrip(t *testing.T) {
	testlog.Start(t)

	rng := rand.New(rand.NewSource(20260830))

	encoders := map[string]func(*testing.T, []formField) *transport.Buffer{
		"eager": encodeEager,
		"lazy":  encodeLazy,
	}
	decoders := map[string]func(*testing.T, *transport.Buffer) []formField{
		"read_entry":  decodeLoop,
		"entry_chain": decodeChain,
	}

	for encName, encode := range encoders {
		for decName, decode := range decoders {
			t.Run(encName+"/"+decName, func(t *testing.T) {
				for trial := 0; trial < 20; trial++ {
					fields := randomForm(rng)
					buf := encode(t, fields)

					declared, ok := buf.Request().ContentLength()
					require.True(t, ok)
					require.Equal(t, int64(buf.Len()), declared)

					got := decode(t, buf)
					require.Len(t, got, len(fields))
					require.Equal(t, byName(fields), byName(got))

					for i, f := range got {
						require.Equal(t, fields[i].filename, f.filename, "entry %d filename", i)
						require.Equal(t, fields[i].contentType, f.contentType, "entry %d content type", i)
					}
				}
			})
		}
	}
}
