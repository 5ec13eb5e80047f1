package decoder

import (
	"bytes"
	"io"
)

// scanPayload reports how many leading bytes of peek are payload and, via
// the returned error, whether the part's delimiter has been reached.
//
// A delimiter candidate is an occurrence of "\r\n--boundary". It only
// counts once its two following bytes confirm it: CRLF opens the next
// part's header block, "--" closes the body. A candidate with any other
// confirmation bytes is ordinary payload that merely resembles the
// delimiter. A candidate that cannot be confirmed yet, or a trailing
// prefix of the delimiter sitting at the buffer edge, is held back until
// more input arrives.
//
// readErr is the source's terminal state. Once the source is exhausted
// nothing can complete a held candidate, so every buffered byte is
// payload and readErr surfaces after them.
//
// Returns (n, io.EOF) with the delimiter anchored at peek[n:] when a
// confirmed delimiter is in view; (n, nil) when n payload bytes can be
// released and more input is needed; (len(peek), readErr) when the
// source is done.
func scanPayload(peek, delim []byte, readErr error) (int, error) {
	base := 0
	for {
		i := bytes.Index(peek[base:], delim)
		if i < 0 {
			break
		}
		i += base
		rest := peek[i+len(delim):]
		if len(rest) >= 2 {
			if (rest[0] == '\r' && rest[1] == '\n') || (rest[0] == '-' && rest[1] == '-') {
				return i, io.EOF
			}
			// payload that only resembles the delimiter
			base = i + 1
			continue
		}
		if readErr != nil {
			return len(peek), readErr
		}
		return i, nil
	}

	if readErr != nil {
		return len(peek), readErr
	}
	return len(peek) - delimPrefixLen(peek, delim), nil
}

// delimPrefixLen returns the length of the longest suffix of peek that is
// a proper prefix of delim. Those bytes cannot be released yet: the next
// read from the source may complete the delimiter.
func delimPrefixLen(peek, delim []byte) int {
	max := len(delim) - 1
	if max > len(peek) {
		max = len(peek)
	}
	for k := max; k > 0; k-- {
		if bytes.Equal(peek[len(peek)-k:], delim[:k]) {
			return k
		}
	}
	return 0
}
