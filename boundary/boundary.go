// Package boundary owns the delimiter token separating parts in a
// multipart/form-data body.
//
// Ownership boundary:
// - token generation with an injectable randomness source
// - rfc2046 token validation
package boundary

import (
	"crypto/rand"
	"errors"
	"io"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

const (
	// DefaultLength gives roughly 238 bits of entropy over the token
	// alphabet, enough that a payload collision is not a practical concern.
	DefaultLength = 40

	// MaxLength is the rfc2046 section 5.1.1 limit.
	MaxLength = 69
)

var (
	ErrLength    = errors.New("boundary: invalid boundary length")
	ErrCharacter = errors.New("boundary: invalid boundary character")
)

// Generator produces boundary tokens. The zero value reads from
// crypto/rand and emits tokens of DefaultLength with no dash runs.
type Generator struct {
	// Rand is the randomness source. Nil means crypto/rand.Reader.
	// Tests inject a seeded source to make generation deterministic.
	Rand io.Reader

	// Length is the token length. Zero means DefaultLength.
	Length int

	// Dashes, when positive, splices an interior run of at most Dashes
	// dash characters into the token. Dash runs exercise the decoder's
	// partial-match scanning, which must not confuse payload dash
	// sequences with the "--" delimiter prefix.
	Dashes int
}

// Generate returns a fresh boundary token.
func (g Generator) Generate() (string, error) {
	rng := g.Rand
	if rng == nil {
		rng = rand.Reader
	}

	length := g.Length
	if length == 0 {
		length = DefaultLength
	}
	if length < 1 || length > MaxLength {
		return "", ErrLength
	}

	raw := make([]byte, length)
	if _, err := io.ReadFull(rng, raw); err != nil {
		return "", err
	}

	token := make([]byte, length)
	for i, b := range raw {
		token[i] = alphabet[int(b)%len(alphabet)]
	}

	if g.Dashes > 0 && length > 3 {
		if err := spliceDashes(rng, token, g.Dashes); err != nil {
			return "", err
		}
	}

	return string(token), nil
}

// spliceDashes overwrites an interior slice of token with a dash run.
// The run never touches the first or last byte: a leading dash would blur
// the "--token" delimiter prefix and a trailing dash the "token--" close.
func spliceDashes(rng io.Reader, token []byte, maxDashes int) error {
	var pick [2]byte
	if _, err := io.ReadFull(rng, pick[:]); err != nil {
		return err
	}

	run := 1 + int(pick[0])%maxDashes
	if limit := len(token) - 2; run > limit {
		run = limit
	}
	pos := 1 + int(pick[1])%(len(token)-run-1)

	for i := 0; i < run; i++ {
		token[pos+i] = '-'
	}
	return nil
}

// Generate returns a token from the zero Generator.
func Generate() (string, error) {
	return Generator{}.Generate()
}

// Validate reports whether s is usable as a boundary token under
// rfc2046 section 5.1.1.
func Validate(s string) error {
	if len(s) < 1 || len(s) > MaxLength {
		return ErrLength
	}
	for _, b := range s {
		if 'A' <= b && b <= 'Z' || 'a' <= b && b <= 'z' || '0' <= b && b <= '9' {
			continue
		}
		switch b {
		case '\'', '(', ')', '+', '_', ',', '-', '.', '/', ':', '=', '?':
			continue
		}
		return ErrCharacter
	}
	return nil
}
