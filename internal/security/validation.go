package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Request limits applied by the gateway.
const (
	DefaultMaxBodySize  = 64 << 10
	DefaultMaxJSONDepth = 8
	DefaultMaxUtterance = 2000 // runes
)

// Validation errors.
var (
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
	ErrJSONTooDeep     = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON     = errors.New("invalid JSON")
	ErrInvalidText     = errors.New("message is not valid UTF-8 text")
)

// ValidateBody checks a raw request body against a byte limit and a JSON
// nesting limit before it is decoded. Non-positive limits use the defaults.
func ValidateBody(data []byte, maxBytes, maxDepth int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	if len(data) > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMessageTooLarge, len(data), maxBytes)
	}
	return ValidateJSONDepth(data, maxDepth)
}

// ValidateJSONDepth walks the token stream of data and fails once arrays
// or objects nest deeper than limit.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			if depth++; depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

// ValidateUtterance checks a user message: valid UTF-8 and at most
// maxRunes runes (default DefaultMaxUtterance). Emptiness is left to the
// router.
func ValidateUtterance(s string, maxRunes int) error {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxUtterance
	}
	if !utf8.ValidString(s) {
		return ErrInvalidText
	}
	if n := utf8.RuneCountInString(s); n > maxRunes {
		return fmt.Errorf("%w: %d characters (max %d)", ErrMessageTooLarge, n, maxRunes)
	}
	return nil
}
