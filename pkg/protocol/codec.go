// Package protocol defines the delimiter-framed message exchanged between peers
// and the text codec used to turn it into strings.
package protocol

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// DefaultDelimiter terminates a message when no other delimiter is configured.
const DefaultDelimiter byte = 0x13

// Codec describes how text is carried on the wire: the text encoding, the byte
// that terminates a message and whether decoded text is trimmed.
type Codec struct {
	Encoding  encoding.Encoding
	Delimiter byte
	Trim      bool
}

// DefaultCodec returns a UTF-8 codec using DefaultDelimiter without trimming.
func DefaultCodec() Codec {
	return Codec{
		Encoding:  unicode.UTF8,
		Delimiter: DefaultDelimiter,
	}
}

func (c Codec) textEncoding() encoding.Encoding {
	if c.Encoding == nil {
		return unicode.UTF8
	}
	return c.Encoding
}

// Encode converts text into bytes using the configured encoding.
func (c Codec) Encode(text string) ([]byte, error) {
	data, err := c.textEncoding().NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("failed to encode text: %w", err)
	}
	return data, nil
}

// Decode converts bytes into text. Bytes the encoding cannot represent are
// replaced rather than reported.
func (c Codec) Decode(data []byte) string {
	text, err := c.textEncoding().NewDecoder().Bytes(data)
	if err != nil {
		text = data
	}
	if c.Trim {
		return strings.TrimSpace(string(text))
	}
	return string(text)
}

// Line encodes text and appends the delimiter unless the encoded text already
// ends with it. Empty text yields nil: there is nothing to send.
func (c Codec) Line(text string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}
	data, err := c.Encode(text)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || data[len(data)-1] != c.Delimiter {
		data = append(data, c.Delimiter)
	}
	return data, nil
}
