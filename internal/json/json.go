// Package json wraps bytedance/sonic behind the encoding/json API so the rest
// of the codebase can switch implementations in one place. Exported names
// mirror the standard library.
package json

import (
	"bytes"
	stdjson "encoding/json"
	"io"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/bytedance/sonic/decoder"
	"github.com/bytedance/sonic/encoder"
)

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Marshal returns the JSON encoding of v.
func Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

// MarshalIndent returns the indented JSON encoding of v.
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return sonic.MarshalIndent(v, prefix, indent)
}

// Unmarshal parses the JSON-encoded data and stores the result in v.
func Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}

// Aliases kept compatible with the standard library so callers can type-assert
// against the usual error and value types.
type (
	RawMessage = stdjson.RawMessage
	Number     = stdjson.Number

	Marshaler   = stdjson.Marshaler
	Unmarshaler = stdjson.Unmarshaler

	SyntaxError        = stdjson.SyntaxError
	UnmarshalTypeError = stdjson.UnmarshalTypeError
	MarshalerError     = stdjson.MarshalerError
)

// Encoder writes JSON values to an output stream.
type Encoder struct {
	enc *encoder.StreamEncoder
}

// NewEncoder returns a new encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: encoder.NewStreamEncoder(w)}
}

// Encode writes the JSON encoding of v to the stream.
func (e *Encoder) Encode(v any) error {
	return e.enc.Encode(v)
}

// SetIndent instructs the encoder to format each subsequent encoded value.
func (e *Encoder) SetIndent(prefix, indent string) {
	e.enc.SetIndent(prefix, indent)
}

// SetEscapeHTML specifies whether problematic HTML characters should be escaped.
func (e *Encoder) SetEscapeHTML(on bool) {
	e.enc.SetEscapeHTML(on)
}

// Decoder reads and decodes JSON values from an input stream.
type Decoder struct {
	dec *decoder.StreamDecoder
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: decoder.NewStreamDecoder(r)}
}

// Decode reads the next JSON-encoded value from its input and stores it in v.
func (d *Decoder) Decode(v any) error {
	return d.dec.Decode(v)
}

// UseNumber causes the Decoder to unmarshal numbers into Number instead of float64.
func (d *Decoder) UseNumber() {
	d.dec.UseNumber()
}

// DisallowUnknownFields causes Decode to error on keys that do not match the
// destination struct.
func (d *Decoder) DisallowUnknownFields() {
	d.dec.DisallowUnknownFields()
}

// More reports whether there is another element in the current array or object.
func (d *Decoder) More() bool {
	return d.dec.More()
}

// Compact appends to dst the JSON-encoded src with insignificant space elided.
func Compact(dst *[]byte, src []byte) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()
	if err := stdjson.Compact(buf, src); err != nil {
		return err
	}
	*dst = append(*dst, buf.Bytes()...)
	return nil
}

// Indent appends to dst an indented form of the JSON-encoded src.
func Indent(dst *[]byte, src []byte, prefix, indent string) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		bufferPool.Put(buf)
	}()
	if err := stdjson.Indent(buf, src, prefix, indent); err != nil {
		return err
	}
	*dst = append(*dst, buf.Bytes()...)
	return nil
}
