// Package json wraps goccy/go-json with the encoder settings shared by the
// JSON sinks and the trace reader, plus a pooled buffer for line encoding.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/feaout/pkg/pool"
)

// Encoder and Decoder are the goccy types
type (
	Encoder = gojson.Encoder
	Decoder = gojson.Decoder
)

var buffers = pool.New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// NewEncoder returns an encoder for w. HTML escaping is off; field labels
// such as rms[DispX] are written as they are.
func NewEncoder(w io.Writer) *Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// NewDecoder returns a decoder for r that rejects unknown fields
func NewDecoder(r io.Reader) *Decoder {
	dec := gojson.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec
}

// Marshal is json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal is json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// UnmarshalStrict decodes data, rejecting fields v does not declare
func UnmarshalStrict(data []byte, v interface{}) error {
	return NewDecoder(bytes.NewReader(data)).Decode(v)
}

// MarshalIndent is json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// WriteLine encodes v as one newline-terminated line on w. The line is
// staged in a pooled buffer so w sees a single Write.
func WriteLine(w io.Writer, v interface{}) error {
	buf := buffers.Get()
	defer buffers.Put(buf)

	if err := NewEncoder(buf).Encode(v); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
