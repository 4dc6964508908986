// Package otaplist decodes property lists into a Value tree. Binary
// property lists are decoded under an explicit depth and object budget;
// XML property lists are parsed with howett.net/plist.
package otaplist

import (
	"bytes"
	"fmt"

	"github.com/frantjc/ota"
)

// Format is a property list wire encoding.
type Format int

const (
	FormatXML Format = iota + 1
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatXML:
		return "xml"
	case FormatBinary:
		return "binary"
	}

	return fmt.Sprintf("Format(%d)", int(f))
}

var binaryMagic = []byte("bplist")

// DetectFormat inspects the signature of b. Anything that does not begin
// with "bplist" is taken to be XML.
func DetectFormat(b []byte) Format {
	if bytes.HasPrefix(b, binaryMagic) {
		return FormatBinary
	}

	return FormatXML
}

const (
	DefaultMaxDepth   = 512
	DefaultMaxObjects = 1 << 20
	DefaultMaxBytes   = 64 << 20
)

type DecodeOpts struct {
	// MaxDepth bounds how deeply collections may nest.
	MaxDepth int
	// MaxObjects bounds how many objects a decode may produce, counting
	// an object once per reference to it.
	MaxObjects int
	// MaxBytes bounds the total size of the data and string payloads a
	// decode may produce, counting a payload once per reference to it.
	MaxBytes int
}

type DecodeOpt interface {
	Apply(*DecodeOpts)
}

func (o *DecodeOpts) Apply(opts *DecodeOpts) {
	if o != nil {
		if opts != nil {
			if o.MaxDepth > 0 {
				opts.MaxDepth = o.MaxDepth
			}
			if o.MaxObjects > 0 {
				opts.MaxObjects = o.MaxObjects
			}
			if o.MaxBytes > 0 {
				opts.MaxBytes = o.MaxBytes
			}
		}
	}
}

func newDecodeOpts(opts ...DecodeOpt) *DecodeOpts {
	o := &DecodeOpts{
		MaxDepth:   DefaultMaxDepth,
		MaxObjects: DefaultMaxObjects,
		MaxBytes:   DefaultMaxBytes,
	}

	for _, opt := range opts {
		opt.Apply(o)
	}

	return o
}

type decoder interface {
	decode([]byte) (Value, error)
}

func newDecoder(format Format, opts *DecodeOpts) decoder {
	if format == FormatBinary {
		return &binaryDecoder{opts: opts}
	}

	return &xmlDecoder{opts: opts}
}

// Decode decodes b, which may be a binary or an XML property list.
// Failures wrap ota.ErrMalformedPlist or ota.ErrResourceLimitExceeded.
func Decode(b []byte, opts ...DecodeOpt) (Value, error) {
	return newDecoder(DetectFormat(b), newDecodeOpts(opts...)).decode(b)
}

func malformedf(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ota.ErrMalformedPlist}, a...)...)
}

func limitf(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ota.ErrResourceLimitExceeded}, a...)...)
}
