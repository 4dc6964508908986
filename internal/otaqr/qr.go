// Package otaqr renders install URLs as QR codes.
package otaqr

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const (
	DefaultSize = 256
	// MaxSize bounds the side of a QR code image, in pixels.
	MaxSize = 1024
)

// PNG encodes content as a size by size QR code.
func PNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	} else if size > MaxSize {
		return nil, fmt.Errorf("qr code size %d exceeds the maximum of %d", size, MaxSize)
	}

	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}

	if code, err = barcode.Scale(code, size, size); err != nil {
		return nil, fmt.Errorf("scale qr code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err = png.Encode(buf, code); err != nil {
		return nil, fmt.Errorf("encode qr code as png: %w", err)
	}

	return buf.Bytes(), nil
}

// DataURL is PNG as a data: URL, ready for an <img> src.
func DataURL(content string, size int) (string, error) {
	b, err := PNG(content, size)
	if err != nil {
		return "", err
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}
