package otaplist

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"

	"howett.net/plist"
)

type xmlDecoder struct {
	opts *DecodeOpts
}

func (d *xmlDecoder) decode(b []byte) (Value, error) {
	if err := d.checkDepth(b); err != nil {
		return Value{}, err
	}

	var a any

	format, err := plist.Unmarshal(b, &a)
	if err != nil {
		return Value{}, malformedf("%v", err)
	}

	// howett.net/plist also accepts the OpenStep and GNUstep text
	// encodings, which Info.plist files never use.
	if format != plist.XMLFormat {
		return Value{}, malformedf("not an xml plist")
	}

	return FromInterface(a)
}

// checkDepth walks the elements of b without building them, failing once
// collections nest deeper than MaxDepth. plist.Unmarshal recurses once per
// level, so it must never see unbounded nesting.
func (d *xmlDecoder) checkDepth(b []byte) error {
	var (
		dec   = xml.NewDecoder(bytes.NewReader(b))
		depth = 0
	)

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return malformedf("%v", err)
		}

		switch tok.(type) {
		case xml.StartElement:
			depth++
			// The <plist> element wraps the top value, which is at depth 0.
			if depth-2 > d.opts.MaxDepth {
				return limitf("nesting exceeds the depth limit of %d", d.opts.MaxDepth)
			}
		case xml.EndElement:
			depth--
		}
	}
}
