package otaplist

import (
	"io"

	"howett.net/plist"
)

func howettFormat(format Format) int {
	if format == FormatBinary {
		return plist.BinaryFormat
	}

	return plist.XMLFormat
}

// Encode writes v to w in format. Null values cannot be encoded.
func Encode(w io.Writer, v Value, format Format, indent string) error {
	enc := plist.NewEncoderForFormat(w, howettFormat(format))
	if indent != "" {
		enc.Indent(indent)
	}

	if err := enc.Encode(v.Interface()); err != nil {
		return malformedf("%v", err)
	}

	return nil
}

func Marshal(v Value, format Format) ([]byte, error) {
	b, err := plist.Marshal(v.Interface(), howettFormat(format))
	if err != nil {
		return nil, malformedf("%v", err)
	}

	return b, nil
}
