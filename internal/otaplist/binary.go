package otaplist

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"
)

const (
	binaryHeaderLen  = 8
	binaryTrailerLen = 32
)

// Seconds between the Unix epoch and 2001-01-01T00:00:00Z, the epoch of
// binary property list dates.
const appleEpoch = 978307200

// Object marker high nibbles.
const (
	markerSingleton = 0x0
	markerInt       = 0x1
	markerReal      = 0x2
	markerDate      = 0x3
	markerData      = 0x4
	markerASCII     = 0x5
	markerUTF16     = 0x6
	markerUID       = 0x8
	markerArray     = 0xA
	markerSet       = 0xC
	markerDict      = 0xD
)

type binaryTrailer struct {
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

type binaryDecoder struct {
	opts *DecodeOpts

	buf     []byte
	trailer binaryTrailer
	// end is the offset of the offset table; every object lies before it.
	end uint64
	// objects counts objects produced so far.
	objects int
	// payload counts data and string bytes produced so far.
	payload uint64
	// visiting marks objects on the current decode path.
	visiting []bool
}

func (d *binaryDecoder) decode(b []byte) (Value, error) {
	d.buf = b

	if err := d.readTrailer(); err != nil {
		return Value{}, err
	}

	if d.trailer.NumObjects > uint64(d.opts.MaxObjects) {
		return Value{}, limitf("%d objects exceeds the limit of %d", d.trailer.NumObjects, d.opts.MaxObjects)
	}

	d.visiting = make([]bool, d.trailer.NumObjects)

	return d.object(d.trailer.TopObject, 0)
}

func (d *binaryDecoder) readTrailer() error {
	if len(d.buf) < binaryHeaderLen+binaryTrailerLen {
		return malformedf("binary plist of %d bytes is too short", len(d.buf))
	}

	if string(d.buf[6:8]) != "00" {
		return malformedf("unsupported binary plist version %q", d.buf[6:8])
	}

	var (
		trailerStart = uint64(len(d.buf) - binaryTrailerLen)
		tb           = d.buf[trailerStart:]
	)

	d.trailer = binaryTrailer{
		OffsetIntSize:     tb[6],
		ObjectRefSize:     tb[7],
		NumObjects:        binary.BigEndian.Uint64(tb[8:16]),
		TopObject:         binary.BigEndian.Uint64(tb[16:24]),
		OffsetTableOffset: binary.BigEndian.Uint64(tb[24:32]),
	}

	switch {
	case d.trailer.OffsetIntSize < 1 || d.trailer.OffsetIntSize > 8:
		return malformedf("invalid offset int size %d", d.trailer.OffsetIntSize)
	case d.trailer.ObjectRefSize < 1 || d.trailer.ObjectRefSize > 8:
		return malformedf("invalid object ref size %d", d.trailer.ObjectRefSize)
	case d.trailer.NumObjects == 0:
		return malformedf("no objects")
	case d.trailer.TopObject >= d.trailer.NumObjects:
		return malformedf("top object %d out of range of %d objects", d.trailer.TopObject, d.trailer.NumObjects)
	case d.trailer.OffsetTableOffset < binaryHeaderLen || d.trailer.OffsetTableOffset >= trailerStart:
		return malformedf("offset table offset %d out of range", d.trailer.OffsetTableOffset)
	}

	// NumObjects is checked against the space left for the table before
	// multiplying so that the product cannot overflow.
	tableSpace := trailerStart - d.trailer.OffsetTableOffset
	if d.trailer.NumObjects > tableSpace || d.trailer.NumObjects*uint64(d.trailer.OffsetIntSize) > tableSpace {
		return malformedf("offset table of %d objects overruns the trailer", d.trailer.NumObjects)
	}

	d.end = d.trailer.OffsetTableOffset

	return nil
}

func (d *binaryDecoder) offset(ref uint64) (uint64, error) {
	if ref >= d.trailer.NumObjects {
		return 0, malformedf("object ref %d out of range of %d objects", ref, d.trailer.NumObjects)
	}

	var (
		size  = uint64(d.trailer.OffsetIntSize)
		start = d.trailer.OffsetTableOffset + ref*size
		off   = readUint(d.buf[start : start+size])
	)

	if off < binaryHeaderLen || off >= d.end {
		return 0, malformedf("object %d has offset %d out of range", ref, off)
	}

	return off, nil
}

// object decodes the object at ref. Every call counts against MaxObjects
// and nested collections count against MaxDepth, so shared references
// cannot expand without bound. A ref that is already on the decode path
// is a cycle.
func (d *binaryDecoder) object(ref uint64, depth int) (Value, error) {
	if depth > d.opts.MaxDepth {
		return Value{}, limitf("nesting exceeds the depth limit of %d", d.opts.MaxDepth)
	}

	d.objects++
	if d.objects > d.opts.MaxObjects {
		return Value{}, limitf("decoding exceeds the object limit of %d", d.opts.MaxObjects)
	}

	off, err := d.offset(ref)
	if err != nil {
		return Value{}, err
	}

	if d.visiting[ref] {
		return Value{}, malformedf("object %d references itself", ref)
	}

	var (
		marker = d.buf[off]
		hi     = marker >> 4
		lo     = marker & 0x0F
	)

	switch hi {
	case markerSingleton:
		switch lo {
		case 0x0:
			return Value{}, nil
		case 0x8:
			return NewBool(false), nil
		case 0x9:
			return NewBool(true), nil
		}

		return Value{}, malformedf("unknown singleton marker 0x%02x at offset %d", marker, off)
	case markerInt:
		v, _, err := d.integer(off)
		return v, err
	case markerReal:
		if lo != 2 && lo != 3 {
			return Value{}, malformedf("invalid real marker 0x%02x at offset %d", marker, off)
		}

		b, err := d.bytes(off+1, uint64(1)<<lo)
		if err != nil {
			return Value{}, err
		}

		if lo == 2 {
			return NewReal(float64(math.Float32frombits(binary.BigEndian.Uint32(b)))), nil
		}

		return NewReal(math.Float64frombits(binary.BigEndian.Uint64(b))), nil
	case markerDate:
		if lo != 3 {
			return Value{}, malformedf("invalid date marker 0x%02x at offset %d", marker, off)
		}

		b, err := d.bytes(off+1, 8)
		if err != nil {
			return Value{}, err
		}

		return date(math.Float64frombits(binary.BigEndian.Uint64(b)))
	case markerData:
		start, count, err := d.count(off, lo)
		if err != nil {
			return Value{}, err
		}

		b, err := d.bytes(start, count)
		if err != nil {
			return Value{}, err
		}

		if err = d.charge(count); err != nil {
			return Value{}, err
		}

		return NewData(append([]byte{}, b...)), nil
	case markerASCII, markerUTF16:
		s, err := d.string(off, hi, lo)
		if err != nil {
			return Value{}, err
		}

		return NewString(s), nil
	case markerUID:
		b, err := d.bytes(off+1, uint64(lo)+1)
		if err != nil {
			return Value{}, err
		}

		if len(b) > 8 {
			return Value{}, malformedf("uid of %d bytes at offset %d overflows 64 bits", len(b), off)
		}

		return NewUID(readUint(b)), nil
	case markerArray, markerSet:
		start, count, err := d.count(off, lo)
		if err != nil {
			return Value{}, err
		}

		refs, err := d.refs(start, count)
		if err != nil {
			return Value{}, err
		}

		d.visiting[ref] = true
		defer func() {
			d.visiting[ref] = false
		}()

		arr := make([]Value, len(refs))
		for i, childRef := range refs {
			if arr[i], err = d.object(childRef, depth+1); err != nil {
				return Value{}, err
			}
		}

		return NewArray(arr...), nil
	case markerDict:
		start, count, err := d.count(off, lo)
		if err != nil {
			return Value{}, err
		}

		// Keys then values, count refs each.
		refs, err := d.refs(start, count*2)
		if err != nil {
			return Value{}, err
		}

		d.visiting[ref] = true
		defer func() {
			d.visiting[ref] = false
		}()

		dict := make(map[string]Value, count)
		for i := uint64(0); i < count; i++ {
			key, err := d.object(refs[i], depth+1)
			if err != nil {
				return Value{}, err
			}

			s, ok := key.AsString()
			if !ok {
				return Value{}, malformedf("dict at offset %d has a %s key", off, key.Kind())
			}

			if dict[s], err = d.object(refs[count+i], depth+1); err != nil {
				return Value{}, err
			}
		}

		return NewDict(dict), nil
	}

	return Value{}, malformedf("unknown object marker 0x%02x at offset %d", marker, off)
}

// charge counts n payload bytes against MaxBytes.
func (d *binaryDecoder) charge(n uint64) error {
	d.payload += n
	if d.payload > uint64(d.opts.MaxBytes) {
		return limitf("decoding exceeds the payload limit of %d bytes", d.opts.MaxBytes)
	}

	return nil
}

// integer decodes the int object at off and returns the offset following it.
func (d *binaryDecoder) integer(off uint64) (Value, uint64, error) {
	var (
		marker = d.buf[off]
		width  = uint64(1) << (marker & 0x0F)
	)

	if marker>>4 != markerInt || width > 16 {
		return Value{}, 0, malformedf("invalid int marker 0x%02x at offset %d", marker, off)
	}

	b, err := d.bytes(off+1, width)
	if err != nil {
		return Value{}, 0, err
	}

	next := off + 1 + width

	switch width {
	case 1, 2, 4:
		return NewUint(readUint(b)), next, nil
	case 8:
		return NewInt(int64(binary.BigEndian.Uint64(b))), next, nil
	case 16:
		var (
			high = binary.BigEndian.Uint64(b[:8])
			low  = binary.BigEndian.Uint64(b[8:])
		)

		switch {
		case high == 0:
			return NewUint(low), next, nil
		case high == math.MaxUint64 && low > math.MaxInt64:
			return NewInt(int64(low)), next, nil
		}

		return Value{}, 0, malformedf("128-bit int at offset %d overflows 64 bits", off)
	}

	return Value{}, 0, malformedf("invalid int width %d at offset %d", width, off)
}

// count reads the element count of the object at off whose marker carries
// lo. A lo of 0xF means the count follows as an int object. It returns the
// offset of the object's payload.
func (d *binaryDecoder) count(off uint64, lo uint8) (uint64, uint64, error) {
	if lo != 0x0F {
		return off + 1, uint64(lo), nil
	}

	if off+1 >= d.end {
		return 0, 0, malformedf("truncated length at offset %d", off)
	}

	v, next, err := d.integer(off + 1)
	if err != nil {
		return 0, 0, err
	}

	n, ok := v.AsUint()
	if !ok {
		return 0, 0, malformedf("negative length at offset %d", off)
	}

	return next, n, nil
}

func (d *binaryDecoder) string(off uint64, hi, lo uint8) (string, error) {
	start, count, err := d.count(off, lo)
	if err != nil {
		return "", err
	}

	if hi == markerASCII {
		b, err := d.bytes(start, count)
		if err != nil {
			return "", err
		}

		// A rune of Latin-1 takes at most 2 bytes of UTF-8.
		if err = d.charge(count * 2); err != nil {
			return "", err
		}

		// Bytes beyond ASCII are Latin-1.
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}

		return string(runes), nil
	}

	if count > (d.end-start)/2 {
		return "", malformedf("utf-16 string at offset %d overruns the object area", off)
	}

	b, err := d.bytes(start, count*2)
	if err != nil {
		return "", err
	}

	// A UTF-16 unit takes at most 3 bytes of UTF-8.
	if err = d.charge(count * 3); err != nil {
		return "", err
	}

	units := make([]uint16, count)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[i*2:])
	}

	return string(utf16.Decode(units)), nil
}

func (d *binaryDecoder) refs(start, count uint64) ([]uint64, error) {
	size := uint64(d.trailer.ObjectRefSize)
	if count > (d.end-min(start, d.end))/size {
		return nil, malformedf("%d refs at offset %d overrun the object area", count, start)
	}

	b, err := d.bytes(start, count*size)
	if err != nil {
		return nil, err
	}

	refs := make([]uint64, count)
	for i := range refs {
		refs[i] = readUint(b[uint64(i)*size : uint64(i+1)*size])
	}

	return refs, nil
}

// bytes returns n bytes at off, which must lie within the object area.
func (d *binaryDecoder) bytes(off, n uint64) ([]byte, error) {
	if off > d.end || n > d.end-off {
		return nil, malformedf("%d bytes at offset %d overrun the object area", n, off)
	}

	return d.buf[off : off+n], nil
}

func readUint(b []byte) uint64 {
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}

	return u
}

func date(secs float64) (Value, error) {
	// About +/- 31 million years.
	if math.IsNaN(secs) || math.IsInf(secs, 0) || math.Abs(secs) > 1e15 {
		return Value{}, malformedf("date %v out of range", secs)
	}

	whole, frac := math.Modf(secs)

	return NewDate(time.Unix(appleEpoch+int64(whole), int64(frac*float64(time.Second))).UTC()), nil
}
