package ios

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaregexp"
)

const (
	InfoPlistName = "Info.plist"
	PayloadDir    = "Payload"
)

const (
	DefaultMaxEntries   = 65536
	DefaultMaxEntrySize = 64 << 20
)

type PackageOpts struct {
	// MaxEntries caps how many entries the central directory may list.
	MaxEntries int
	// MaxEntrySize caps the decompressed size of any one entry read.
	MaxEntrySize int64
}

type PackageOpt interface {
	Apply(*PackageOpts)
}

func (o *PackageOpts) Apply(opts *PackageOpts) {
	if o != nil {
		if opts != nil {
			if o.MaxEntries > 0 {
				opts.MaxEntries = o.MaxEntries
			}
			if o.MaxEntrySize > 0 {
				opts.MaxEntrySize = o.MaxEntrySize
			}
		}
	}
}

func newPackageOpts(opts ...PackageOpt) *PackageOpts {
	o := &PackageOpts{
		MaxEntries:   DefaultMaxEntries,
		MaxEntrySize: DefaultMaxEntrySize,
	}

	for _, opt := range opts {
		opt.Apply(o)
	}

	return o
}

// Entry is one file in a Package.
type Entry struct {
	Name string
	// Size is the uncompressed size declared by the central directory.
	Size uint64

	f *zip.File
}

// Open returns the decompressed contents of the Entry. The returned reader
// is not bounded; use Package.ReadEntry to read under the size cap.
func (e *Entry) Open() (io.ReadCloser, error) {
	return e.f.Open()
}

// Package is a read-only view over the entries of an .ipa held in memory.
type Package struct {
	opts    *PackageOpts
	buf     []byte
	entries []*Entry
	byName  map[string]*Entry
}

// OpenPackage reads the central directory of the zip archive in b. Entry
// contents are decompressed only when read.
func OpenPackage(b []byte, opts ...PackageOpt) (*Package, error) {
	o := newPackageOpts(opts...)

	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("%w: %v", ota.ErrMalformedPackage, err)
	}

	if len(zr.File) > o.MaxEntries {
		return nil, fmt.Errorf("%w: %d entries exceeds the limit of %d", ota.ErrResourceLimitExceeded, len(zr.File), o.MaxEntries)
	}

	pkg := &Package{
		opts:    o,
		buf:     b,
		entries: make([]*Entry, len(zr.File)),
		byName:  make(map[string]*Entry, len(zr.File)),
	}

	for i, zf := range zr.File {
		entry := &Entry{Name: zf.Name, Size: zf.UncompressedSize64, f: zf}
		pkg.entries[i] = entry
		// A name stored twice resolves to its first occurrence.
		if _, ok := pkg.byName[zf.Name]; !ok {
			pkg.byName[zf.Name] = entry
		}
	}

	return pkg, nil
}

// Size is the length of the archive in bytes.
func (p *Package) Size() int64 {
	return int64(len(p.buf))
}

// Entries returns the entry names in central directory order.
func (p *Package) Entries() []string {
	names := make([]string, len(p.entries))
	for i, entry := range p.entries {
		names[i] = entry.Name
	}

	return names
}

// Entry looks up an entry by its exact name.
func (p *Package) Entry(name string) (*Entry, bool) {
	entry, ok := p.byName[name]
	return entry, ok
}

// ReadEntry decompresses the named entry. The read stops at MaxEntrySize
// regardless of what the entry's header declares.
func (p *Package) ReadEntry(name string) ([]byte, error) {
	entry, ok := p.Entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ota.ErrEntryNotFound, name)
	}

	if entry.Size > uint64(p.opts.MaxEntrySize) {
		return nil, fmt.Errorf("%w: %s declares %d bytes, over the limit of %d", ota.ErrResourceLimitExceeded, name, entry.Size, p.opts.MaxEntrySize)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ota.ErrMalformedPackage, name, err)
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, p.opts.MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ota.ErrMalformedPackage, name, err)
	}

	if int64(len(b)) > p.opts.MaxEntrySize {
		return nil, fmt.Errorf("%w: %s decompresses past the limit of %d bytes", ota.ErrResourceLimitExceeded, name, p.opts.MaxEntrySize)
	}

	return b, nil
}

// FindInfoPlist returns the first entry named Payload/<name>.app/Info.plist
// in stored order along with its .app directory.
func (p *Package) FindInfoPlist() (string, string, error) {
	for _, entry := range p.entries {
		if otaregexp.IsInfoPlist(entry.Name) {
			return entry.Name, path.Dir(entry.Name), nil
		}
	}

	return "", "", fmt.Errorf("%w: no %s/<name>.app/%s", ota.ErrMalformedPackage, PayloadDir, InfoPlistName)
}
