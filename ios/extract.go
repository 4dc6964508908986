package ios

import (
	"context"
	"errors"
	"fmt"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaplist"
)

type ExtractOpts struct {
	PackageOpts
	otaplist.DecodeOpts
}

type ExtractOpt interface {
	Apply(*ExtractOpts)
}

func (o *ExtractOpts) Apply(opts *ExtractOpts) {
	if o != nil {
		if opts != nil {
			o.PackageOpts.Apply(&opts.PackageOpts)
			o.DecodeOpts.Apply(&opts.DecodeOpts)
		}
	}
}

// Extract reads the Metadata of the .ipa in b, storing its icon, if it has
// one, in store. No Metadata is returned if any step fails, except that a
// failure to store the icon only leaves the Metadata without one.
func Extract(ctx context.Context, b []byte, store IconStore, opts ...ExtractOpt) (*Metadata, error) {
	var (
		log = ota.LoggerFrom(ctx)
		o   = &ExtractOpts{}
	)

	for _, opt := range opts {
		opt.Apply(o)
	}

	pkg, err := OpenPackage(b, &o.PackageOpts)
	if err != nil {
		return nil, err
	}

	infoPath, appDir, err := pkg.FindInfoPlist()
	if err != nil {
		return nil, err
	}
	log.V(1).Info("found " + infoPath)

	raw, err := pkg.ReadEntry(infoPath)
	if err != nil {
		return nil, err
	}

	info, err := otaplist.Decode(raw, &o.DecodeOpts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", infoPath, err)
	}

	md, err := ExtractMetadata(info)
	if err != nil {
		return nil, err
	}

	if store != nil {
		md.Icon, err = ResolveIcon(ctx, pkg, appDir, IconCandidates(info), store)
		if errors.Is(err, ota.ErrIconWriteFailure) {
			log.Error(err, "continuing without an icon")
		} else if err != nil {
			return nil, err
		}
	}

	return md, nil
}
