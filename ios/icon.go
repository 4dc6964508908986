package ios

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaplist"
	"github.com/google/uuid"
)

// IconRef locates icon bytes saved to an IconStore.
type IconRef struct {
	// Name is the key the icon was stored under.
	Name string `json:"name" yaml:"name"`
	// Path is where the icon is served from, relative to the base URL.
	Path string `json:"path" yaml:"path"`
}

// IconStore persists icon bytes. A WriteIcon either stores all of b or
// nothing.
type IconStore interface {
	WriteIcon(ctx context.Context, name string, b []byte) (IconRef, error)
}

var iconSuffixes = []string{"", ".png", "@2x.png", "@3x.png"}

// FallbackIconNames are probed after every name the Info.plist lists.
var FallbackIconNames = []string{
	"AppIcon60x60@3x.png",
	"AppIcon60x60@2x.png",
	"AppIcon76x76@2x.png",
	"AppIcon-60@3x.png",
	"AppIcon-60@2x.png",
	"Icon-60@3x.png",
	"Icon-60@2x.png",
	"Icon@3x.png",
	"Icon@2x.png",
	"Icon.png",
	"AppIcon.png",
}

// IconCandidates lists, in probe order, the file names inside the .app
// directory that may hold the app's icon: the primary icon files, then the
// legacy icon files, each with its scale variants, then FallbackIconNames.
// A name appears only at its first position.
func IconCandidates(info otaplist.Value) []string {
	var (
		candidates = []string{}
		seen       = map[string]bool{}
		add        = func(name string) {
			if name != "" && !seen[name] {
				seen[name] = true
				candidates = append(candidates, name)
			}
		}
	)

	for _, keys := range [][]string{
		{KeyCFBundleIcons, KeyCFBundlePrimaryIcon, KeyCFBundleIconFiles},
		{KeyCFBundleIconFiles},
	} {
		files, ok := info.Lookup(keys...)
		if !ok {
			continue
		}

		for _, file := range files.Strings() {
			for _, suffix := range iconSuffixes {
				add(file + suffix)
			}
		}
	}

	for _, name := range FallbackIconNames {
		add(name)
	}

	return candidates
}

// ResolveIcon stores the first of candidates that exists under appDir in
// pkg and returns a reference to it. Finding none is not an error.
func ResolveIcon(ctx context.Context, pkg *Package, appDir string, candidates []string, store IconStore) (*IconRef, error) {
	log := ota.LoggerFrom(ctx)

	for _, candidate := range candidates {
		name := path.Join(appDir, candidate)
		if _, ok := pkg.Entry(name); !ok {
			continue
		}

		b, err := pkg.ReadEntry(name)
		if err != nil {
			return nil, err
		}

		if isCrushedPNG(b) {
			log.V(1).Info("icon is a crushed png", "entry", name)
		}

		ref, err := store.WriteIcon(ctx, "icon_"+uuid.NewString()+ota.ExtPNG, b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ota.ErrIconWriteFailure, err)
		}

		log.V(1).Info("stored icon " + ref.Path, "entry", name)

		return &ref, nil
	}

	log.V(1).Info("no icon found", "dir", appDir)

	return nil, nil
}

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	cgbiChunk    = []byte("CgBI")
)

// isCrushedPNG reports whether b is a PNG whose first chunk is Apple's CgBI
// chunk, which Xcode adds when it reorders color channels.
func isCrushedPNG(b []byte) bool {
	if !bytes.HasPrefix(b, pngSignature) || len(b) < len(pngSignature)+8 {
		return false
	}

	// The first chunk's type follows its 4-byte length.
	return bytes.Equal(b[len(pngSignature)+4:len(pngSignature)+8], cgbiChunk)
}
