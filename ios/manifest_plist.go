package ios

import (
	"io"
	"net/url"

	"howett.net/plist"
)

const (
	SchemeITMSServices = "itms-services"
	ContentTypeIPA     = "application/octet-stream"
	// ContentTypePlist is what the device installer expects a manifest
	// to be served as.
	ContentTypePlist = "text/xml"
)

const (
	AssetKindSoftwarePackage = "software-package"
	AssetKindDisplayImage    = "display-image"
	AssetKindFullSizeImage   = "full-size-image"
	MetadataKindSoftware     = "software"
)

type Manifest struct {
	Items []ManifestItem `plist:"items"`
}

type ManifestItem struct {
	Assets   []ManifestItemAsset   `plist:"assets"`
	Metadata *ManifestItemMetadata `plist:"metadata"`
}

type ManifestItemAsset struct {
	Kind string `plist:"kind"`
	URL  string `plist:"url"`
}

type ManifestItemMetadata struct {
	BundleIdentifier string `plist:"bundle-identifier"`
	BundleVersion    string `plist:"bundle-version"`
	Kind             string `plist:"kind"`
	Title            string `plist:"title"`
}

// BuildManifest describes how to install the package at packagePath,
// resolving packagePath and the icon's path against base. The icon, when
// present, is offered as both the display and the full size image.
func BuildManifest(md *Metadata, packagePath string, base *url.URL) *Manifest {
	assets := []ManifestItemAsset{
		{
			Kind: AssetKindSoftwarePackage,
			URL:  base.JoinPath(packagePath).String(),
		},
	}

	if md.Icon != nil {
		iconURL := base.JoinPath(md.Icon.Path).String()
		assets = append(assets,
			ManifestItemAsset{
				Kind: AssetKindDisplayImage,
				URL:  iconURL,
			},
			ManifestItemAsset{
				Kind: AssetKindFullSizeImage,
				URL:  iconURL,
			},
		)
	}

	return &Manifest{
		Items: []ManifestItem{
			{
				Assets: assets,
				Metadata: &ManifestItemMetadata{
					BundleIdentifier: md.BundleID,
					// The installer is handed the marketing version.
					BundleVersion: md.Version,
					Kind:          MetadataKindSoftware,
					Title:         md.Name,
				},
			},
		},
	}
}

// EncodeManifest writes m to w as an XML property list.
func EncodeManifest(w io.Writer, m *Manifest, indent string) error {
	enc := plist.NewEncoderForFormat(w, plist.XMLFormat)
	if indent != "" {
		enc.Indent(indent)
	}

	return enc.Encode(m)
}
