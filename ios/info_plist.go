package ios

import (
	"fmt"

	"github.com/frantjc/ota"
	"github.com/frantjc/ota/internal/otaplist"
)

const (
	KeyCFBundleDisplayName        = "CFBundleDisplayName"
	KeyCFBundleName               = "CFBundleName"
	KeyCFBundleIdentifier         = "CFBundleIdentifier"
	KeyCFBundleShortVersionString = "CFBundleShortVersionString"
	KeyCFBundleVersion            = "CFBundleVersion"
	KeyMinimumOSVersion           = "MinimumOSVersion"
	KeyCFBundleIcons              = "CFBundleIcons"
	KeyCFBundlePrimaryIcon        = "CFBundlePrimaryIcon"
	KeyCFBundleIconFiles          = "CFBundleIconFiles"
)

const (
	DefaultName             = "Unknown"
	DefaultBundleID         = "com.unknown.app"
	DefaultVersion          = "1.0"
	DefaultBuildVersion     = "1"
	DefaultMinimumOSVersion = "9.0"
)

// Metadata is what an install needs to know about an .ipa. Every field
// but Icon is always set.
type Metadata struct {
	Name             string   `json:"name" yaml:"name"`
	BundleID         string   `json:"bundleId" yaml:"bundleId"`
	Version          string   `json:"version" yaml:"version"`
	BuildVersion     string   `json:"buildVersion" yaml:"buildVersion"`
	MinimumOSVersion string   `json:"minimumOSVersion" yaml:"minimumOSVersion"`
	Icon             *IconRef `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// ExtractMetadata reads Metadata out of a decoded Info.plist. Missing, empty
// and non-string values fall back to defaults; only a non-dict root fails.
func ExtractMetadata(info otaplist.Value) (*Metadata, error) {
	if info.Kind() != otaplist.Dict {
		return nil, fmt.Errorf("%w: Info.plist root is a %s, not a dict", ota.ErrMalformedPlist, info.Kind())
	}

	return &Metadata{
		Name:             stringOr(info, DefaultName, KeyCFBundleDisplayName, KeyCFBundleName),
		BundleID:         stringOr(info, DefaultBundleID, KeyCFBundleIdentifier),
		Version:          stringOr(info, DefaultVersion, KeyCFBundleShortVersionString),
		BuildVersion:     stringOr(info, DefaultBuildVersion, KeyCFBundleVersion),
		MinimumOSVersion: stringOr(info, DefaultMinimumOSVersion, KeyMinimumOSVersion),
	}, nil
}

// stringOr returns the first non-empty string under keys, else def.
func stringOr(info otaplist.Value, def string, keys ...string) string {
	for _, key := range keys {
		if v, ok := info.Get(key); ok {
			if s, ok := v.AsString(); ok && s != "" {
				return s
			}
		}
	}

	return def
}
