package otablob

import "path"

const (
	DirUploads = "uploads"
	DirIcons   = "icons"
)

// RegistryKey is where the JSON registry of apps is kept.
const RegistryKey = "apps.json"

func PackageKey(fileName string) string {
	return path.Join(DirUploads, fileName)
}

func IconKey(name string) string {
	return path.Join(DirIcons, name)
}

// PackagePath is the URL path a stored package is served from.
func PackagePath(fileName string) string {
	return "/" + PackageKey(fileName)
}

// IconPath is the URL path a stored icon is served from.
func IconPath(name string) string {
	return "/" + IconKey(name)
}
