package otaregexp

import "regexp"

var (
	UUID = regexp.MustCompile("^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$")

	IPA = regexp.MustCompile(`(?i)^[\w/.-]+\.ipa$`)

	// InfoPlist matches the one Info.plist path an application archive
	// must carry. The bundle directory is a single path segment.
	InfoPlist = regexp.MustCompile(`^Payload/[^/]+\.app/Info\.plist$`)

	// StoredFile matches names of files the server itself generated.
	StoredFile = regexp.MustCompile(`^[a-zA-Z0-9_-]+\.(ipa|png)$`)
)
