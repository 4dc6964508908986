package ota

import "errors"

// Failure kinds of package extraction. Errors returned by the ios and
// plist packages wrap exactly one of these, so callers branch with errors.Is.
var (
	// ErrMalformedPackage means the archive is unreadable or holds no
	// Payload/<name>.app/Info.plist.
	ErrMalformedPackage = errors.New("malformed package")
	// ErrMalformedPlist means a property list failed to decode or did not
	// have the required shape.
	ErrMalformedPlist = errors.New("malformed plist")
	// ErrResourceLimitExceeded means the input breached an entry count,
	// entry size, plist object count or plist depth cap.
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
	ErrEntryNotFound         = errors.New("entry not found")
	ErrIconWriteFailure      = errors.New("icon write failure")
)
