package otaregexp

func IsUUID(name string) bool {
	return UUID.MatchString(name)
}

func IsIPA(name string) bool {
	return IPA.MatchString(name)
}

func IsInfoPlist(name string) bool {
	return InfoPlist.MatchString(name)
}

func IsStoredFile(name string) bool {
	return StoredFile.MatchString(name)
}
