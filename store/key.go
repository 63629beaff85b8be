package store

import "regexp"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,254}$`)

// ValidKey reports whether key can name a record file. Valid keys are 1 to
// 255 characters of letters, digits, '.', '_' or '-', and never start with
// '.', so they cannot escape the root or collide with temp files.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}
