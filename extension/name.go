package extension

// ValidateName reports whether name is a well-formed dotted extension
// identifier: one or more dot-separated segments, each starting with an
// ASCII letter, continuing with ASCII letters, digits or underscores.
// Digits and underscores are only allowed after a letter has appeared in
// the current segment, and a name can neither start nor end with a dot.
func ValidateName(name string) bool {
	// Tracks whether the previous character completed a segment. A dot may
	// only follow a completed segment, and the name must end on one.
	dotAllowed := false
	digitOrUnderscoreAllowed := false

	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= '0' && c <= '9':
			if !digitOrUnderscoreAllowed {
				return false
			}
		case c == '_':
			if !digitOrUnderscoreAllowed {
				return false
			}
		case c == '.':
			if !dotAllowed {
				return false
			}
			dotAllowed = false
			digitOrUnderscoreAllowed = false
		case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
			dotAllowed = true
			digitOrUnderscoreAllowed = true
		default:
			return false
		}
	}

	// Finishing with dotAllowed set means the last character was a letter,
	// digit or underscore, i.e. a completed segment. The empty name fails
	// here as well.
	return dotAllowed
}
