package pluginapi

import (
	"path"
	"regexp"
	"strings"
)

// HeadSize is how much of a file content matchers see.
const HeadSize = 4096

// Matcher selects files by base-name glob and an optional regular expression
// over the first HeadSize bytes.
type Matcher struct {
	// Globs are path.Match patterns on the lower-cased base name.
	Globs   []string
	Content *regexp.Regexp
}

// Match reports whether name and head satisfy the matcher.
func (m Matcher) Match(name string, head []byte) bool {
	base := strings.ToLower(path.Base(name))
	matched := len(m.Globs) == 0
	for _, g := range m.Globs {
		if ok, err := path.Match(strings.ToLower(g), base); err == nil && ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if m.Content == nil {
		return true
	}
	if len(head) > HeadSize {
		head = head[:HeadSize]
	}
	return m.Content.Match(head)
}
