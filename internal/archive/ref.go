// Package archive builds the archive graph of an upload: deterministic entry
// ids, reference strings, the archive codec, idempotent emission of
// auxiliary entries and an arena for wiring references between them.
package archive

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"path"
	"strings"

	"elncore/pkg/domain"
)

// entryIDLength is the length of an entry id in characters.
const entryIDLength = 28

// EntryID is the deterministic id of fileName within uploadID.
func EntryID(uploadID, fileName string) string {
	h := sha512.New()
	h.Write([]byte(uploadID))
	h.Write([]byte(fileName))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))[:entryIDLength]
}

// RefString returns ../uploads/{uid}/archive/{entry_id}#data.
func RefString(uploadID, fileName string) string {
	return fmt.Sprintf("../uploads/%s/archive/%s#data", uploadID, EntryID(uploadID, fileName))
}

// ReferenceTo returns the resolved reference of fileName in uploadID.
func ReferenceTo(uploadID, fileName string) domain.Reference {
	return domain.Reference{Ref: RefString(uploadID, fileName)}
}

// IsArchiveFile reports whether name is an archive file the built-in archive
// parser handles.
func IsArchiveFile(name string) bool {
	base := strings.ToLower(path.Base(name))
	return strings.HasSuffix(base, ".archive.yaml") || strings.HasSuffix(base, ".archive.yml") ||
		strings.HasSuffix(base, ".archive.json")
}

// Sanitize makes a lab id usable inside a file name.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
}
