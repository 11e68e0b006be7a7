package filename

import (
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxLength leaves room for the timestamp prefix under the usual 255 byte limit.
	MaxLength   = 200
	fallback    = "document"
	requiredExt = ".pdf"
)

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// Sanitize turns an untrusted client file name into a single safe path
// component ending in ".pdf".
func Sanitize(name string) string {
	if !utf8.ValidString(name) {
		name = strings.ToValidUTF8(name, "_")
	}
	name = norm.NFC.String(name)
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "/" || name == "." {
		name = ""
	}

	var b strings.Builder
	inSpace := false
	for _, r := range name {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	name = strings.TrimLeft(b.String(), ".")

	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if !strings.EqualFold(ext, requiredExt) {
		base = name
		ext = requiredExt
	}
	base = strings.TrimRight(base, ". ")
	if base == "" {
		base = fallback
	}
	if stem, _, _ := strings.Cut(base, "."); reservedNames[strings.ToUpper(stem)] {
		base = "_" + base
	}

	return truncate(base, MaxLength-len(ext)) + ext
}

// IsPlainName reports whether name is usable as-is as a single file in a
// directory: no separators, no traversal, not hidden.
func IsPlainName(name string) bool {
	if name == "" || len(name) > 255 || !utf8.ValidString(name) {
		return false
	}
	if strings.ContainsAny(name, "/\\\x00") || strings.HasPrefix(name, ".") {
		return false
	}
	return true
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
