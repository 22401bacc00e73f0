// Package safename builds filesystem-safe episode filenames under explicit
// byte budgets. Sanitization keeps Unicode letters so accented titles stay
// readable; budgets are enforced in bytes because that is what filesystems
// limit, and truncation never splits a multi-byte sequence.
package safename

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Marker is appended to a stem that had to be truncated so archived names
// advertise that they are incomplete.
const Marker = "___"

// PartSuffix is the temporary-sibling suffix the fetcher appends while a
// transfer is in flight. Budgets reserve room for it so the .part name is
// legal whenever the final name is.
const PartSuffix = ".part"

// minStemBudget is the smallest stem byte budget worth encoding into. Below
// this the destination path is too deep to hold a meaningful name.
const minStemBudget = 8

// ErrBudgetExhausted reports that the directory consumes so much of the path
// budget that no usable filename remains.
var ErrBudgetExhausted = errors.New("filename byte budget exhausted")

// Encoder holds the filesystem limits applied to generated names.
type Encoder struct {
	// NameMax bounds one path component in bytes.
	NameMax int
	// PathMax bounds the whole destination path in bytes.
	PathMax int
}

// Default returns an encoder sized for common Linux filesystems.
func Default() Encoder {
	return Encoder{NameMax: 255, PathMax: 4096}
}

// Sanitize maps a free-text stem onto the filename-safe alphabet. Unicode
// letters and digits survive; everything outside the allowlist becomes an
// underscore; whitespace runs collapse to single spaces; leading and
// trailing " ._" debris is trimmed. The result is NFC-normalized first so
// equal-looking inputs sanitize identically.
func Sanitize(value string) string {
	value = norm.NFC.String(value)

	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		default:
			b.WriteByte('_')
		}
	}

	cleaned := strings.Join(strings.Fields(b.String()), " ")
	return strings.Trim(cleaned, " ._")
}

// Encode builds the filename stem+tail for a file in dir. The tail (the
// uniqueness tag plus extension) is never modified; when the sanitized stem
// overflows the byte budget it is cut at a rune boundary and finished with
// Marker, so every shortened name ends with the marker immediately before
// the tail.
func (e Encoder) Encode(dir, stem, tail string) (string, error) {
	return e.EncodeBounded(dir, stem, tail, 0)
}

// EncodeBounded behaves like Encode with the stem budget additionally capped
// at maxStemBytes (0 means uncapped). The shrink-and-retry path uses it when
// the filesystem still rejects an in-budget name.
func (e Encoder) EncodeBounded(dir, stem, tail string, maxStemBytes int) (string, error) {
	budget := e.stemBudget(dir, tail)
	if maxStemBytes > 0 && maxStemBytes < budget {
		budget = maxStemBytes
	}
	if budget < minStemBudget {
		return "", ErrBudgetExhausted
	}

	cleaned := Sanitize(stem)
	if cleaned == "" {
		cleaned = "untitled"
	}
	if len(cleaned) <= budget {
		return cleaned + tail, nil
	}

	cut := truncateBytes(cleaned, budget-len(Marker))
	cut = strings.TrimRight(cut, " ._-")
	if cut == "" {
		return "", ErrBudgetExhausted
	}
	return cut + Marker + tail, nil
}

// StemBudget exposes the byte budget available for a stem in dir so callers
// can halve it between retries.
func (e Encoder) StemBudget(dir, tail string) int {
	return e.stemBudget(dir, tail)
}

func (e Encoder) stemBudget(dir, tail string) int {
	nameMax := e.NameMax
	if nameMax <= 0 {
		nameMax = 255
	}
	pathMax := e.PathMax
	if pathMax <= 0 {
		pathMax = 4096
	}

	reserved := len(tail) + len(PartSuffix)
	budget := nameMax - reserved
	if byPath := pathMax - len(dir) - 1 - reserved; byPath < budget {
		budget = byPath
	}
	return budget
}

// truncateBytes cuts s to at most limit bytes without splitting a UTF-8
// sequence.
func truncateBytes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 {
		r, size := utf8.DecodeLastRuneInString(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
