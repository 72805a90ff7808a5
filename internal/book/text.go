package book

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// bidiControls are invisible direction marks and the BOM. Copy-pasted Arabic
// text is full of them and they break matching and file names.
var bidiControls = map[rune]bool{
	'\u200e': true, '\u200f': true,
	'\u202a': true, '\u202b': true, '\u202c': true, '\u202d': true, '\u202e': true,
	'\u2066': true, '\u2067': true, '\u2068': true, '\u2069': true,
	'\ufeff': true,
}

// zeroWidth are the zero-width joiners/spaces some readers render as boxes.
var zeroWidth = map[rune]bool{
	'\u200b': true, '\u200c': true, '\u200d': true, '\u2060': true,
}

const tatweel = '\u0640'

// IsBidiControl reports whether r is a bidi control character or BOM.
func IsBidiControl(r rune) bool {
	return bidiControls[r]
}

// StripControls removes bidi controls and zero-width characters but keeps
// everything else (including whitespace) untouched.
func StripControls(s string) string {
	if !strings.ContainsFunc(s, func(r rune) bool { return bidiControls[r] || zeroWidth[r] }) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if bidiControls[r] || zeroWidth[r] {
			return -1
		}
		return r
	}, s)
}

// NormalizeText normalizes Arabic display text while preserving diacritics.
// Hard spaces become spaces, soft hyphens, bidi controls and tatweel are
// removed, and the result is NFKC-normalized with whitespace collapsed.
// Input is text already decoded by an HTML parser; entities are left alone.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\u00a0' || r == '\u202f':
			return ' '
		case r == '\u00ad' || r == tatweel || bidiControls[r]:
			return -1
		}
		return r
	}, s)
	s = norm.NFKC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// DigitValue returns the value of a Latin, Arabic-Indic or Persian digit.
func DigitValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= '\u0660' && r <= '\u0669':
		return int(r - '\u0660'), true
	case r >= '\u06f0' && r <= '\u06f9':
		return int(r - '\u06f0'), true
	}
	return 0, false
}

// NormalizeDigits rewrites every Arabic-Indic and Persian digit in s as its ASCII form.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if v, ok := DigitValue(r); ok {
			return rune('0' + v)
		}
		return r
	}, s)
}

// ParseNumber parses a run of digits in any supported script.
// It returns the ASCII form with leading zeros removed.
func ParseNumber(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, r := range s {
		if _, ok := DigitValue(r); !ok {
			return "", false
		}
	}
	ascii := strings.TrimLeft(NormalizeDigits(s), "0")
	if ascii == "" {
		ascii = "0"
	}
	return ascii, true
}
