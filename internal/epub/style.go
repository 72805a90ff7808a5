package epub

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuanying/shamela2epub/internal/book"
)

// DefaultStylesheet is the built-in right-to-left stylesheet. It never
// references a font file.
const DefaultStylesheet = `html, body { direction: rtl; unicode-bidi: embed; }
body { margin: 0 5%; line-height: 1.8; text-align: justify; }
h1, h2, h3 { text-align: center; line-height: 1.4; }
h1.chapter-title { margin: 1em 0; }
p { margin: 0 0 0.6em 0; text-indent: 1.5em; }
blockquote { margin: 0.8em 2em; }
sup a { text-decoration: none; }
ol.endnotes { padding-right: 1.5em; }
ol.endnotes li { margin-bottom: 0.5em; }
.back-link, .section-link { text-decoration: none; }
nav ol { list-style: none; }
`

// pxValueRe matches px values for conversion to em.
var pxValueRe = regexp.MustCompile(`(\d+(?:\.\d+)?)px`)

// ptValueRe matches pt values for conversion to em.
var ptValueRe = regexp.MustCompile(`(\d+(?:\.\d+)?)pt`)

// declarationRe matches a CSS property-value pair.
var declarationRe = regexp.MustCompile(`(?i)^\s*([\w-]+)\s*:\s*(.*?)\s*;?\s*$`)

// negativeMarginRe matches negative numeric values in margin declarations.
var negativeMarginRe = regexp.MustCompile(`-\d`)

// fontURLRe matches url(...) references to font files.
var fontURLRe = regexp.MustCompile(`(?i)url\([^)]*\.(?:ttf|otf|woff2?|eot)[^)]*\)`)

// CleanStylesheet removes every font embedding from css (@font-face and
// @import rules, url() references to font files). Under the
// conservative-device profile it also drops font-family declarations and
// layout properties e-ink readers reject, and converts px/pt units to em.
func CleanStylesheet(css string, profile book.Profile) string {
	if css == "" {
		return ""
	}
	css = stripAtRules(css, "@font-face", "@import")
	device := profile == book.ProfileConservativeDevice

	var result strings.Builder
	i := 0
	for i < len(css) {
		ch := css[i]

		// Comments pass through untouched.
		if ch == '/' && i+1 < len(css) && css[i+1] == '*' {
			end := strings.Index(css[i+2:], "*/")
			if end == -1 {
				result.WriteString(css[i:])
				break
			}
			end += i + 2 + 2
			result.WriteString(css[i:end])
			i = end
			continue
		}

		if ch == '{' || ch == '}' || ch == ';' {
			result.WriteByte(ch)
			i++
			continue
		}

		declEnd := findDeclarationEnd(css, i)
		if declEnd > i {
			decl := css[i:declEnd]
			if m := declarationRe.FindStringSubmatch(strings.TrimSpace(decl)); m != nil {
				if fontURLRe.MatchString(m[2]) || device && isForbiddenProperty(m[1], m[2]) {
					i = declEnd
					for i < len(css) && (css[i] == ';' || css[i] == ' ' || css[i] == '\t') {
						if css[i] == ';' {
							i++
							break
						}
						i++
					}
					continue
				}
				if device {
					decl = convertUnits(decl)
				}
				result.WriteString(decl)
				i = declEnd
				continue
			}
		}

		result.WriteByte(ch)
		i++
	}

	return result.String()
}

// stripAtRules removes the named at-rules, both block (@font-face {...})
// and statement (@import ...;) forms.
func stripAtRules(css string, names ...string) string {
	lower := strings.ToLower(css)
	var b strings.Builder
	i := 0
	for i < len(css) {
		start := -1
		for _, name := range names {
			if strings.HasPrefix(lower[i:], name) {
				start = i
				break
			}
		}
		if start < 0 {
			b.WriteByte(css[i])
			i++
			continue
		}
		end := strings.IndexAny(css[i:], "{;")
		if end < 0 {
			break
		}
		i += end
		if css[i] == ';' {
			i++
			continue
		}
		depth := 0
		for i < len(css) {
			if css[i] == '{' {
				depth++
			} else if css[i] == '}' {
				depth--
				if depth == 0 {
					i++
					break
				}
			}
			i++
		}
	}
	return b.String()
}

// findDeclarationEnd finds the end of a CSS declaration starting at pos.
// Returns the position after the declaration (before or at the semicolon).
// It correctly handles string literals inside values (e.g., content: "...").
func findDeclarationEnd(css string, pos int) int {
	for i := pos; i < len(css); i++ {
		switch css[i] {
		case ';':
			return i
		case '{', '}':
			return i
		case '"', '\'':
			quote := css[i]
			i++
			for i < len(css) {
				if css[i] == '\\' {
					i++
				} else if css[i] == quote {
					break
				}
				i++
			}
		}
	}
	return len(css)
}

// isForbiddenProperty checks if a CSS property-value pair should be removed
// for e-ink devices.
func isForbiddenProperty(property, value string) bool {
	propertyLower := strings.ToLower(strings.TrimSpace(property))
	valueLower := strings.ToLower(strings.TrimSpace(value))

	switch propertyLower {
	case "font-family", "src":
		return true
	case "position":
		return valueLower == "fixed" || valueLower == "absolute"
	case "transform", "transition":
		return true
	}
	if strings.HasPrefix(propertyLower, "transition-") {
		return true
	}
	if propertyLower == "animation" || strings.HasPrefix(propertyLower, "animation-") {
		return true
	}
	if propertyLower == "margin" || strings.HasPrefix(propertyLower, "margin-") {
		if negativeMarginRe.MatchString(valueLower) {
			return true
		}
	}
	return false
}

// convertUnits converts px and pt values to em in a CSS string fragment.
func convertUnits(s string) string {
	s = pxValueRe.ReplaceAllStringFunc(s, func(match string) string {
		val, err := strconv.ParseFloat(strings.TrimSuffix(match, "px"), 64)
		if err != nil {
			return match
		}
		return formatEm(val / 16.0)
	})
	s = ptValueRe.ReplaceAllStringFunc(s, func(match string) string {
		val, err := strconv.ParseFloat(strings.TrimSuffix(match, "pt"), 64)
		if err != nil {
			return match
		}
		return formatEm(val / 12.0)
	})
	return s
}

// formatEm formats an em value, omitting unnecessary decimal places.
func formatEm(val float64) string {
	if val == float64(int(val)) {
		return fmt.Sprintf("%dem", int(val))
	}
	return strconv.FormatFloat(val, 'f', -1, 64) + "em"
}
