package translate

import "strings"

// CodeFormat names an ISO 639 code family.
type CodeFormat string

const (
	ISO6391  CodeFormat = "iso639-1"
	ISO6392B CodeFormat = "iso639-2b"
	ISO6392T CodeFormat = "iso639-2t"
	ISO6393  CodeFormat = "iso639-3"
)

// Canonical language codes are ISO 639-1 ("en", "fr"); everything else in
// the service speaks canonical and converts at the edges.
var codeTable = map[string]map[CodeFormat]string{
	"en": {
		ISO6391:  "en",
		ISO6392B: "eng",
		ISO6392T: "eng",
		ISO6393:  "eng",
	},
	"fr": {
		ISO6391:  "fr",
		ISO6392B: "fre",
		ISO6392T: "fra",
		ISO6393:  "fra",
	},
}

var labels = map[string]string{
	"en": "English",
	"fr": "French",
}

// FromISO converts a code in the given format back to canonical, or ""
// when it maps to no supported language.
func FromISO(code string, format CodeFormat) string {
	code = strings.ToLower(code)
	for canonical, formats := range codeTable {
		if formats[format] == code {
			return canonical
		}
	}
	return ""
}

// Label returns the human-readable name of a canonical code, or the code
// itself when unknown.
func Label(canonical string) string {
	if l, ok := labels[strings.ToLower(canonical)]; ok {
		return l
	}
	return canonical
}

// NormalizeTarget maps a user-supplied target language (any supported ISO
// spelling) to canonical form. Returns "" for unsupported values.
func NormalizeTarget(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if _, ok := codeTable[code]; ok {
		return code
	}
	for _, format := range []CodeFormat{ISO6392B, ISO6392T, ISO6393} {
		if canonical := FromISO(code, format); canonical != "" {
			return canonical
		}
	}
	return ""
}
