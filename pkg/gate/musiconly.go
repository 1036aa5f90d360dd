package gate

import "strings"

// Music-only classification. A transcript is music-only when, after
// normalization, every token is either a music keyword or a filler, and at
// least one keyword survives filler removal. Fillers alone (no keyword) do
// not qualify.

var musicKeywords = map[string]bool{
	"music":   true,
	"musique": true,
}

var musicFillers = map[string]bool{
	"background": true, "bg": true, "only": true, "instrumental": true,
	"ambience": true, "ambiance": true, "ambient": true, "soundtrack": true,
	"track": true, "outro": true, "intro": true, "playing": true,
	"play": true, "song": true, "soft": true, "theme": true,
	"jingle": true, "de": true, "du": true, "fond": true,
}

var musicMarkers = strings.NewReplacer(
	"♪", " music ",
	"♫", " music ",
	"♩", " music ",
	"♬", " music ",
	"♭", " music ",
	"♯", " music ",
)

// isMusicOnly reports whether the transcript contains nothing but music
// annotations.
func isMusicOnly(text string) bool {
	tokens := tokenize(musicMarkers.Replace(text))
	if len(tokens) == 0 {
		return false
	}
	keywords := 0
	for _, tok := range tokens {
		switch {
		case musicKeywords[tok]:
			keywords++
		case musicFillers[tok]:
		default:
			return false
		}
	}
	return keywords >= 1
}
