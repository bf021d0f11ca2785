package builder

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/harrisonrobin/zenkai/pkg/match"
)

// MorningDetector tells whether an original time fragment refers to the morning.
type MorningDetector interface {
	IsMorning(fragment string) bool
}

// MorningDetectorFunc adapts a function to MorningDetector.
type MorningDetectorFunc func(fragment string) bool

func (f MorningDetectorFunc) IsMorning(fragment string) bool {
	return f(fragment)
}

var (
	amSuffix  = regexp.MustCompile(`\d\s*(am|a\.m\.?)$`)
	clockText = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
)

// DefaultMorningWords are matched against normalized fragments.
var DefaultMorningWords = []string{
	"morning",
	"dawn",
	"sunrise",
	"breakfast",
	"madrugada",
	"de la manana",
	"del mati",
	"matin",
}

// Keywords is a MorningDetector matching whole words or phrases, "am"
// style suffixes like "7am" or "10:30 a.m." and 24-hour "HH:MM" times
// before noon.
type Keywords struct {
	Words  []string
	Locale string
}

func (k Keywords) IsMorning(fragment string) bool {
	text := match.Normalize(fragment, k.Locale)
	if text == "" {
		return false
	}
	if amSuffix.MatchString(text) {
		return true
	}
	if m := clockText.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return hour < 12
	}
	padded := " " + strings.Map(func(r rune) rune {
		if r == ',' || r == ';' || r == '(' || r == ')' {
			return ' '
		}
		return r
	}, text) + " "
	words := k.Words
	if words == nil {
		words = DefaultMorningWords
	}
	for _, w := range words {
		if strings.Contains(padded, " "+match.Normalize(w, k.Locale)+" ") {
			return true
		}
	}
	return false
}
