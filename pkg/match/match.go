// Package match finds backlog tasks by approximate title.
package match

import (
	"slices"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/harrisonrobin/zenkai/pkg/model"
)

const (
	tierExact = iota
	tierFuzzy
	tierContained
)

type candidate struct {
	index int
	tier  int
	score int
	size  int
}

// Normalize folds case for locale, strips diacritics and collapses whitespace.
func Normalize(s, locale string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	lower := cases.Lower(tag(locale)).String(stripped)
	return strings.Join(strings.Fields(lower), " ")
}

func tag(locale string) language.Tag {
	if locale == "" {
		return language.Und
	}
	t, err := language.Parse(locale)
	if err != nil {
		return language.Und
	}
	return t
}

// BestMatch returns the task whose title best matches query.
//
// Ranking: an exact normalized title wins, then titles the query fuzzily
// matches (higher fuzzy score first), then titles contained in the query.
// A fuzzy hit counts only when every query word matches a distinct title word,
// so a short query does not pick an unrelated title sharing its letters.
// Remaining ties go to the shortest title, then to the earliest position in
// tasks.
func BestMatch(tasks []model.Task, query, locale string) (model.Task, bool) {
	i := BestIndex(model.Titles(tasks), query, locale)
	if i < 0 {
		return model.Task{}, false
	}
	return tasks[i], true
}

// BestIndex ranks titles like BestMatch and returns the winning index, or -1.
func BestIndex(titles []string, query, locale string) int {
	q := Normalize(query, locale)
	if q == "" {
		return -1
	}
	normalized := make([]string, len(titles))
	for i, title := range titles {
		normalized[i] = Normalize(title, locale)
	}

	ranked := make(map[int]candidate)
	consider := func(c candidate) {
		if prev, ok := ranked[c.index]; ok && !better(c, prev) {
			return
		}
		ranked[c.index] = c
	}
	for i, n := range normalized {
		if n == "" {
			continue
		}
		if n == q {
			consider(candidate{index: i, tier: tierExact, size: len(n)})
		} else if strings.Contains(q, n) {
			consider(candidate{index: i, tier: tierContained, score: len(n), size: len(n)})
		}
	}
	queryWords := strings.Fields(q)
	for _, m := range fuzzy.Find(q, normalized) {
		if matchedWords(queryWords, strings.Fields(normalized[m.Index])) < len(queryWords) {
			continue
		}
		consider(candidate{index: m.Index, tier: tierFuzzy, score: m.Score, size: len(normalized[m.Index])})
	}
	if len(ranked) == 0 {
		return -1
	}

	all := make([]candidate, 0, len(ranked))
	for _, c := range ranked {
		all = append(all, c)
	}
	slices.SortFunc(all, func(a, b candidate) int {
		if better(a, b) {
			return -1
		}
		if better(b, a) {
			return 1
		}
		return 0
	})
	return all[0].index
}

func better(a, b candidate) bool {
	if a.tier != b.tier {
		return a.tier < b.tier
	}
	if a.score != b.score {
		return a.score > b.score
	}
	if a.size != b.size {
		return a.size < b.size
	}
	return a.index < b.index
}

// Similarity is the share of words two titles have in common, from 0 to 1.
// Words match when equal, when one is a prefix of the other of at least
// three letters, or when they are one edit apart and at least five letters long.
func Similarity(a, b, locale string) float64 {
	wa := strings.Fields(Normalize(a, locale))
	wb := strings.Fields(Normalize(b, locale))
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	return float64(matchedWords(wa, wb)) / float64(max(len(wa), len(wb)))
}

// matchedWords counts query words paired with a distinct title word.
func matchedWords(query, title []string) int {
	used := make([]bool, len(title))
	n := 0
	for _, q := range query {
		for i, t := range title {
			if !used[i] && sameWord(q, t) {
				used[i] = true
				n++
				break
			}
		}
	}
	return n
}

func sameWord(a, b string) bool {
	if a == b {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	short := min(len(ra), len(rb))
	if short >= 3 && (strings.HasPrefix(a, b) || strings.HasPrefix(b, a)) {
		return true
	}
	return short >= 5 && editDistance(ra, rb) <= 1
}

func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
