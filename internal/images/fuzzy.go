package images

import (
	"sort"
	"strings"
	"unicode"

	"github.com/stonegoods/catmig/internal/domain"
)

// Weights are the fuzzy scoring constants. Historical repair reports were
// produced with DefaultWeights.
type Weights struct {
	Fragment  int
	Keyword   int
	MainBonus int
	PairBonus int
	Threshold int
	Limit     int
}

// DefaultWeights reproduce the original repair pass
var DefaultWeights = Weights{
	Fragment:  10,
	Keyword:   5,
	MainBonus: 3,
	PairBonus: 1,
	Threshold: 15,
	Limit:     3,
}

var keywordStoplist = map[string]bool{
	"slab":     true,
	"polished": true,
	"marble":   true,
	"with":     true,
}

// SlugFragments returns the distinct slug parts longer than two characters
func SlugFragments(slug string) []string {
	return distinct(strings.Split(strings.ToLower(slug), "-"), func(s string) bool {
		return len(s) > 2
	})
}

// NameKeywords returns the distinct name words longer than three characters
// that are not on the stoplist
func NameKeywords(name string) []string {
	words := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return distinct(words, func(s string) bool {
		return len([]rune(s)) > 3 && !keywordStoplist[s]
	})
}

func distinct(in []string, keep func(string) bool) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range in {
		if keep(s) && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Score rates one file name against the slug fragments and name keywords
func (w Weights) Score(file string, fragments, keywords []string) int {
	lower := strings.ToLower(file)
	score := 0
	for _, f := range fragments {
		if strings.Contains(lower, f) {
			score += w.Fragment
		}
	}
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			score += w.Keyword
		}
	}
	if score > w.Threshold {
		if strings.Contains(lower, "-main") || strings.Contains(lower, "-1") {
			score += w.MainBonus
		}
		if strings.Contains(lower, "-2") || strings.Contains(lower, "-3") {
			score += w.PairBonus
		}
	}
	return score
}

// Fuzzy scores every file and returns the best candidates at or above the
// threshold, highest score first. Ties are ordered by file name.
func Fuzzy(slug, name string, files []string, w Weights) []domain.ImageCandidate {
	fragments := SlugFragments(slug)
	keywords := NameKeywords(name)

	var out []domain.ImageCandidate
	for _, f := range files {
		if s := w.Score(f, fragments, keywords); s >= w.Threshold {
			out = append(out, domain.ImageCandidate{Path: f, Score: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	if w.Limit > 0 && len(out) > w.Limit {
		out = out[:w.Limit]
	}
	return out
}
