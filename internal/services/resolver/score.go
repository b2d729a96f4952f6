package resolver

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
	nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)
)

func normalizeSearchText(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

func tokenize(s string) []string {
	return strings.Fields(nonAlnumRun.ReplaceAllString(strings.ToLower(s), " "))
}

// ScoreScheme rates how well a scheme name matches a query. Whole-string
// exact, prefix and substring matches dominate; each query token found in
// the name adds 20; long names are penalised slightly so precise names win
// ties. A zero or negative score means no match.
func ScoreScheme(query, schemeName string) int {
	qNorm := normalizeSearchText(query)
	nNorm := normalizeSearchText(schemeName)
	if qNorm == "" || nNorm == "" {
		return 0
	}

	score := 0
	if nNorm == qNorm {
		score += 120
	}
	if strings.HasPrefix(nNorm, qNorm) {
		score += 90
	}
	if strings.Contains(nNorm, qNorm) {
		score += 70
	}

	nTokens := tokenize(schemeName)
	for _, qt := range tokenize(query) {
		for _, nt := range nTokens {
			if strings.Contains(nt, qt) {
				score += 20
				break
			}
		}
	}

	penalty := len(utf16.Encode([]rune(schemeName))) / 12
	if penalty > 25 {
		penalty = 25
	}
	return score - penalty
}
