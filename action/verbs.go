package action

import "strings"

// knownVerbs covers irregulars the algorithmic rules below get
// wrong, plus a few common verbs (run, fetch, publish) whose forms the
// rules would also produce, keyed by base verb.
var knownVerbs = map[string][2]string{
	"run":     {"runs", "running"},
	"fetch":   {"fetches", "fetching"},
	"publish": {"publishes", "publishing"},
	"go":      {"goes", "going"},
	"do":      {"does", "doing"},
	"be":      {"is", "being"},
	"have":    {"has", "having"},
}

var vowels = map[byte]bool{'a': true, 'e': true, 'i': true, 'o': true, 'u': true}

// Conjugate derives the 3rd-person-singular and gerund forms of a
// base verb. Irregulars come from the lookup table; everything else
// goes through the rule functions below.
func Conjugate(verb string) (act3rd, gerund string) {
	v := strings.ToLower(verb)
	if known, ok := knownVerbs[v]; ok {
		return known[0], known[1]
	}
	return thirdPersonSingular(v), toGerund(v)
}

// thirdPersonSingular applies consonant-y, sibilant-suffix, and
// plain-s rules, in that order.
func thirdPersonSingular(v string) string {
	n := len(v)
	if n == 0 {
		return v
	}
	switch {
	case n >= 2 && isConsonant(v[n-2]) && v[n-1] == 'y':
		return v[:n-1] + "ies"
	case hasAnySuffix(v, "s", "x", "z", "ch", "sh"):
		return v + "es"
	default:
		return v + "s"
	}
}

// toGerund applies the gerund rules in order. The "ie" rule and the
// drop-e rule are mutually exclusive with the CVC doubling rule
// because both require the base to end in a vowel or 'e', while CVC
// doubling requires ending in a consonant.
func toGerund(v string) string {
	n := len(v)
	switch {
	case strings.HasSuffix(v, "ie"):
		return v[:n-2] + "ying"
	case strings.HasSuffix(v, "e") && !strings.HasSuffix(v, "ee"):
		return v[:n-1] + "ing"
	case isShortCVC(v):
		return v + string(v[n-1]) + "ing"
	default:
		return v + "ing"
	}
}

// isShortCVC reports a 3-letter consonant-vowel-consonant verb whose
// final consonant is not w, x, or y.
func isShortCVC(v string) bool {
	if len(v) != 3 {
		return false
	}
	if !isConsonant(v[0]) || !isVowel(v[1]) || !isConsonant(v[2]) {
		return false
	}
	switch v[2] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

func isVowel(b byte) bool    { return vowels[b] }
func isConsonant(b byte) bool { return !vowels[b] && b >= 'a' && b <= 'z' }

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
