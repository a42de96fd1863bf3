package mapping

import (
	"strings"
	"unicode"

	"github.com/nconklindev/harmony/internal/types"
)

// Suggest proposes targets for every header that is not already mapped.
// Existing non-empty targets are never overwritten, so calling it again on its
// own output changes nothing.
//
// Each unmapped header tries, in order: an exact or punctuation-insensitive
// match against fields (first field wins), then the keyword table. Headers
// that match neither stay unmapped.
func Suggest(headers []string, existing types.Mapping, fields []string, rules RuleSet) types.Mapping {
	out := existing.Clone()

	for _, header := range headers {
		if _, ok := out.Target(header); ok {
			continue
		}
		if field, ok := directMatch(header, fields); ok {
			out[header] = field
			continue
		}
		if field, ok := rules.Match(header); ok {
			out[header] = field
		}
	}

	return out
}

func directMatch(header string, fields []string) (string, bool) {
	lower := strings.ToLower(header)
	stripped := stripNonAlnum(lower)

	for _, field := range fields {
		fl := strings.ToLower(field)
		if fl == lower || stripNonAlnum(fl) == stripped {
			return field, true
		}
	}
	return "", false
}

// stripNonAlnum keeps only ASCII letters and digits.
func stripNonAlnum(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, s)
}

// tokenize splits a header into lowercase words at non-alphanumeric runes and
// at lower-to-upper case changes ("CandidateID" -> candidate, id).
func tokenize(s string) []string {
	var words []string
	var cur []rune
	var prev rune

	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	for _, r := range s {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
		prev = r
	}
	flush()

	if words == nil {
		words = []string{}
	}
	return words
}
