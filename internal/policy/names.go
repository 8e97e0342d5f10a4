package policy

import (
	"strings"
	"unicode"
)

// planTokens are removed from scheme names when deriving a lookup key.
var planTokens = map[string]struct{}{
	"direct":   {},
	"regular":  {},
	"growth":   {},
	"idcw":     {},
	"dividend": {},
	"plan":     {},
	"option":   {},
	"fund":     {},
}

// NormalizeFundName derives the key used for name-based benchmark overrides.
//
// Rules, applied in order:
//  1. lower-case the name;
//  2. replace every rune that is not a letter or digit with a space;
//  3. drop whole-word plan and option tokens (direct, regular, growth, idcw,
//     dividend, plan, option, fund);
//  4. join the remaining words with single spaces.
//
// "HDFC Top 100 Fund - Direct Plan - Growth Option" becomes "hdfc top 100".
func NormalizeFundName(name string) string {
	lowered := strings.ToLower(name)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, lowered)

	words := strings.Fields(cleaned)
	kept := words[:0]
	for _, w := range words {
		if _, drop := planTokens[w]; drop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
