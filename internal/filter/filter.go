// Package filter redacts banned words from chat text and detects URLs.
// Matching is resilient to common evasion: leet-speak substitutions,
// separator insertion (f*ck, f_c_k), letter elongation (fuuuck), and
// zero-width characters.
package filter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// leetMap maps each letter to a character class covering visually or
// phonetically similar substitutions seen in evasion attempts.
var leetMap = map[rune]string{
	'a': "[a@4áàâãä]",
	'b': "[b8ß]",
	'c': "[c¢(]",
	'e': "[e3éèêë€]",
	'f': "[f]",
	'g': "[g9]",
	'h': "[h#]",
	'i': "[i1!|íìîï]",
	'k': "[k]",
	'l': "[l1|£]",
	'm': "[m]",
	'n': "[nñ]",
	'o': "[o0òóôõöø°]",
	'p': "[pþ]",
	'r': "[rя]",
	's': "[s5$§]",
	't': "[t7+†]",
	'u': "[uúùûüµ]",
	'v': "[v]",
	'w': "[wω]",
	'x': "[x×]",
	'y': "[yýÿ¥]",
	'z': "[z2]",
}

// Between any two letters of a banned word we allow optional separators:
// spaces, dashes, dots, underscores, or single punctuation characters.
const sep = `[\s\-_\.\*@#^~]*`

// DefaultWords is the built-in banned list. Deployments extend it via
// configuration; multi-word phrases match across flexible whitespace.
var DefaultWords = []string{
	"fuck", "shit", "asshole", "bastard", "piss", "dick", "cock", "prick",
	"jackass", "dumbass", "dipshit", "motherfucker", "fucker", "bullshit",
	"horseshit", "douchebag", "douche", "wanker", "tosser", "bellend",
	"shithead", "fuckhead", "arsehole", "arse", "bitch", "cunt", "slut",
	"whore", "skank", "twat", "retard", "retarded",
	"kill yourself", "kys", "neck yourself", "rope yourself",
	"hang yourself", "drink bleach", "shoot yourself",
}

var urlRe = regexp.MustCompile(`(?i)https?://[^\s<>"']+`)

// stripInvisible removes zero-width / formatting characters commonly
// inserted to break naive pattern matching (soft hyphen, zero-width space
// family, word joiner, BOM).
func stripInvisible(text string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\u00ad', r == '\u2060', r == '\ufeff':
			return -1
		case r >= '\u200b' && r <= '\u200f':
			return -1
		}
		return r
	}, text)
}

// Filter redacts banned words, replacing each match with asterisks.
type Filter struct {
	patterns []*regexp.Regexp
}

// New compiles a filter for the given banned phrases.
func New(words []string) *Filter {
	f := &Filter{patterns: make([]*regexp.Regexp, 0, len(words))}
	for _, phrase := range words {
		f.patterns = append(f.patterns, regexp.MustCompile("(?i)"+buildPattern(phrase)))
	}
	return f
}

// buildPattern expands a phrase into a regex handling leet substitutions,
// separator insertion, and repeated letters. Multi-word phrases allow
// flexible whitespace and punctuation between words.
func buildPattern(phrase string) string {
	words := strings.Fields(strings.ToLower(phrase))
	wordPatterns := make([]string, 0, len(words))
	for _, word := range words {
		var sb strings.Builder
		first := true
		for _, ch := range word {
			if !first {
				sb.WriteString(sep)
			}
			first = false
			if class, ok := leetMap[ch]; ok {
				sb.WriteString(class)
			} else {
				sb.WriteString("[" + regexp.QuoteMeta(string(ch)) + "]")
			}
			// One or more of each character catches elongation (fuuuck).
			sb.WriteString("+")
		}
		wordPatterns = append(wordPatterns, sb.String())
	}
	return strings.Join(wordPatterns, `[\s\-_\.\*@#^~]+`)
}

// Redact replaces every banned-word match with asterisks of equal length.
// Matches inside larger alphanumeric runs (e.g. "class" containing "ass")
// are left alone.
func (f *Filter) Redact(text string) string {
	if text == "" {
		return text
	}
	out := stripInvisible(text)
	for _, re := range f.patterns {
		out = redactMatches(out, re)
	}
	return out
}

func redactMatches(text string, re *regexp.Regexp) string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		// RE2 has no lookbehind, so word boundaries are checked by hand:
		// skip matches embedded in a larger alphanumeric run.
		if alnumBefore(text, start) || alnumAfter(text, end) {
			continue
		}
		sb.WriteString(text[last:start])
		sb.WriteString(strings.Repeat("*", utf8.RuneCountInString(text[start:end])))
		last = end
	}
	sb.WriteString(text[last:])
	return sb.String()
}

func alnumBefore(text string, pos int) bool {
	if pos == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return isAlnum(r)
}

func alnumAfter(text string, pos int) bool {
	if pos >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[pos:])
	return isAlnum(r)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// ExtractURL returns the first http(s) URL in the text, or "" if none.
func ExtractURL(text string) string {
	return urlRe.FindString(text)
}
