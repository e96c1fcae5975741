package textanalyzer

import (
	"bytes"
	"strings"
)

// Porter2 (Snowball English) stemmer. Words are handled as bytes: non-ASCII
// letters are never vowels and pass through untouched.

var englishExceptions = map[string]string{
	"skis": "ski", "skies": "sky", "dying": "die", "lying": "lie", "tying": "tie",
	"idly": "idl", "gently": "gentl", "ugly": "ugli", "early": "earli", "only": "onli",
	"singly": "singl", "sky": "sky", "news": "news", "howe": "howe",
	"atlas": "atlas", "cosmos": "cosmos", "bias": "bias", "andes": "andes",
}

// invariant after step 1a
var englishExceptions1a = map[string]struct{}{
	"inning": {}, "outing": {}, "canning": {}, "herring": {}, "earring": {},
	"proceed": {}, "exceed": {}, "succeed": {},
}

type rule struct {
	suffix, repl string
}

// Suffix tables are ordered longest first; only the first match is tried.
var (
	step2Rules = []rule{
		{"ization", "ize"}, {"ational", "ate"}, {"fulness", "ful"}, {"ousness", "ous"},
		{"iveness", "ive"}, {"tional", "tion"}, {"biliti", "ble"}, {"lessli", "less"},
		{"entli", "ent"}, {"ation", "ate"}, {"alism", "al"}, {"aliti", "al"},
		{"ousli", "ous"}, {"iviti", "ive"}, {"fulli", "ful"}, {"enci", "ence"},
		{"anci", "ance"}, {"abli", "able"}, {"izer", "ize"}, {"ator", "ate"},
		{"alli", "al"}, {"bli", "ble"}, {"ogi", "og"}, {"li", ""},
	}
	step3Rules = []rule{
		{"ational", "ate"}, {"tional", "tion"}, {"alize", "al"}, {"icate", "ic"},
		{"iciti", "ic"}, {"ative", ""}, {"ical", "ic"}, {"ness", ""}, {"ful", ""},
	}
	step4Suffixes = []string{
		"ement", "ance", "ence", "able", "ible", "ment", "ant", "ent", "ism",
		"ate", "iti", "ous", "ive", "ize", "ion", "al", "er", "ic",
	}
)

// StemEnglish returns the Porter2 stem of a lower-case word.
func StemEnglish(word string) string {
	if len(word) <= 2 {
		return word
	}
	word = strings.TrimPrefix(word, "'")
	if stem, ok := englishExceptions[word]; ok {
		return stem
	}

	w := &stemWord{b: []byte(word)}
	for i, c := range w.b {
		if c == 'y' && (i == 0 || isVowel(w.b[i-1])) {
			w.b[i] = 'Y'
		}
	}
	w.markRegions()

	w.step0()
	w.step1a()
	if _, ok := englishExceptions1a[string(w.b)]; ok {
		return string(w.b)
	}
	w.step1b()
	w.step1c()
	w.replace(step2Rules, w.r1, true)
	w.replace(step3Rules, w.r1, false)
	w.step4()
	w.step5()

	return string(bytes.ReplaceAll(w.b, []byte("Y"), []byte("y")))
}

type stemWord struct {
	b      []byte
	r1, r2 int
}

func isVowel(c byte) bool {
	switch c {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

func (w *stemWord) markRegions() {
	w.r1 = -1
	for _, p := range []string{"gener", "commun", "arsen"} {
		if bytes.HasPrefix(w.b, []byte(p)) {
			w.r1 = len(p)
			break
		}
	}
	if w.r1 < 0 {
		w.r1 = w.afterVowelConsonant(0)
	}
	w.r2 = w.afterVowelConsonant(w.r1)
}

// afterVowelConsonant returns the index after the first non-vowel that
// follows a vowel, both at or after from.
func (w *stemWord) afterVowelConsonant(from int) int {
	for i := from + 1; i < len(w.b); i++ {
		if !isVowel(w.b[i]) && isVowel(w.b[i-1]) {
			return i + 1
		}
	}
	return len(w.b)
}

func (w *stemWord) has(suffix string) bool {
	return bytes.HasSuffix(w.b, []byte(suffix))
}

func (w *stemWord) trim(n int) {
	w.b = w.b[:len(w.b)-n]
}

func (w *stemWord) hasVowel(end int) bool {
	for _, c := range w.b[:end] {
		if isVowel(c) {
			return true
		}
	}
	return false
}

// endsShortSyllable reports whether b ends in a short syllable.
func endsShortSyllable(b []byte) bool {
	n := len(b)
	if n == 2 {
		return isVowel(b[0]) && !isVowel(b[1])
	}
	if n < 3 {
		return false
	}
	last := b[n-1]
	return !isVowel(b[n-3]) && isVowel(b[n-2]) && !isVowel(last) &&
		last != 'w' && last != 'x' && last != 'Y'
}

func (w *stemWord) step0() {
	for _, s := range []string{"'s'", "'s", "'"} {
		if w.has(s) {
			w.trim(len(s))
			return
		}
	}
}

func (w *stemWord) step1a() {
	switch {
	case w.has("sses"):
		w.trim(2)
	case w.has("ied"), w.has("ies"):
		if len(w.b) > 4 {
			w.trim(2)
		} else {
			w.trim(1)
		}
	case w.has("us"), w.has("ss"):
	case w.has("s"):
		if w.hasVowel(len(w.b) - 2) {
			w.trim(1)
		}
	}
}

func (w *stemWord) step1b() {
	for _, s := range []string{"eedly", "eed"} {
		if w.has(s) {
			if len(w.b)-len(s) >= w.r1 {
				w.trim(len(s) - 2)
			}
			return
		}
	}
	for _, s := range []string{"ingly", "edly", "ing", "ed"} {
		if !w.has(s) {
			continue
		}
		if !w.hasVowel(len(w.b) - len(s)) {
			return
		}
		w.trim(len(s))
		n := len(w.b)
		switch {
		case w.has("at"), w.has("bl"), w.has("iz"):
			w.b = append(w.b, 'e')
		case n >= 2 && w.b[n-1] == w.b[n-2] && bytes.IndexByte([]byte("bdfgmnprt"), w.b[n-1]) >= 0:
			w.trim(1)
		case w.r1 == n && endsShortSyllable(w.b):
			w.b = append(w.b, 'e')
		}
		return
	}
}

func (w *stemWord) step1c() {
	n := len(w.b)
	if n > 2 && (w.b[n-1] == 'y' || w.b[n-1] == 'Y') && !isVowel(w.b[n-2]) {
		w.b[n-1] = 'i'
	}
}

// replace applies the first rule whose suffix matches, if it starts inside
// region. With step2 set the "ogi" and "li" guards apply, and "ative" in
// step 3 needs R2.
func (w *stemWord) replace(rules []rule, region int, step2 bool) {
	for _, r := range rules {
		if !w.has(r.suffix) {
			continue
		}
		start := len(w.b) - len(r.suffix)
		if start < region {
			return
		}
		if step2 {
			switch r.suffix {
			case "ogi":
				if start == 0 || w.b[start-1] != 'l' {
					return
				}
			case "li":
				if start == 0 || bytes.IndexByte([]byte("cdeghkmnrt"), w.b[start-1]) < 0 {
					return
				}
			}
		} else if r.suffix == "ative" && start < w.r2 {
			return
		}
		w.b = append(w.b[:start], r.repl...)
		return
	}
}

func (w *stemWord) step4() {
	for _, s := range step4Suffixes {
		if !w.has(s) {
			continue
		}
		start := len(w.b) - len(s)
		if start < w.r2 {
			return
		}
		if s == "ion" && (start == 0 || (w.b[start-1] != 's' && w.b[start-1] != 't')) {
			return
		}
		w.trim(len(s))
		return
	}
}

func (w *stemWord) step5() {
	n := len(w.b)
	if n == 0 {
		return
	}
	switch w.b[n-1] {
	case 'e':
		if n-1 >= w.r2 || (n-1 >= w.r1 && !endsShortSyllable(w.b[:n-1])) {
			w.trim(1)
		}
	case 'l':
		if n-1 >= w.r2 && n >= 2 && w.b[n-2] == 'l' {
			w.trim(1)
		}
	}
}
