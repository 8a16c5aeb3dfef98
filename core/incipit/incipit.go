// Package incipit derives short lead phrases from the text preceding a
// citation marker. Authors encode semantic boundaries through punctuation, so
// extraction walks a hierarchy of boundary indicators instead of cutting at
// arbitrary word counts: quoted spans first, then legal case names, then the
// opening of the current thought unit, then a plain first-N-words fallback.
package incipit

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinWords and MaxWords bound the extractor's target phrase length.
	MinWords = 2
	MaxWords = 8
	// DefaultWords is the fallback target when no count is configured.
	DefaultWords = 5

	// FallbackPhrase is returned when no usable context exists.
	FallbackPhrase = "See"
)

// Search windows, in characters, anchored at the marker position.
const (
	emDashTailWindow   = 250 // how far back an em-dash pattern may start
	emDashClauseLimit  = 100 // maximum clause length after the em-dash
	quoteSearchWindow  = 150 // how far back a closing quote may sit
	legalTailWindow    = 80  // a case name must end this close to the marker
	splitQuoteEndSlack = 50  // a split quote must end this close to the end
)

// asciiPunctuation mirrors the punctuation set stripped during duplicate
// normalization.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceEndRe = regexp.MustCompile(`[.!?,]["')]*\s+`)
	// sentenceStartRe finds an end-of-sentence followed by a capital letter;
	// the capital is the last byte of the match.
	sentenceStartRe = regexp.MustCompile(`\.["')]*\s+[A-Z]`)
	splitQuoteRe    = regexp.MustCompile(`"([^"]+)" (\w+(?:\s+\w+){0,4}),? "([^"]+)"`)
	legalCaseRe     = regexp.MustCompile(`(?i)\b([A-Za-z][a-zA-Z]*)\s+v\.\s+([A-Za-z][a-zA-Z]*(?:\s+[A-Za-z][a-zA-Z]*)*)`)
	leadTrimRe      = regexp.MustCompile(`^[\s.,;:]+`)
	trailTrimRe     = regexp.MustCompile(`[\s.,;:]+$`)

	glyphNormalizer = strings.NewReplacer(
		"“", `"`, "”", `"`, // curly double quotes
		"‘", "'", "’", "'", // curly single quotes
	)
)

// legalStopWords are verbs and connectives that commonly follow a case name
// but are never part of it.
var legalStopWords = map[string]bool{
	"established": true, "held": true, "ruled": true, "decided": true,
	"found": true, "determined": true, "concluded": true, "stated": true,
	"set": true, "made": true, "is": true, "was": true, "has": true,
	"had": true, "which": true, "that": true, "where": true,
}

// Extractor derives incipit phrases and tracks every phrase it has assigned
// so duplicates are avoided document-wide. One Extractor serves exactly one
// conversion; it is never shared across concurrent conversions.
type Extractor struct {
	targetWords int
	used        []string
}

// NewExtractor returns an extractor targeting wordCount words for fallback
// phrases. A zero count selects DefaultWords; out-of-range counts are clamped
// to [MinWords, MaxWords].
func NewExtractor(wordCount int) *Extractor {
	if wordCount == 0 {
		wordCount = DefaultWords
	}
	if wordCount < MinWords {
		wordCount = MinWords
	}
	if wordCount > MaxWords {
		wordCount = MaxWords
	}
	return &Extractor{targetWords: wordCount}
}

// Extract derives an incipit phrase from the text preceding a reference
// marker. The finalized phrase is recorded for duplicate avoidance in later
// calls. Empty or whitespace-only input yields FallbackPhrase.
func (e *Extractor) Extract(textBefore string) string {
	if strings.TrimSpace(textBefore) == "" {
		return FallbackPhrase
	}
	context := normalize(textBefore)

	phrase := e.quoteExtraction(context)
	if phrase == "" {
		phrase = e.legalCaseExtraction(context)
	}
	if phrase == "" {
		phrase = e.thoughtUnitExtraction(context)
	}
	if phrase == "" {
		phrase = e.fallbackExtraction(context)
	}

	phrase = finalize(phrase)
	e.used = append(e.used, phrase)
	return phrase
}

// MarkUsed records a phrase as already assigned without extracting.
func (e *Extractor) MarkUsed(phrase string) {
	e.used = append(e.used, phrase)
}

// normalize collapses whitespace and folds quote glyph variants so the
// boundary patterns only ever see straight quotes.
func normalize(text string) string {
	text = glyphNormalizer.Replace(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// quoteExtraction looks for a quoted phrase near the marker.
//
// A `"quote"—trailing clause` ending close to the marker wins first: the
// quoted span before the dash is the candidate. Otherwise the last quoted
// span in the trailing window is used. A split quote ("A" few words, "B")
// ending near the marker prefers segment A. Short quotes (<=2 words) and
// short lead-ins (<=4 words) keep the lead-in attached; longer lead-ins are
// dropped in favor of the quote alone.
func (e *Extractor) quoteExtraction(context string) string {
	if phrase := e.emDashQuote(context); phrase != "" {
		return phrase
	}

	region := lastChars(context, quoteSearchWindow)
	lastClose := strings.LastIndex(region, `"`)
	if lastClose == -1 {
		return ""
	}
	closePos := len(context) - len(region) + lastClose

	for _, m := range splitQuoteRe.FindAllStringSubmatchIndex(context, -1) {
		if m[1] >= len(context)-splitQuoteEndSlack {
			first := strings.TrimSuffix(strings.TrimSpace(context[m[2]:m[3]]), ",")
			if wordCount(first) >= 2 {
				return `"` + first + `"`
			}
		}
	}

	openPos := strings.LastIndex(context[:closePos], `"`)
	if openPos == -1 {
		return ""
	}
	quoted := trimQuoted(context[openPos+1 : closePos])
	if quoted == "" {
		return ""
	}
	return joinLeadIn(leadInBefore(context, openPos), quoted)
}

// emDashQuote handles the `..."—short clause` pattern: an em-dash whose
// trailing clause sits against the marker, with a closing quote immediately
// before the dash.
func (e *Extractor) emDashQuote(context string) string {
	tail := lastChars(context, emDashTailWindow)
	dashInTail := strings.LastIndex(tail, "—")
	if dashInTail <= 0 {
		return ""
	}
	afterDash := tail[dashInTail+len("—"):]
	if utf8.RuneCountInString(afterDash) >= emDashClauseLimit {
		return ""
	}
	dashPos := len(context) - len(tail) + dashInTail
	beforeDash := strings.TrimRight(context[:dashPos], " \t")
	if !strings.HasSuffix(beforeDash, `"`) {
		return ""
	}

	region := lastChars(beforeDash, quoteSearchWindow)
	closeInRegion := strings.LastIndex(region, `"`)
	if closeInRegion < 0 {
		return ""
	}
	closePos := len(beforeDash) - len(region) + closeInRegion
	openPos := strings.LastIndex(beforeDash[:closePos], `"`)
	if openPos < 0 {
		return ""
	}
	quoted := trimQuoted(beforeDash[openPos+1 : closePos])
	if quoted == "" || wordCount(quoted) < 2 {
		return ""
	}
	return joinLeadIn(leadInBefore(beforeDash, openPos), quoted)
}

// joinLeadIn applies the lead-in rules to a quoted span.
func joinLeadIn(leadIn, quoted string) string {
	quoteWords := wordCount(quoted)
	leadWords := wordCount(leadIn)
	if leadIn != "" && (quoteWords <= 2 || leadWords <= 4) {
		return leadIn + ` "` + quoted + `"`
	}
	return `"` + quoted + `"`
}

// leadInBefore returns the text between the last sentence or clause boundary
// and pos.
func leadInBefore(s string, pos int) string {
	start := 0
	if locs := sentenceEndRe.FindAllStringIndex(s[:pos], -1); len(locs) > 0 {
		start = locs[len(locs)-1][1]
	}
	return strings.TrimSpace(s[start:pos])
}

// trimQuoted cleans a raw quoted span: surrounding whitespace plus any
// boundary punctuation the author left inside the closing quote.
func trimQuoted(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), " ,;:")
}

// legalCaseExtraction matches `Party v. Party` case names. The "v." marker is
// a strong semantic boundary, but only a case name ending near the marker is
// trusted. Trailing stop words (verbs that follow a holding) are cut.
func (e *Extractor) legalCaseExtraction(context string) string {
	m := legalCaseRe.FindStringIndex(context)
	if m == nil || m[1] <= len(context)-legalTailWindow {
		return ""
	}
	var kept []string
	for _, word := range strings.Fields(context[m[0]:m[1]]) {
		if legalStopWords[strings.ToLower(word)] {
			break
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// thoughtUnitExtraction finds where the current sentence begins, then scans
// forward for the earliest semantic break: em-dash, colon, comma, or an
// interior period. Commas produce fragments, so they require three words;
// the stronger boundaries accept two. A duplicate candidate falls through to
// the next boundary in position order; when every boundary fails, the first N
// words of the sentence are taken, retrying one sentence back if that too is
// a duplicate.
func (e *Extractor) thoughtUnitExtraction(context string) string {
	starts := sentenceStartRe.FindAllStringIndex(context, -1)
	start := 0
	if len(starts) > 0 {
		// The capital letter is the final byte of the match.
		start = starts[len(starts)-1][1] - 1
	}
	sentence := strings.TrimSpace(context[start:])
	if sentence == "" {
		return ""
	}

	type boundary struct {
		kind string
		pos  int
	}
	var boundaries []boundary
	if p := strings.Index(sentence, "—"); p > 0 {
		boundaries = append(boundaries, boundary{"emdash", p})
	}
	if p := strings.Index(sentence, ":"); p > 0 {
		boundaries = append(boundaries, boundary{"colon", p})
	}
	if p := strings.Index(sentence, ","); p > 0 {
		boundaries = append(boundaries, boundary{"comma", p})
	}
	// An interior period marks a short declarative statement; a period in
	// the last few characters is the sentence terminator, not a boundary.
	if p := strings.Index(sentence, "."); p > 0 && p <= len(sentence)-5 {
		boundaries = append(boundaries, boundary{"period", p})
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].pos < boundaries[j].pos })

	for _, b := range boundaries {
		candidate := strings.TrimSpace(sentence[:b.pos])
		minWords := MinWords
		if b.kind == "comma" {
			minWords = 3
		}
		if wordCount(candidate) < minWords {
			continue
		}
		if e.isDuplicate(candidate) {
			continue
		}
		return candidate
	}

	fallback := e.firstWords(sentence)
	if e.isDuplicate(fallback) && len(starts) > 1 {
		prevStart := starts[len(starts)-2][0] + 2
		prevEnd := starts[len(starts)-1][0]
		if prevStart < prevEnd {
			previous := strings.TrimSpace(context[prevStart:prevEnd])
			if previous != "" {
				if alt := e.firstWords(previous); !e.isDuplicate(alt) {
					return alt
				}
			}
		}
	}
	return fallback
}

// firstWords takes the first targetWords words, preferring a comma break
// shortly past the target when at least three words precede it. A comma
// clause already assigned to an earlier reference is not preferred again.
func (e *Extractor) firstWords(text string) string {
	words := strings.Fields(text)
	if len(words) <= e.targetWords {
		return strings.TrimSpace(text)
	}

	limit := e.targetWords + 2
	if limit > len(words) {
		limit = len(words)
	}
	candidate := strings.Join(words[:limit], " ")
	if commaPos := strings.Index(candidate, ","); commaPos > 0 {
		beforeComma := candidate[:commaPos]
		if wordCount(beforeComma) >= 3 && commaPos < len(strings.Join(words[:e.targetWords], " ")) &&
			!e.isDuplicate(beforeComma) {
			return strings.TrimSpace(beforeComma)
		}
	}
	return strings.Join(words[:e.targetWords], " ")
}

// fallbackExtraction takes the first targetWords words of the whole context.
func (e *Extractor) fallbackExtraction(context string) string {
	words := strings.Fields(context)
	if len(words) <= e.targetWords {
		return strings.TrimSpace(context)
	}
	return strings.Join(words[:e.targetWords], " ")
}

// isDuplicate reports whether a candidate collides with an already assigned
// phrase: an exact normalized match, either string containing the other, or
// identical first-three-word prefixes.
func (e *Extractor) isDuplicate(candidate string) bool {
	if len(e.used) == 0 {
		return false
	}
	normalized := normalizeComparable(candidate)
	normWords := strings.Fields(normalized)

	for _, used := range e.used {
		usedNormalized := normalizeComparable(used)
		if normalized == usedNormalized {
			return true
		}
		if strings.Contains(normalized, usedNormalized) || strings.Contains(usedNormalized, normalized) {
			return true
		}
		usedWords := strings.Fields(usedNormalized)
		if len(normWords) >= 3 && len(usedWords) >= 3 &&
			normWords[0] == usedWords[0] && normWords[1] == usedWords[1] && normWords[2] == usedWords[2] {
			return true
		}
	}
	return false
}

// normalizeComparable lowercases, strips ASCII punctuation, and collapses
// whitespace for duplicate comparison.
func normalizeComparable(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf && strings.ContainsRune(asciiPunctuation, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// finalize strips boundary punctuation, capitalizes the first letter, and
// falls back to FallbackPhrase for degenerate results.
func finalize(phrase string) string {
	if phrase == "" {
		return FallbackPhrase
	}
	phrase = leadTrimRe.ReplaceAllString(phrase, "")
	phrase = trailTrimRe.ReplaceAllString(phrase, "")
	if phrase != "" {
		r, size := utf8.DecodeRuneInString(phrase)
		if unicode.IsLower(r) {
			phrase = string(unicode.ToUpper(r)) + phrase[size:]
		}
	}
	if utf8.RuneCountInString(phrase) < 2 {
		return FallbackPhrase
	}
	return phrase
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// lastChars returns the trailing n characters of s, rune-aware.
func lastChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[len(runes)-n:])
}
