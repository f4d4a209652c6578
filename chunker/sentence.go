package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// dot stands in for an abbreviation's period while sentence boundaries are found.
const dot = "\uE000"

var abbreviations = []string{
	"Mr", "Mrs", "Ms", "Dr", "Prof", "Sr", "Jr", "Inc", "Ltd", "Corp",
	"vs", "etc", "i.e", "e.g", "a.m", "p.m", "Ph.D", "M.D",
	"Gov", "Sen", "Rep", "Pres", "VP", "CEO", "CFO",
}

var (
	paragraphRe    = regexp.MustCompile(`\n\s*\n`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	citationRe     = regexp.MustCompile(`\[\d+\]`)
	ellipsisRe     = regexp.MustCompile(`\.{3,}`)
	boundaryRe     = regexp.MustCompile(`[.!?]\s+\p{Lu}`)
	abbreviationRe = buildAbbreviationRe(abbreviations)

	mojibake = strings.NewReplacer(
		"â€™", "'",
		"â€œ", `"`,
		"â€", `"`,
	)
)

func buildAbbreviationRe(abbrs []string) *regexp.Regexp {
	quoted := make([]string, len(abbrs))
	for i, abbr := range abbrs {
		quoted[i] = regexp.QuoteMeta(abbr)
	}

	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\.`)
}

// Clean normalizes a span of text: encoding artifacts are repaired,
// citation markers like [12] removed and whitespace collapsed.
func Clean(text string) string {
	text = mojibake.Replace(text)
	text = citationRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = ellipsisRe.ReplaceAllString(text, "...")
	return strings.TrimSpace(text)
}

// SplitSentences segments text into sentence-like units. Paragraph breaks
// are hard boundaries; inside a paragraph a boundary is terminal
// punctuation followed by whitespace and an uppercase letter.
func SplitSentences(text string) []string {
	var sentences []string

	for _, paragraph := range paragraphRe.Split(text, -1) {
		paragraph = Clean(paragraph)
		if paragraph == "" {
			continue
		}

		protected := abbreviationRe.ReplaceAllStringFunc(paragraph, func(m string) string {
			return m[:len(m)-1] + dot
		})

		for _, s := range splitBoundaries(protected) {
			s = strings.TrimSpace(strings.ReplaceAll(s, dot, "."))
			if s != "" {
				sentences = append(sentences, s)
			}
		}
	}

	return sentences
}

func splitBoundaries(text string) []string {
	var (
		parts []string
		start int
	)

	for _, loc := range boundaryRe.FindAllStringIndex(text, -1) {
		parts = append(parts, text[start:loc[0]+1])

		// resume at the uppercase letter that closed the match
		_, size := utf8.DecodeLastRuneInString(text[:loc[1]])
		start = loc[1] - size
	}

	return append(parts, text[start:])
}
