package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Regex patterns for text normalization.
const (
	urlRegexPattern        = `https?://[^\s<>"]+`
	emailRegexPattern      = `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`
	referenceRegexPattern  = `\[\d+(?:\s*[,–-]\s*\d+)*\]|[¹²³⁴⁵⁶⁷⁸⁹⁰]+`
	citationRegexPattern   = `[ \t]?\([^()]*\b\d{4}[a-z]?\)`
	hyphenBreakPattern     = `(\p{L})-\n(\p{Ll})`
	horizontalSpacePattern = `[^\S\n]+`
	blankLinesPattern      = `\n{3,}`
	repeatedMarkPattern    = `([!?])[!?]+`
	dotLeaderPattern       = `\.{4,}`
)

// Placeholders use private-use runes so that no cleaning rule can touch them.
const (
	urlPlaceholderPattern   = "\ue000url%d\ue001"
	emailPlaceholderPattern = "\ue000mail%d\ue001"
)

// Punctuation and formatting constants.
const (
	emDash         = "—"
	enDash         = "–"
	figureDash     = "‒"
	ellipsis       = "..."
	ellipsisChar   = "…"
	carriageReturn = "\r\n"
	lineFeed       = "\n"
	nonBreaking    = "\u00a0"
	softHyphen     = "\u00ad"
)

// Normalizer cleans extracted document text before it is handed to the
// language model. Line structure is kept; everything inside a line is tidied.
type Normalizer struct {
	urlPattern        *regexp.Regexp
	emailPattern      *regexp.Regexp
	referencePattern  *regexp.Regexp
	citationPattern   *regexp.Regexp
	hyphenBreak       *regexp.Regexp
	horizontalSpace   *regexp.Regexp
	blankLines        *regexp.Regexp
	repeatedMarks     *regexp.Regexp
	dotLeaders        *regexp.Regexp
	typographyReplace *strings.Replacer
}

// NewNormalizer compiles the normalization patterns.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		urlPattern:       regexp.MustCompile(urlRegexPattern),
		emailPattern:     regexp.MustCompile(emailRegexPattern),
		referencePattern: regexp.MustCompile(referenceRegexPattern),
		citationPattern:  regexp.MustCompile(citationRegexPattern),
		hyphenBreak:      regexp.MustCompile(hyphenBreakPattern),
		horizontalSpace:  regexp.MustCompile(horizontalSpacePattern),
		blankLines:       regexp.MustCompile(blankLinesPattern),
		repeatedMarks:    regexp.MustCompile(repeatedMarkPattern),
		dotLeaders:       regexp.MustCompile(dotLeaderPattern),
		typographyReplace: strings.NewReplacer(
			emDash, "-",
			enDash, "-",
			figureDash, "-",
			ellipsisChar, ellipsis,
			"“", `"`, "”", `"`,
			"‘", "'", "’", "'",
			nonBreaking, " ",
			softHyphen, "",
		),
	}
}

// Normalize returns the cleaned text. URLs and e-mail addresses survive
// untouched; bracketed reference markers and parenthesized author-year
// citations are dropped.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}

	normalized := strings.NewReplacer(carriageReturn, lineFeed, "\r", lineFeed).Replace(text)
	normalized = n.hyphenBreak.ReplaceAllString(normalized, "$1$2")

	preserved, placeholders := n.preserveTokens(normalized)

	cleaned := n.referencePattern.ReplaceAllString(preserved, "")
	cleaned = n.citationPattern.ReplaceAllString(cleaned, "")
	cleaned = n.typographyReplace.Replace(cleaned)
	cleaned = n.repeatedMarks.ReplaceAllString(cleaned, "$1")
	cleaned = n.dotLeaders.ReplaceAllString(cleaned, ellipsis)
	cleaned = stripControl(cleaned)
	cleaned = n.tidyLines(cleaned)

	return restoreTokens(cleaned, placeholders)
}

// preserveTokens swaps URLs and e-mail addresses for placeholders.
func (n *Normalizer) preserveTokens(text string) (processedText string, placeholders map[string]string) {
	placeholders = make(map[string]string)
	processedText = text
	counter := 0

	replaceFunc := func(pattern *regexp.Regexp, placeholderFormat string) {
		processedText = pattern.ReplaceAllStringFunc(processedText, func(match string) string {
			placeholder := fmt.Sprintf(placeholderFormat, counter)
			placeholders[placeholder] = match
			counter++

			return placeholder
		})
	}

	replaceFunc(n.urlPattern, urlPlaceholderPattern)
	replaceFunc(n.emailPattern, emailPlaceholderPattern)

	return processedText, placeholders
}

func restoreTokens(text string, placeholders map[string]string) string {
	for placeholder, original := range placeholders {
		text = strings.ReplaceAll(text, placeholder, original)
	}

	return text
}

// tidyLines collapses horizontal whitespace, trims every line and keeps at
// most one blank line between paragraphs.
func (n *Normalizer) tidyLines(text string) string {
	lines := strings.Split(text, lineFeed)
	for i, line := range lines {
		lines[i] = strings.TrimSpace(n.horizontalSpace.ReplaceAllString(line, " "))
	}

	joined := n.blankLines.ReplaceAllString(strings.Join(lines, lineFeed), "\n\n")

	return strings.TrimSpace(joined)
}

func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			return r
		}

		return -1
	}, text)
}
