package extract_test

import (
	"testing"

	"github.com/book-expert/podcast-service/internal/extract"
	"github.com/stretchr/testify/assert"
)

// normalizerTestCase defines a standard test case for the normalizer.
type normalizerTestCase struct {
	name     string
	input    string
	expected string
}

func runNormalizerTests(t *testing.T, tests []normalizerTestCase) {
	t.Helper()

	normalizer := extract.NewNormalizer()

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, normalizer.Normalize(testCase.input))
		})
	}
}

func TestNormalizer_EmptyInput(t *testing.T) {
	t.Parallel()

	assert.Empty(t, extract.NewNormalizer().Normalize(""))
}

func TestNormalizer_Whitespace(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{"collapses spaces and tabs", "Hello \t  world", "Hello world"},
		{"keeps line structure", "First line\nSecond line", "First line\nSecond line"},
		{"normalizes CRLF", "one\r\ntwo\rthree", "one\ntwo\nthree"},
		{"collapses blank lines", "para one\n\n\n\n  \npara two", "para one\n\npara two"},
		{"trims edges", "  \n padded \n ", "padded"},
		{"non-breaking space", "a\u00a0b", "a b"},
	})
}

func TestNormalizer_References(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{"bracketed marker", "Transformers are fast[12].", "Transformers are fast."},
		{"marker ranges", "As shown [3, 4] and [5-7].", "As shown and ."},
		{"superscripts", "Energy²³ matters", "Energy matters"},
		{"author-year citation", "Attention works (Vaswani et al., 2017).", "Attention works."},
		{"keeps plain parentheses", "The model (a decoder) wins.", "The model (a decoder) wins."},
	})
}

func TestNormalizer_Typography(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{"smart quotes", "“Hi” and ‘bye’", `"Hi" and 'bye'`},
		{"dashes", "a—b–c", "a-b-c"},
		{"ellipsis", "wait…", "wait..."},
		{"repeated marks", "Really?!?! Yes!!!", "Really? Yes!"},
		{"dot leaders", "Chapter 1 ........ 5", "Chapter 1 ... 5"},
		{"hyphenated line break", "trans-\nformer", "transformer"},
		{"soft hyphen", "co\u00adoperate", "cooperate"},
		{"control characters", "bell\x07 here", "bell here"},
	})
}

func TestNormalizer_PreservesURLsAndEmails(t *testing.T) {
	t.Parallel()

	runNormalizerTests(t, []normalizerTestCase{
		{
			"url with brackets and year",
			"See https://example.com/papers/[1]/2017 now",
			"See https://example.com/papers/[1]/2017 now",
		},
		{
			"repeated tokens",
			"Mail a@b.io or a@b.io — https://x.org and https://x.org",
			"Mail a@b.io or a@b.io - https://x.org and https://x.org",
		},
	})
}
