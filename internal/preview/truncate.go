// Package preview implements the free-tier truncation of generated text.
//
// A preview keeps the smaller of 65% of the body or 1000 words, snapped
// backward to a natural boundary, with an upgrade banner appended. The
// banner is presentation only and never counts toward the preview word
// count.
package preview

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// previewFraction is the share of the full text kept in a preview.
	previewFraction = 0.65

	// maxPreviewWords caps previews of very large outputs.
	maxPreviewWords = 1000

	bannerRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
)

// Result describes the outcome of truncating one generated output.
type Result struct {
	Preview          string
	Truncated        bool
	PreviewWordCount int
	FullWordCount    int
}

// Truncate computes the preview rendering of fullText.
//
// Words are whitespace-separated tokens; empty tokens never count, so
// repeated separators cannot inflate the word count. Empty or
// whitespace-only input yields an empty, untruncated preview.
func Truncate(fullText string) Result {
	n := len(strings.Fields(fullText))
	if n == 0 {
		return Result{}
	}

	limit := previewLimit(n)
	if n <= limit {
		return Result{
			Preview:          fullText,
			Truncated:        false,
			PreviewWordCount: n,
			FullWordCount:    n,
		}
	}

	body := snapToBoundary(fullText[:cutOffset(fullText, limit)])
	bodyWords := len(strings.Fields(body))

	return Result{
		Preview:          body + banner(bodyWords, n),
		Truncated:        true,
		PreviewWordCount: bodyWords,
		FullWordCount:    n,
	}
}

// previewLimit returns the preview word budget for an n-word text: the
// smaller of floor(0.65*n) and maxPreviewWords, but never less than one
// word so a tiny input cannot produce a banner-only preview.
func previewLimit(n int) int {
	limit := int(float64(n) * previewFraction)
	if limit > maxPreviewWords {
		limit = maxPreviewWords
	}
	if limit < 1 {
		limit = 1
	}
	if limit > n {
		limit = n
	}
	return limit
}

// cutOffset returns the byte offset just past the limit-th word of text,
// preserving the original whitespace so paragraph structure survives into
// the preview.
func cutOffset(text string, limit int) int {
	inWord := false
	words := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				inWord = false
				words++
				if words == limit {
					return i
				}
			}
			continue
		}
		inWord = true
	}
	return len(text)
}

// snapToBoundary trims a raw word-boundary cut back to a natural stopping
// point: a paragraph break within the last 20% of the cut, else a sentence
// end within the last 30%. A cut with neither is kept as-is.
func snapToBoundary(cut string) string {
	cut = strings.TrimRight(cut, " \t\r\n")
	if idx := strings.LastIndex(cut, "\n\n"); idx > 0 && idx*5 >= len(cut)*4 {
		return strings.TrimRight(cut[:idx], " \t\r\n")
	}
	if idx := strings.LastIndexAny(cut, ".!?"); idx > 0 && (idx+1)*10 >= len(cut)*7 {
		return cut[:idx+1]
	}
	return cut
}

func banner(shown, total int) string {
	pct := shown * 100 / total
	remaining := total - shown
	return fmt.Sprintf(
		"\n\n%s\nPREVIEW ENDS HERE — %d%% of %d words shown (about %d words remaining).\nUNLOCK FULL ACCESS for $1/month to read the complete output.\n%s",
		bannerRule, pct, total, remaining, bannerRule,
	)
}

// StripBanner returns the body of a preview with any upgrade banner
// removed. Retrieval paths that re-truncate stored previews use this to
// avoid counting banner text as content.
func StripBanner(previewText string) string {
	if idx := strings.Index(previewText, "\n\n"+bannerRule); idx >= 0 {
		return previewText[:idx]
	}
	return previewText
}
