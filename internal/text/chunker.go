// Package text splits extracted document text into embedding-sized segments.
package text

import "strings"

// SplitText breaks text into fixed-size segments of size runes with overlap
// runes shared between consecutive segments. Overlap is clamped below size so
// the window always moves forward. Blank input produces no segments.
func SplitText(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	step := size - overlap

	var segments []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		segment := string(runes[start:end])
		if strings.TrimSpace(segment) != "" {
			segments = append(segments, segment)
		}
		if end == len(runes) {
			break
		}
	}
	return segments
}

// JoinPages flattens per-page text into one string, separating pages with a
// blank line so a chunk boundary never glues the last word of one page to the
// first word of the next.
func JoinPages(pages []string) string {
	trimmed := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		trimmed = append(trimmed, strings.TrimSpace(p))
	}
	return strings.Join(trimmed, "\n\n")
}
