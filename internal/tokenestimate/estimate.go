// Package tokenestimate provides a deterministic, stateless heuristic for
// estimating prompt/completion token counts when a provider does not report
// its own usage accounting. It is used only for the "usage" block surfaced
// to callers and never influences dispatch or billing decisions upstream.
package tokenestimate

import (
	"math"
	"unicode"

	"github.com/jellyfish-p/web-proxy-api/internal/middle"
)

// perMessageOverhead is added once per message to approximate role/framing
// tokens that the heuristic otherwise ignores.
const perMessageOverhead = 4

// Text estimates the token count of a single string: Chinese characters cost
// roughly half a token each (rounded up in pairs), everything else costs
// roughly a quarter of a token per character (rounded up in groups of four).
func Text(s string) int {
	var chinese, other int
	for _, r := range s {
		if isChineseChar(r) {
			chinese++
		} else {
			other++
		}
	}
	return ceilDiv(chinese, 2) + ceilDiv(other, 4)
}

// Messages estimates the total token count across a set of normalized
// messages, adding a fixed per-message overhead. Multimodal attachments do
// not contribute; only the textual content field is counted.
func Messages(msgs []middle.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += Text(m.Content)
	}
	return total
}

func isChineseChar(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

func ceilDiv(n, d int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) / float64(d)))
}
