package extract

import (
	"regexp"
	"strings"

	"SigPull/internal/domain/models"
)

// Keyword sets are matched on word boundaries; emoji are counted as raw
// substrings since \b does not apply to them.
var (
	longWordRe  = regexp.MustCompile(`(?i)\b(?:long|longing|buy|buying|bull|bullish|accumulate|moon|pump|breakout)\b`)
	shortWordRe = regexp.MustCompile(`(?i)\b(?:short|shorting|sell|selling|bear|bearish|dump|breakdown)\b`)

	longEmoji  = []string{"🚀", "📈", "⬆️", "🟢", "💎"}
	shortEmoji = []string{"📉", "⬇️", "🔴", "🩸"}
)

// DetectDirection scores long vs short markers; the side with strictly more
// hits wins. A tie or zero hits means no direction and thus no signal.
func DetectDirection(text string) (models.Direction, bool) {
	long := len(longWordRe.FindAllString(text, -1))
	short := len(shortWordRe.FindAllString(text, -1))
	for _, e := range longEmoji {
		long += strings.Count(text, e)
	}
	for _, e := range shortEmoji {
		short += strings.Count(text, e)
	}

	switch {
	case long > short:
		return models.DirectionLong, true
	case short > long:
		return models.DirectionShort, true
	default:
		return "", false
	}
}
