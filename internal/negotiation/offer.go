package negotiation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const emptyStatement = "..."

var (
	pricePattern = regexp.MustCompile(`(?i)PRICE:\s*(-?\d+(?:\.\d+)?)`)
	sayPattern   = regexp.MustCompile(`(?is)SAY:\s*(.+)`)
	sayMarker    = regexp.MustCompile(`(?i)SAY:\s*`)
)

// Reply is a proxy answer reduced to the two fields the negotiation needs.
type Reply struct {
	Price float64
	Say   string
	Raw   string
}

// ParseReply extracts the offer from text shaped like
//
//	PRICE: 120
//	SAY: one sentence
//
// It never fails.  A missing, non-finite or non-positive price becomes
// fallback; a missing statement becomes the raw text with the markers
// removed, or "..." when nothing is left.
func ParseReply(raw string, fallback float64) Reply {
	price := fallback
	if m := pricePattern.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && validPrice(v) {
			price = v
		}
	}

	say := ""
	if m := sayPattern.FindStringSubmatch(raw); m != nil {
		say = strings.TrimSpace(m[1])
	}
	if say == "" {
		stripped := pricePattern.ReplaceAllString(raw, "")
		say = strings.TrimSpace(sayMarker.ReplaceAllString(stripped, ""))
	}
	if say == "" {
		say = emptyStatement
	}

	return Reply{Price: price, Say: say, Raw: strings.TrimSpace(raw)}
}

func validPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
