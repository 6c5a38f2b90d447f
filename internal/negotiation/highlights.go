package negotiation

import (
	"fmt"
	"math"

	"github.com/iliyamo/haggle-room/internal/model"
)

const maxHighlights = 3

// CutPercent is how far below the list price the final price landed, in
// percent, never negative.
func CutPercent(listPrice, finalPrice float64) float64 {
	if listPrice <= 0 {
		return 0
	}
	return math.Max(0, (listPrice-finalPrice)/listPrice*100)
}

// Highlights summarises a negotiation in at most three sentences: the
// opening anchor, the largest single concession by either side, and how
// it ended.  The result is deterministic for a given history; on equal
// concessions the earliest round wins.
func Highlights(history []model.Message, listPrice float64, finalPrice *float64, status model.Status) []string {
	if len(history) == 0 {
		return []string{}
	}
	out := make([]string, 0, maxHighlights)

	opener := history[0]
	if hasOffer(opener) {
		out = append(out, fmt.Sprintf("Round %d opening anchor: the %s opened at %.0f.",
			opener.Round, opener.Sender.Label(), *opener.PriceOffer))
	}

	var (
		found   bool
		bigRole model.Role
		bigRnd  int
		bigDiff float64
	)
	previous := map[model.Role]float64{}
	for _, m := range history {
		if !hasOffer(m) {
			continue
		}
		prev, seen := previous[m.Sender]
		previous[m.Sender] = *m.PriceOffer
		if !seen {
			continue
		}
		diff := math.Abs(*m.PriceOffer - prev)
		if !found || diff > bigDiff {
			found, bigRole, bigRnd, bigDiff = true, m.Sender, m.Round, diff
		}
	}
	if found && bigDiff > 0 {
		out = append(out, fmt.Sprintf("Round %d key concession: the %s moved by %.0f.",
			bigRnd, bigRole.Label(), bigDiff))
	}

	switch status {
	case model.StatusCompleted:
		if finalPrice != nil && *finalPrice != 0 {
			out = append(out, fmt.Sprintf("Closed at %.0f, %.1f%% below the list price.",
				*finalPrice, CutPercent(listPrice, *finalPrice)))
		}
	case model.StatusFailed:
		last := history[len(history)-1]
		if hasOffer(last) {
			out = append(out, fmt.Sprintf("No overlap after round %d; the last offer on record was %.0f. No deal.",
				last.Round, *last.PriceOffer))
		}
	}

	if len(out) > maxHighlights {
		out = out[:maxHighlights]
	}
	return out
}

func hasOffer(m model.Message) bool {
	return (m.Sender == model.RoleSeller || m.Sender == model.RoleBuyer) &&
		m.PriceOffer != nil && *m.PriceOffer != 0
}
