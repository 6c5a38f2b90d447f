package negotiation

import "github.com/iliyamo/haggle-room/internal/model"

// Outcome is the room status a turn leads to.  FinalPrice is set only
// when Status is COMPLETED.
type Outcome struct {
	Status     model.Status
	FinalPrice *float64
}

// Detect decides whether the offer just made closes the deal.  previous
// is the counterparty's offer from the prior round (nil on round 1).
//
// A buyer closes by bidding at or above the seller's last ask, which
// becomes the final price.  A seller closes by asking at or below the
// buyer's last bid, and the new ask is the final price.  Without a deal,
// reaching MaxRounds fails the room.
func Detect(sender model.Role, offer float64, previous *float64, round int) Outcome {
	if previous != nil {
		switch sender {
		case model.RoleBuyer:
			if offer >= *previous {
				ask := *previous
				return Outcome{Status: model.StatusCompleted, FinalPrice: &ask}
			}
		case model.RoleSeller:
			if *previous >= offer {
				ask := offer
				return Outcome{Status: model.StatusCompleted, FinalPrice: &ask}
			}
		}
	}
	if round >= MaxRounds {
		return Outcome{Status: model.StatusFailed}
	}
	return Outcome{Status: model.StatusActive}
}

// Event maps an outcome status onto the room state machine.
func (o Outcome) Event() model.Event {
	switch o.Status {
	case model.StatusCompleted:
		return model.EventDeal
	case model.StatusFailed:
		return model.EventRoundLimit
	}
	return model.EventContinue
}
