package negotiation

import (
	"math"

	"github.com/iliyamo/haggle-room/internal/model"
)

// MaxRounds is the number of single-party utterances a room may hold.
// A turn that would produce round MaxRounds+1 fails the room instead.
const MaxRounds = 10

// RoleForRound returns who speaks in a 1-based round: sellers on odd
// rounds, buyers on even ones.
func RoleForRound(round int) model.Role {
	if round%2 == 1 {
		return model.RoleSeller
	}
	return model.RoleBuyer
}

// HasSpoken reports whether role already has a message in history.
func HasSpoken(history []model.Message, role model.Role) bool {
	for _, m := range history {
		if m.Sender == role {
			return true
		}
	}
	return false
}

// FallbackPrice is the offer used when a reply carries no usable price.
// It starts from the counterparty's last offer (or the list price before
// anyone has spoken) and keeps it inside the acting side's bound.
func FallbackPrice(role model.Role, room *model.Room, last *model.Message) float64 {
	anchor := room.ListPrice
	if last != nil && last.PriceOffer != nil {
		anchor = *last.PriceOffer
	}
	if role == model.RoleSeller {
		return math.Max(room.MinPrice, anchor)
	}
	ceiling := room.ListPrice
	if room.MaxPrice != nil {
		ceiling = *room.MaxPrice
	}
	return math.Min(ceiling, anchor)
}
