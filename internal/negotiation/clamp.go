package negotiation

import (
	"math"

	"github.com/iliyamo/haggle-room/internal/model"
)

// Clamp keeps an offer legal for the side making it.  A seller never asks
// below floor; a buyer never bids above ceiling when one is set (nil or
// non-positive means no ceiling).  An unusable candidate is replaced by
// fallback before the bound is applied.
func Clamp(role model.Role, candidate, floor float64, ceiling *float64, fallback float64) float64 {
	base := candidate
	if !validPrice(base) {
		base = fallback
	}
	if role == model.RoleSeller {
		return math.Max(base, floor)
	}
	if ceiling != nil && *ceiling > 0 {
		return math.Min(base, *ceiling)
	}
	return base
}
