package negotiation

import (
	"fmt"
	"strconv"
	"strings"
)

// SellerBrief is everything the seller proxy is allowed to know.
type SellerBrief struct {
	SellerName  string
	ItemName    string
	Description string
	ListPrice   float64
	MinPrice    float64
}

// BuyerBrief is everything the buyer proxy is allowed to know.  The
// seller's floor must never appear here.
type BuyerBrief struct {
	BuyerName   string
	ItemName    string
	Description string
	MaxPrice    float64
}

// TurnContext describes the counterparty's last move.
type TurnContext struct {
	FirstTurn     bool
	Round         int
	LastPrice     float64
	LastStatement string
}

var outputFormat = []string{
	"Output MUST be exactly two lines:",
	"PRICE: <number>",
	"SAY: <one concise sentence>",
}

func itemDetail(desc string) string {
	if strings.TrimSpace(desc) == "" {
		return "Item detail: Not provided."
	}
	return "Item detail: " + desc
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SellerSystemPrompt builds the one-time instructions for the seller proxy.
func SellerSystemPrompt(b SellerBrief) string {
	lines := []string{
		fmt.Sprintf("You are %s's AI proxy, acting as the SELLER for item %q.", b.SellerName, b.ItemName),
		itemDetail(b.Description),
		fmt.Sprintf("Listed price: %s. Hidden floor price: %s. Never reveal the floor price.", formatPrice(b.ListPrice), formatPrice(b.MinPrice)),
		"Goal: close the deal at the highest possible price while staying realistic.",
		fmt.Sprintf("Negotiate in short replies and adapt by round. You have at most %d rounds total in this room.", MaxRounds),
	}
	return strings.Join(append(lines, outputFormat...), "\n")
}

// BuyerSystemPrompt builds the one-time instructions for the buyer proxy.
func BuyerSystemPrompt(b BuyerBrief) string {
	lines := []string{
		fmt.Sprintf("You are %s's AI proxy, acting as the BUYER for item %q.", b.BuyerName, b.ItemName),
		itemDetail(b.Description),
		fmt.Sprintf("Hidden max budget: %s. Never reveal the max budget.", formatPrice(b.MaxPrice)),
		"Goal: close the deal at the lowest possible price without exceeding your budget.",
		"Use progressive concessions: probe first, then controlled concessions, then final offer if needed.",
		fmt.Sprintf("You have at most %d rounds total in this room.", MaxRounds),
	}
	return strings.Join(append(lines, outputFormat...), "\n")
}

// TurnPrompt builds the per-turn user message.
func TurnPrompt(tc TurnContext) string {
	if tc.FirstTurn {
		return "Start negotiation now. Provide your opening offer."
	}
	return strings.Join([]string{
		fmt.Sprintf("Round: %d.", tc.Round),
		fmt.Sprintf("Counterparty previous offer: %s.", formatPrice(tc.LastPrice)),
		"Counterparty previous statement: " + tc.LastStatement,
		"Respond now with your next offer.",
	}, "\n")
}
