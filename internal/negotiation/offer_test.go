package negotiation

import (
	"strings"
	"testing"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		fallback  float64
		wantPrice float64
		wantSay   string
	}{
		{"two line format", "PRICE: 120\nSAY: deal", 90, 120, "deal"},
		{"no markers", "no markers here", 90, 90, "no markers here"},
		{"lower case markers", "price: 75.5\nsay: fair enough", 90, 75.5, "fair enough"},
		{"negative price falls back", "PRICE: -5\nSAY: take it", 90, 90, "take it"},
		{"zero price falls back", "PRICE: 0\nSAY: free?", 90, 90, "free?"},
		{"price only", "PRICE: 300", 90, 300, "..."},
		{"empty reply", "", 42, 42, "..."},
		{"empty say marker", "PRICE: 10\nSAY:   ", 90, 10, "..."},
		{"multi line statement", "PRICE: 50\nSAY: first line\nsecond line", 90, 50, "first line\nsecond line"},
		{"surrounding chatter", "Sure thing. PRICE: 88 and that is final", 90, 88, "Sure thing.  and that is final"},
		{"overflowing price falls back", "PRICE: 1" + strings.Repeat("9", 400) + "\nSAY: huge", 90, 90, "huge"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseReply(tt.raw, tt.fallback)
			if got.Price != tt.wantPrice {
				t.Errorf("price = %v, want %v", got.Price, tt.wantPrice)
			}
			if got.Say != tt.wantSay {
				t.Errorf("say = %q, want %q", got.Say, tt.wantSay)
			}
		})
	}
}
