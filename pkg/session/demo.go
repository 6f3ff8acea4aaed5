package session

import "github.com/dotsetgreg/dotfocus/pkg/focus"

const (
	DemoQuery    = "Make the Seattle plan kid-friendly and still gluten-free."
	DemoBudget   = 220
	DemoPreamble = "Stay concise. Use bullets."
)

// DemoConversation is a short travel-planning exchange whose topic drifts
// from Chicago to Seattle, so older turns lose relevance.
func DemoConversation() []focus.Message {
	return []focus.Message{
		{Role: "system", Content: "You are a helpful assistant that writes short, punchy answers."},
		{Role: "user", Content: "Plan a weekend trip to Chicago focused on architecture and deep-dish pizza."},
		{Role: "assistant", Content: "Itinerary: river architecture tour, Art Institute, Lou Malnati's."},
		{Role: "user", Content: "Keep total budget under $500 and use only public transit."},
		{Role: "assistant", Content: "Updated: CTA passes, hostels, discount boat tour, free days."},
		{Role: "user", Content: "Switch to Seattle coffee crawl and indie bookstores."},
		{Role: "assistant", Content: "Coffee: Victrola, Vita, Milstead. Books: Elliott Bay, Twice Sold Tales."},
		{Role: "user", Content: "My girlfriend is gluten-free, adjust food accordingly."},
	}
}
