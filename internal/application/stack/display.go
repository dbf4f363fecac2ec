package stack

import (
	"fmt"

	"github.com/bryanwahyu/sketch2sys/internal/domain/sketch"
)

// Card is one recommended technology as shown on the page
type Card struct {
	Technology string `json:"technology"`
	Component  string `json:"component"`
	Reasoning  string `json:"reasoning"`
}

func (c Card) String() string {
	return fmt.Sprintf("%s / %s / %s", c.Component, c.Technology, c.Reasoning)
}

// Cards maps the recommendation list to display cards in received order.
// Nothing to show yields nil.
func Cards(items []sketch.TechStackItem) []Card {
	if len(items) == 0 {
		return nil
	}
	out := make([]Card, 0, len(items))
	for _, it := range items {
		out = append(out, Card{Technology: it.Technology, Component: it.Component, Reasoning: it.Reasoning})
	}
	return out
}
