// Package types holds the data shapes shared between the session core, the
// transport adapter and the views.
package types

// Message is a single transcript entry. Role identifies the speaker
// ("user", "research_agent", "product_bot", ...) and Content is markdown.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// CloneMessages returns an independent copy of msgs. A nil input yields an
// empty, non-nil slice so snapshots always compare equal to [].
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
