package conversation

// DisplayItem is the shape a chat panel renders: who said it and what.
type DisplayItem struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Format projects a conversation onto display items.
func Format(conv Conversation) []DisplayItem {
	out := make([]DisplayItem, 0, len(conv))
	for _, m := range conv {
		out = append(out, DisplayItem{From: m.Role, Text: m.Text})
	}
	return out
}

// Parse is the inverse of Format.
func Parse(items []DisplayItem) Conversation {
	out := make(Conversation, 0, len(items))
	for _, it := range items {
		out = append(out, Message{Role: it.From, Text: it.Text})
	}
	return out
}
