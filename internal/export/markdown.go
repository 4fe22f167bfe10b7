package export

import (
	"fmt"
	"strings"
	"time"

	"assistant-relay/internal/conversation"
)

// Markdown renders a conversation as a markdown document, one section per
// message in order.
func Markdown(title string, conv conversation.Conversation, at time.Time) string {
	var b strings.Builder
	if title == "" {
		title = "Conversation"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "_Exported %s_\n\n", at.UTC().Format("2006-01-02 15:04 MST"))
	for _, m := range conv {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", speaker(m.Role), strings.TrimSpace(m.Text))
	}
	return b.String()
}

func speaker(role string) string {
	switch role {
	case conversation.RoleUser:
		return "User"
	case conversation.RoleAssistant:
		return "Assistant"
	default:
		if role == "" {
			return "Unknown"
		}
		return strings.ToUpper(role[:1]) + role[1:]
	}
}
