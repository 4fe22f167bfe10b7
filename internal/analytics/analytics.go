package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"assistant-relay/internal/storage"
)

// DailyStats aggregates the interaction log for one UTC day.
type DailyStats struct {
	Date            string                  `json:"date"`
	TotalMessages   int                     `json:"total_messages"`
	Completed       int                     `json:"completed"`
	Failed          int                     `json:"failed"`
	UniqueSessions  int                     `json:"unique_sessions"`
	ToolCallsTotal  int                     `json:"tool_calls_total"`
	ToolCallsByName map[string]int          `json:"tool_calls_by_name"`
	FailureReasons  map[string]int          `json:"failure_reasons,omitempty"`
	SessionStats    map[string]SessionStats `json:"session_stats"`
}

type SessionStats struct {
	SessionID string `json:"session_id"`
	Messages  int    `json:"messages"`
	Failed    int    `json:"failed"`
	ToolCalls int    `json:"tool_calls"`
}

// AnalyzeDailyLogs counts the events that fall on targetDate.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:            startOfDay.Format("2006-01-02"),
		ToolCallsByName: make(map[string]int),
		FailureReasons:  make(map[string]int),
		SessionStats:    make(map[string]SessionStats),
	}

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.UserMessage == "" {
			continue
		}
		stats.TotalMessages++

		ss, ok := stats.SessionStats[event.SessionID]
		if !ok {
			ss = SessionStats{SessionID: event.SessionID}
		}
		ss.Messages++

		if event.Status == "error" {
			stats.Failed++
			ss.Failed++
			stats.FailureReasons[failureReason(event.Error)]++
		} else {
			stats.Completed++
		}

		for _, name := range event.ToolCalls {
			stats.ToolCallsTotal++
			stats.ToolCallsByName[name]++
			ss.ToolCalls++
		}
		stats.SessionStats[event.SessionID] = ss
	}

	stats.UniqueSessions = len(stats.SessionStats)
	return stats
}

// failureReason reduces a wrapped error message to its leading sentinel,
// e.g. "run timed out after 2m0s: run x still pending" becomes "run timed out".
func failureReason(msg string) string {
	if msg == "" {
		return "unknown"
	}
	if i := strings.Index(msg, ":"); i > 0 {
		msg = msg[:i]
	}
	if i := strings.Index(msg, " after "); i > 0 {
		msg = msg[:i]
	}
	return msg
}

// GenerateReportSummary renders the stats as a short plain-text report.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assistant relay usage for %s:\n\n", ds.Date)
	fmt.Fprintf(&b, "Activity:\n- Messages: %d (%d completed, %d failed)\n- Sessions: %d\n- Tool calls: %d\n\n",
		ds.TotalMessages, ds.Completed, ds.Failed, ds.UniqueSessions, ds.ToolCallsTotal)

	if len(ds.ToolCallsByName) > 0 {
		b.WriteString("Tools:\n")
		for _, name := range sortedKeys(ds.ToolCallsByName) {
			fmt.Fprintf(&b, "- %s: %d\n", name, ds.ToolCallsByName[name])
		}
		b.WriteString("\n")
	}
	if len(ds.FailureReasons) > 0 {
		b.WriteString("Failures:\n")
		for _, reason := range sortedKeys(ds.FailureReasons) {
			fmt.Fprintf(&b, "- %s: %d\n", reason, ds.FailureReasons[reason])
		}
		b.WriteString("\n")
	}

	ids := make([]string, 0, len(ds.SessionStats))
	for id := range ds.SessionStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(&b, "Sessions (%d):\n", len(ids))
	for _, id := range ids {
		ss := ds.SessionStats[id]
		fmt.Fprintf(&b, "- %s: %d messages", id, ss.Messages)
		if ss.ToolCalls > 0 {
			fmt.Fprintf(&b, ", %d tool calls", ss.ToolCalls)
		}
		if ss.Failed > 0 {
			fmt.Fprintf(&b, ", %d failed", ss.Failed)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
