package classifier

import (
	"strings"
	"unicode/utf8"

	"inboxpilot/internal/model"
)

// Keyword sets checked in fixed precedence: task, question, approval,
// meeting. Anything unmatched is fyi. The order is part of the contract —
// "Can you schedule a meeting?" is a question, not a meeting.
var (
	taskKeywords     = []string{"action required", "please action", "due", "deadline", "asap", "please complete", "follow up"}
	questionKeywords = []string{"can you", "could you", "do you know", "?"}
	approvalKeywords = []string{"approve", "approval", "sign off", "authorize"}
	meetingKeywords  = []string{"meeting", "call", "schedule", "calendar", "invite"}

	urgencyKeywords = []string{"asap", "urgent", "immediately", "today", "eod"}
)

const maxHeuristicTasks = 3

// HeuristicClassify is the deterministic fallback. It is a total function:
// any input, including the empty string, yields a taxonomy category and a
// (possibly empty) task list.
func HeuristicClassify(subject, body string) Result {
	text := strings.ToLower(subject + "\n" + body)

	category := model.CategoryFYI
	switch {
	case containsAny(text, taskKeywords):
		category = model.CategoryTask
	case containsAny(text, questionKeywords):
		category = model.CategoryQuestion
	case containsAny(text, approvalKeywords):
		category = model.CategoryApproval
	case containsAny(text, meetingKeywords):
		category = model.CategoryMeeting
	}

	result := Result{Category: category, Tasks: []TaskCandidate{}}
	if category == model.CategoryTask {
		result.Tasks = extractHeuristicTasks(subject, body, containsAny(text, urgencyKeywords))
	}
	return result
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// extractHeuristicTasks scans lines for bullet / numbered / todo markers.
// When nothing is marked, the lines that tripped the task keywords are used,
// and failing that the subject, so a task-classified message always yields at
// least one candidate.
func extractHeuristicTasks(subject, body string, urgent bool) []TaskCandidate {
	priority := model.TaskPriorityMedium
	if urgent {
		priority = model.TaskPriorityHigh
	}

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	var flagged []string
	for _, line := range lines {
		if isTaskMarkedLine(line) {
			flagged = append(flagged, stripTaskMarker(line))
		}
	}
	if len(flagged) == 0 {
		for _, line := range lines {
			if containsAny(strings.ToLower(line), taskKeywords) {
				flagged = append(flagged, line)
			}
		}
	}
	if len(flagged) == 0 && strings.TrimSpace(subject) != "" {
		flagged = append(flagged, strings.TrimSpace(subject))
	}

	var tasks []TaskCandidate
	for _, title := range flagged {
		if len(tasks) == maxHeuristicTasks {
			break
		}
		tasks = append(tasks, TaskCandidate{
			Title:    truncate(title, 120),
			Priority: priority,
		})
	}
	return tasks
}

// stripTaskMarker removes only the leading list marker, never characters that
// belong to the task text ("- 2023 report" keeps its year).
func stripTaskMarker(line string) string {
	for _, prefix := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):])
		}
	}

	if rest := strings.TrimLeft(line, "0123456789"); rest != line {
		if strings.HasPrefix(rest, ". ") || strings.HasPrefix(rest, ") ") {
			return strings.TrimSpace(rest[2:])
		}
	}

	if lower := strings.ToLower(line); strings.HasPrefix(lower, "todo") {
		return strings.TrimSpace(strings.TrimLeft(line[len("todo"):], ": \t"))
	}

	return strings.TrimSpace(line)
}

func isTaskMarkedLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "• ") {
		return true
	}
	if strings.HasPrefix(lower, "todo") {
		return true
	}
	// 编号列表：1. / 1)
	if len(line) >= 2 && line[0] >= '0' && line[0] <= '9' {
		rest := strings.TrimLeft(line, "0123456789")
		if strings.HasPrefix(rest, ". ") || strings.HasPrefix(rest, ") ") {
			return true
		}
	}
	return false
}

// truncate cuts on a rune boundary so a multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
