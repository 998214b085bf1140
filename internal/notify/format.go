package notify

import (
	"fmt"
	"strings"
	"time"

	"taskline/internal/domain"
)

const previewLimit = 5

// FormatDaily renders the morning digest for one day, truncated to limit
// characters.
func FormatDaily(tasks []domain.Task, date string, limit int) string {
	if len(tasks) == 0 {
		return fmt.Sprintf("No tasks scheduled for %s. Enjoy the break!", date)
	}
	header := date
	if d, err := time.Parse(domain.DateLayout, date); err == nil {
		header = d.Format("Mon Jan 02")
	}
	lines := []string{"GM! " + header}

	var pending []domain.Task
	completed := 0
	for _, t := range tasks {
		switch t.Status {
		case domain.TaskPending:
			pending = append(pending, t)
		case domain.TaskCompleted:
			completed++
		}
	}
	if completed > 0 {
		lines = append(lines, fmt.Sprintf("(%d already done today)", completed))
	}
	if len(pending) == 0 {
		lines = append(lines, "All tasks done for today!")
	}
	for _, t := range pending {
		lines = append(lines, taskLine(t))
	}
	lines = append(lines, "\nReply with updates or questions!")
	return truncate(strings.Join(lines, "\n"), limit)
}

func taskLine(t domain.Task) string {
	var b strings.Builder
	if t.Priority == 1 {
		b.WriteString("!")
	}
	fmt.Fprintf(&b, "%d. %s", t.TaskNumber, t.Title)
	if t.ExecutionType == domain.ExecAgentAssisted {
		b.WriteString(" [AI]")
	}
	if t.EstimatedMinutes > 0 {
		fmt.Fprintf(&b, " ~%dm", t.EstimatedMinutes)
	}
	return b.String()
}

// FormatWeeklyReview renders plan totals plus a preview of next week.
func FormatWeeklyReview(stats domain.PlanStats, upcoming []domain.Task) string {
	lines := []string{
		"Weekly Review",
		fmt.Sprintf("Done: %d | Skipped: %d | Pending: %d",
			stats.ByStatus[domain.TaskCompleted], stats.ByStatus[domain.TaskSkipped], stats.ByStatus[domain.TaskPending]),
	}
	if len(upcoming) > 0 {
		lines = append(lines, fmt.Sprintf("\nNext week preview (%d tasks):", len(upcoming)))
		for i, t := range upcoming {
			if i == previewLimit {
				break
			}
			lines = append(lines, "- "+t.Title)
		}
		if len(upcoming) > previewLimit {
			lines = append(lines, fmt.Sprintf("  ...and %d more", len(upcoming)-previewLimit))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, limit int) string {
	if limit <= 3 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

// NextWeek returns the Monday after today and the Sunday that follows it.
// On a Monday the window starts a week later.
func NextWeek(today time.Time) (string, string) {
	daysFromMonday := (int(today.Weekday()) + 6) % 7
	monday := today.AddDate(0, 0, 7-daysFromMonday)
	return monday.Format(domain.DateLayout), monday.AddDate(0, 0, 6).Format(domain.DateLayout)
}
