package http

import (
	"fmt"
	"strings"

	"expenselog/internal/services"
	"expenselog/internal/store"
)

// sanitizeInput drops control characters other than tab and newlines, and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}

// writeMessage describes a successful write for the status line.
func writeMessage(res services.Result) string {
	msg := fmt.Sprintf("Saved %d record%s", res.Saved, plural(res.Saved))
	if res.Dropped > 0 {
		msg += fmt.Sprintf(", ignored %d incomplete line%s", res.Dropped, plural(res.Dropped))
	}
	return msg
}

// tableMessage describes a whole-table save. Dropped rows were blanked out.
func tableMessage(res services.Result) string {
	msg := fmt.Sprintf("Table saved: %d row%s", res.Total, plural(res.Total))
	if res.Dropped > 0 {
		msg += fmt.Sprintf(", %d removed", res.Dropped)
	}
	return msg
}

// syncWarning is shown when the local write succeeded but the mirror did not.
func syncWarning(se *store.SyncError) string {
	if se == nil {
		return ""
	}
	return fmt.Sprintf("Saved locally, but the %s copy was not updated: %v", se.Remote, se.Err)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
