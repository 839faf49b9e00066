package utils

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxValueLength caps how much of a single value the list view shows.
const MaxValueLength = 256

// TruncateString truncates a string to a maximum number of runes with an
// ellipsis.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	runes := []rune(s)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// FirstLine returns the first line of s, marking that more follows.
func FirstLine(s string) string {
	line, rest, found := strings.Cut(s, "\n")
	if found && strings.TrimSpace(rest) != "" {
		return line + " ..."
	}
	return line
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// FormatTimeAgo formats a past date relative to now at day granularity,
// which is all a "last met" date carries.
func FormatTimeAgo(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)

	switch {
	case days < 0:
		return "in the future"
	case days == 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		if weeks := days / 7; weeks > 1 {
			return fmt.Sprintf("%d weeks ago", weeks)
		}
		return "1 week ago"
	case days < 365:
		if months := days / 30; months > 1 {
			return fmt.Sprintf("%d months ago", months)
		}
		return "1 month ago"
	default:
		if years := days / 365; years > 1 {
			return fmt.Sprintf("%d years ago", years)
		}
		return "1 year ago"
	}
}
