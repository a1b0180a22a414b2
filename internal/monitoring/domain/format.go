package monitoring

import "fmt"

// FormatDowntime renders a downtime length as "Dd HH:MM" (days omitted when
// zero), the form used in notifications and log details.
func FormatDowntime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := seconds / 60
	days := minutes / 1440
	hours := (minutes % 1440) / 60
	mins := minutes % 60
	if days > 0 {
		return fmt.Sprintf("%dd %02d:%02d", days, hours, mins)
	}
	return fmt.Sprintf("%02d:%02d", hours, mins)
}
