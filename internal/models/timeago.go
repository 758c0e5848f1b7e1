package models

import (
	"fmt"
	"time"
)

// TimeAgo renders the distance between t and now the way the roster shows it.
func TimeAgo(t, now time.Time) string {
	diff := int64(now.Sub(t) / time.Second)
	switch {
	case diff < 60:
		return "Just now"
	case diff < 3600:
		return fmt.Sprintf("%d minutes ago", diff/60)
	case diff < 86400:
		return fmt.Sprintf("%d hours ago", diff/3600)
	default:
		return fmt.Sprintf("%d days ago", diff/86400)
	}
}
