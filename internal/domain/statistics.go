package domain

import "time"

// Statistics is the derived snapshot mirrored to statistics.json and pushed to the website.
type Statistics struct {
	TotalUsers  int       `json:"total_users"`
	ActiveUsers int       `json:"active_users"`
	TodayUsers  int       `json:"today_users"`
	LastUpdated Timestamp `json:"last_updated"`
}

// ComputeStatistics counts users, active users and users who joined on the local calendar day of now.
func ComputeStatistics(users []*User, now time.Time) *Statistics {
	stats := &Statistics{LastUpdated: NewTimestamp(now)}

	year, month, day := now.Date()
	for _, u := range users {
		if u == nil {
			continue
		}

		stats.TotalUsers++
		if u.Active() {
			stats.ActiveUsers++
		}

		if u.JoinedAt.IsZero() {
			continue
		}
		y, m, d := u.JoinedAt.In(now.Location()).Date()
		if y == year && m == month && d == day {
			stats.TodayUsers++
		}
	}

	return stats
}
