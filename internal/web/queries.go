package web

import (
	"database/sql"
	"fmt"
)

// recentActivity returns the most recent run lifecycle events across
// all scans, newest first.
func (s *Server) recentActivity(limit int) ([]ActivityRow, error) {
	rows, err := s.db.Conn().Query(
		`SELECT run_id, event, detail, timestamp
		 FROM run_events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	defer rows.Close()

	var activity []ActivityRow
	for rows.Next() {
		var a ActivityRow
		var detail sql.NullString
		var ts string
		if err := rows.Scan(&a.RunID, &a.Event, &detail, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		a.Detail = detail.String
		a.TimeAgo = relTime(ts)
		activity = append(activity, a)
	}
	return activity, rows.Err()
}
