// Package notify owns the two notification kinds the monitors emit: match
// notifications (de-duplicated per user/match and persisted per
// user+tournament document) and admin alerts (de-duplicated by exact
// content within a retention window and POSTed to an external endpoint).
package notify

import "time"

// Side marks which side of a bout a tracked competitor matched.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
	SideBoth  Side = "both"
)

// MatchNotification is one upcoming-match alert for one user.
type MatchNotification struct {
	UserID       string    `json:"user_id"`
	TournamentID string    `json:"tournament_id"`
	CompetitorID string    `json:"competitor_id"`
	Tatami       int       `json:"tatami"` // 1-based
	MatchOrder   int       `json:"match_order"`
	Category     string    `json:"category"`
	LName        string    `json:"l_name"`
	LClub        string    `json:"l_club"`
	RName        string    `json:"r_name"`
	RClub        string    `json:"r_club"`
	Side         Side      `json:"side"`
	LiveID       string    `json:"live_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Similar reports whether two notifications relate to the same user and
// match. Match order is deliberately excluded so a bout sliding earlier or
// later on the same tatami does not re-alert.
func (n *MatchNotification) Similar(o *MatchNotification) bool {
	return n.UserID == o.UserID &&
		n.TournamentID == o.TournamentID &&
		n.CompetitorID == o.CompetitorID &&
		n.Tatami == o.Tatami &&
		n.Category == o.Category &&
		n.LName == o.LName &&
		n.LClub == o.LClub &&
		n.RName == o.RName &&
		n.RClub == o.RClub &&
		n.Side == o.Side
}
