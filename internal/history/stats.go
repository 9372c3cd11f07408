package history

import (
	"time"

	"choreboard/internal/notify"
)

// Stats aggregates recorded activity for a reporting window.
type Stats struct {
	Since        string              `json:"since"`
	KindCounts   map[notify.Kind]int `json:"kind_counts"`
	Approvals    int                 `json:"approvals"`
	Disapprovals int                 `json:"disapprovals"`
	Claims       int                 `json:"claims"`
	Overdue      int                 `json:"overdue"`
	ByKid        map[string]int      `json:"approvals_by_kid"`
}

// CalculateStats folds entries into per-kind and per-kid counts.
func CalculateStats(entries []Entry, since time.Time) Stats {
	stats := Stats{
		Since:      since.Format("2006-01-02"),
		KindCounts: make(map[notify.Kind]int),
		ByKid:      make(map[string]int),
	}

	for _, e := range entries {
		stats.KindCounts[e.Kind]++

		switch e.Kind {
		case notify.KindApproved:
			stats.Approvals++
			if e.KidID != "" {
				stats.ByKid[e.KidID]++
			}
		case notify.KindDisapproved:
			stats.Disapprovals++
		case notify.KindClaimed:
			stats.Claims++
		case notify.KindOverdue:
			stats.Overdue++
		}
	}
	return stats
}
