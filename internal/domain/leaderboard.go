package domain

import (
	"context"
	"sort"
)

// Participant identifies someone taking part in an activity
type Participant struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// LeaderboardEntry is one row of a ranked leaderboard. Rank is derived from
// the sorted list and never stored.
type LeaderboardEntry struct {
	Rank        int         `json:"rank"`
	Participant Participant `json:"participant"`
	TotalScore  float64     `json:"total_score"`
}

// RankLeaderboard returns a copy of entries sorted by score descending.
// Entries with equal scores keep their order and share a rank: each rank is
// one more than the number of entries with a strictly greater score.
func RankLeaderboard(entries []LeaderboardEntry) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})
	for i := range ranked {
		if i > 0 && ranked[i].TotalScore == ranked[i-1].TotalScore {
			ranked[i].Rank = ranked[i-1].Rank
			continue
		}
		ranked[i].Rank = i + 1
	}
	return ranked
}

// LeaderboardRepository defines access to backend leaderboards
type LeaderboardRepository interface {
	Fetch(ctx context.Context, ref ActivityRef) ([]LeaderboardEntry, error)
	Recompute(ctx context.Context, ref ActivityRef) ([]LeaderboardEntry, error)
}
