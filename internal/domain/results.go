package domain

import "sort"

// ScoreRef names a player together with their final point total.
type ScoreRef struct {
	PlayerID string `json:"id"`
	Points   int    `json:"points"`
}

// SpeedRef names the fastest player and their average correct-answer latency.
type SpeedRef struct {
	PlayerID  string `json:"id"`
	AvgTimeMs int64  `json:"avgTimeMs"`
}

// CountRef names a player together with their correct-answer count.
type CountRef struct {
	PlayerID     string `json:"id"`
	CorrectCount int    `json:"correctCount"`
}

// FinalResults is the frozen outcome of a finished session.
type FinalResults struct {
	Winners        []ScoreRef `json:"winners"`
	Fastest        *SpeedRef  `json:"fastest"`
	MostProductive []CountRef `json:"mostProductive"`
	SnapshotAt     int64      `json:"snapshotAt"`
}

// ComputeFinalResults derives winners, fastest and most-productive from a
// player-score snapshot. It is pure: repeated calls on the same snapshot
// yield identical output, with ties ordered by player id.
func ComputeFinalResults(players map[string]PlayerScore, snapshotAt int64) FinalResults {
	results := FinalResults{SnapshotAt: snapshotAt}
	if len(players) == 0 {
		return results
	}

	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	maxPoints := 0
	maxCorrect := 0
	for _, id := range ids {
		score := players[id]
		if score.TotalPoints > maxPoints {
			maxPoints = score.TotalPoints
		}
		if score.CorrectCount > maxCorrect {
			maxCorrect = score.CorrectCount
		}
	}

	for _, id := range ids {
		score := players[id]
		if score.TotalPoints == maxPoints {
			results.Winners = append(results.Winners, ScoreRef{PlayerID: id, Points: score.TotalPoints})
		}
		if maxCorrect > 0 && score.CorrectCount == maxCorrect {
			results.MostProductive = append(results.MostProductive, CountRef{PlayerID: id, CorrectCount: score.CorrectCount})
		}
	}

	var fastest *SpeedRef
	for _, id := range ids {
		score := players[id]
		if score.CorrectCount == 0 {
			continue
		}
		avg := score.TotalTimeCorrectMs / int64(score.CorrectCount)
		if fastest == nil || avg < fastest.AvgTimeMs {
			fastest = &SpeedRef{PlayerID: id, AvgTimeMs: avg}
		}
	}
	results.Fastest = fastest

	return results
}
