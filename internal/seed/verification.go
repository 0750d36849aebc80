package seed

import (
	"fmt"
	"math"

	"github.com/okian/wcs/internal/domain/leaderboard"
)

const scoreTolerance = 1e-6

// VerifyLeaderboard checks a ranking-ordered page: ranks count up from 1,
// ranking scores never increase, and each ranking score agrees with the
// entry's own average, streak and check marks.
func VerifyLeaderboard(entries []leaderboard.Entry) error {
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: position %d has rank %d", ErrVerification, i+1, e.Rank)
		}
		if i > 0 && e.RankingScore > entries[i-1].RankingScore+scoreTolerance {
			return fmt.Errorf("%w: %s (%.4f) ranked below %s (%.4f)",
				ErrVerification, e.EmployeeID, e.RankingScore, entries[i-1].EmployeeID, entries[i-1].RankingScore)
		}
		want := leaderboard.RankingScore(e.RollingAverageScore, e.CurrentStreak, e.CheckMarkCount)
		if math.Abs(want-e.RankingScore) > scoreTolerance {
			return fmt.Errorf("%w: %s ranking score %.4f, components give %.4f",
				ErrVerification, e.EmployeeID, e.RankingScore, want)
		}
	}
	return nil
}

// VerifyRanks checks that per-employee lookups agree with the leaderboard.
func VerifyRanks(board []leaderboard.Entry, lookups map[string]leaderboard.Entry) error {
	for _, e := range board {
		got, ok := lookups[e.EmployeeID]
		if !ok {
			continue
		}
		if got.Rank != e.Rank || math.Abs(got.RankingScore-e.RankingScore) > scoreTolerance {
			return fmt.Errorf("%w: %s is rank %d on the board but %d by lookup",
				ErrVerification, e.EmployeeID, e.Rank, got.Rank)
		}
	}
	return nil
}
