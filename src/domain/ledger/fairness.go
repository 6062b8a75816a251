package ledger

// ComputeStartingScore returns the catch-up total for a player joining at
// currentRound: the mean LiveScore of the currently active players, so the
// joiner lands at the field average. A rejoined player counts only the scores
// earned since rejoining.
//
// The per-round pace (total / rounds) scaled back by the round count
// collapses to the mean total; callers must not divide the result again.
func ComputeStartingScore(players []Player, currentRound int) float64 {
	if len(players) == 0 || currentRound == 0 {
		return 0
	}
	var total float64
	active := 0
	for _, p := range players {
		if !p.IsActive() {
			continue
		}
		total += p.LiveScore()
		active++
	}
	if active == 0 {
		return 0
	}
	return total / float64(active)
}

// backfill spreads score evenly over slots historical rounds.
func backfill(score float64, slots int) []float64 {
	out := make([]float64, slots)
	for i := range out {
		out[i] = score / float64(slots)
	}
	return out
}
