package game

// Pot is one layer of the showdown pool: a main pot or a side pot created
// by an all-in that capped some players below the final bet level.
type Pot struct {
	Amount          int      `json:"amount"`
	EligiblePlayers []string `json:"eligiblePlayers"`
}

// BuildPots lays out the main and side pots from the current totalBet of
// every player still dealt into the hand. It collects the distinct
// positive totalBet values as ascending bet levels L1 < L2 < ...; at each
// level the pot increment is (Li - Li-1) times the number of players who
// committed at least Li (folded players' chips still count toward the
// amount, since the chips already left their stack). A player is
// eligible to WIN a layer only if they reached that level and are neither
// folded nor sitting out.
func BuildPots(players []*PlayerState) []Pot {
	levels := distinctPositiveTotalBets(players)

	pots := make([]Pot, 0, len(levels))
	prev := 0
	for _, level := range levels {
		increment := level - prev
		reached := 0
		var eligible []string
		for _, p := range players {
			if p.TotalBet < level {
				continue
			}
			reached++
			if !p.IsFolded && !p.IsSittingOut {
				eligible = append(eligible, p.UserID)
			}
		}
		if increment > 0 && reached > 0 {
			pots = append(pots, Pot{
				Amount:          increment * reached,
				EligiblePlayers: eligible,
			})
		}
		prev = level
	}
	return pots
}

func distinctPositiveTotalBets(players []*PlayerState) []int {
	seen := make(map[int]bool)
	var levels []int
	for _, p := range players {
		if p.TotalBet > 0 && !seen[p.TotalBet] {
			seen[p.TotalBet] = true
			levels = append(levels, p.TotalBet)
		}
	}
	for i := 0; i < len(levels)-1; i++ {
		for j := i + 1; j < len(levels); j++ {
			if levels[j] < levels[i] {
				levels[i], levels[j] = levels[j], levels[i]
			}
		}
	}
	return levels
}

// totalPotAmount sums every layer, for the invariant that pot amounts
// exactly account for every chip committed this hand.
func totalPotAmount(pots []Pot) int {
	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	return total
}

// awardOddChips distributes a remainder of r chips (0 <= r < len(winners))
// one at a time to winners in clockwise order starting from the first
// winner seated at or after the small blind.
func awardOddChips(gs *GameState, winnerIDs []string, remainder int) map[string]int {
	extra := make(map[string]int, len(winnerIDs))
	if remainder <= 0 || len(winnerIDs) == 0 {
		return extra
	}

	byID := make(map[string]*PlayerState, len(gs.PlayerStates))
	for _, p := range gs.PlayerStates {
		byID[p.UserID] = p
	}

	ordered := make([]string, len(winnerIDs))
	copy(ordered, winnerIDs)
	for i := 0; i < len(ordered)-1; i++ {
		for j := i + 1; j < len(ordered); j++ {
			if byID[ordered[j]].SeatNumber < byID[ordered[i]].SeatNumber {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}

	start := 0
	for i, id := range ordered {
		if byID[id].SeatNumber >= gs.SmallBlindSeat {
			start = i
			break
		}
	}

	for i := 0; i < remainder; i++ {
		id := ordered[(start+i)%len(ordered)]
		extra[id]++
	}
	return extra
}
