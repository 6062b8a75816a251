package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		seeds   []ledger.PlayerSeed
		wantErr error
	}{
		{name: "two players", seeds: []ledger.PlayerSeed{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}},
		{name: "no players", seeds: nil, wantErr: ledger.ErrNoPlayers},
		{name: "duplicate id", seeds: []ledger.PlayerSeed{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}}, wantErr: ledger.ErrDuplicatePlayer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := ledger.New(ledger.Settings{}, tt.seeds)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, l.CurrentRound)
			assert.Equal(t, 0, l.PlayedRounds)
			for i, p := range l.Players {
				assert.Equal(t, i, p.Order)
				assert.Equal(t, 1, p.JoinedAtRound)
				assert.True(t, p.IsActive())
				assert.Empty(t, p.Scores())
			}
		})
	}

	_, err := ledger.New(ledger.Settings{}, []ledger.PlayerSeed{{ID: " ", Name: "blank"}})
	require.Error(t, err)
}

func TestApplyRound_TwoRounds(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 10, "B": 20})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 15, "B": -5})

	a, b := player(t, l, "A"), player(t, l, "B")
	assert.Equal(t, []float64{10, 15}, a.Scores())
	assert.Equal(t, 25.0, a.TotalScore)
	assert.Equal(t, []float64{20, -5}, b.Scores())
	assert.Equal(t, 15.0, b.TotalScore)
	assert.Equal(t, 3, l.CurrentRound)
	assert.Equal(t, 2, l.PlayedRounds)
}

func TestApplyRound_Errors(t *testing.T) {
	l := newLedger(t, false, "A", "B")

	tests := []struct {
		name    string
		round   int
		entries []ledger.Entry
		wantErr error
	}{
		{name: "future round", round: 2, wantErr: ledger.ErrInvalidRoundSequence},
		{name: "round zero", round: 0, wantErr: ledger.ErrInvalidRoundSequence},
		{name: "unknown player", round: 1, entries: []ledger.Entry{{PlayerID: "Z", Score: 1}}, wantErr: ledger.ErrPlayerNotFound},
		{
			name:    "duplicate entry",
			round:   1,
			entries: []ledger.Entry{{PlayerID: "A", Score: 1}, {PlayerID: "A", Score: 2}},
			wantErr: ledger.ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.ApplyRound(tt.round, tt.entries)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	finished, err := l.Finish()
	require.NoError(t, err)
	_, err = finished.ApplyRound(1, nil)
	require.ErrorIs(t, err, ledger.ErrGameFinished)
}

func TestApplyRound_MissingEntryScoresZero(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 7})

	assert.Equal(t, []float64{0}, player(t, l, "B").Scores())
	assert.Equal(t, 0.0, player(t, l, "B").TotalScore)
}

func TestApplyRound_SkipsInactivePlayers(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 2})

	l, err := l.SetActive("B", false, 2)
	require.NoError(t, err)
	l = apply(t, l, map[shared.PlayerID]float64{"A": 3, "B": 99})

	b := player(t, l, "B")
	assert.Equal(t, []float64{2}, b.Scores())
	assert.Equal(t, 2.0, b.TotalScore)
	assert.Equal(t, 3, l.CurrentRound, "the round clock is global")
}

func TestApplyRound_OverwritesAfterNavigatingBack(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 2, "B": 2})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 3, "B": 3})

	l, err := l.GoToRound(2)
	require.NoError(t, err)
	assert.Equal(t, 2, l.CurrentRound)

	l = apply(t, l, map[shared.PlayerID]float64{"A": 20})
	a, b := player(t, l, "A"), player(t, l, "B")
	assert.Equal(t, []float64{1, 20, 3}, a.Scores())
	assert.Equal(t, []float64{1, 2, 3}, b.Scores(), "missing entry keeps an existing slot")
	assert.Equal(t, 3, l.CurrentRound)
	assert.Equal(t, 3, l.PlayedRounds)

	_, err = l.GoToRound(5)
	require.ErrorIs(t, err, ledger.ErrInvalidRoundSequence)
	_, err = l.GoToRound(0)
	require.ErrorIs(t, err, ledger.ErrInvalidRoundSequence)
}

func TestApplyRound_DoesNotMutatePreviousSnapshot(t *testing.T) {
	before := newLedger(t, false, "A", "B")
	before = apply(t, before, map[shared.PlayerID]float64{"A": 1, "B": 2})

	after := apply(t, before, map[shared.PlayerID]float64{"A": 10, "B": 20})
	_, err := after.ReviseRound(1, []ledger.Entry{{PlayerID: "A", Score: 100}})
	require.NoError(t, err)

	assert.Equal(t, []float64{1}, player(t, before, "A").Scores())
	assert.Equal(t, 1.0, player(t, before, "A").TotalScore)
	assert.Equal(t, 2, before.CurrentRound)
	assert.Equal(t, []float64{1, 10}, player(t, after, "A").Scores())
}

func TestApplyRound_DualScoring(t *testing.T) {
	l := newLedger(t, true, "A")
	l, err := l.ApplyRound(1, []ledger.Entry{{PlayerID: "A", Score: 10, Prediction: ptr(3)}})
	require.NoError(t, err)

	a := player(t, l, "A")
	assert.Equal(t, []float64{10}, a.Scores())
	assert.Equal(t, []float64{3}, a.Predictions())
	assert.Equal(t, 10.0, a.TotalScore, "predictions never count towards the total")

	l, err = l.ReviseRound(1, []ledger.Entry{{PlayerID: "A", Score: 12}})
	require.NoError(t, err)
	a = player(t, l, "A")
	assert.Equal(t, []float64{3}, a.Predictions(), "a revise without prediction keeps the stored one")
	assert.Equal(t, 12.0, a.TotalScore)
}

func TestApplyRound_SingleScoringIgnoresPredictions(t *testing.T) {
	l := newLedger(t, false, "A")
	l, err := l.ApplyRound(1, []ledger.Entry{{PlayerID: "A", Score: 10, Prediction: ptr(3)}})
	require.NoError(t, err)
	assert.Nil(t, player(t, l, "A").Predictions())
}

func TestReviseRound(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 10, "B": 20})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 15, "B": -5})

	revised, err := l.ReviseRound(1, []ledger.Entry{{PlayerID: "B", Score: 5}})
	require.NoError(t, err)
	require.NoError(t, revised.Validate())

	b := player(t, revised, "B")
	assert.Equal(t, []float64{5, -5}, b.Scores())
	assert.Equal(t, 0.0, b.TotalScore)
	assert.Equal(t, 3, revised.CurrentRound, "revise does not move the round clock")
	assert.Equal(t, player(t, l, "A"), player(t, revised, "A"))

	_, err = l.ReviseRound(3, []ledger.Entry{{PlayerID: "A", Score: 1}})
	require.ErrorIs(t, err, ledger.ErrOutOfRangeRound)
}

func TestReviseRound_Idempotent(t *testing.T) {
	l := newLedger(t, true, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 2})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 3, "B": 4})

	entries := []ledger.Entry{
		{PlayerID: "A", Score: 9, Prediction: ptr(2)},
		{PlayerID: "B", Score: -1},
	}
	once, err := l.ReviseRound(1, entries)
	require.NoError(t, err)
	twice, err := once.ReviseRound(1, entries)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestReviseRound_OutOfRange(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1})

	l, err := l.SetActive("B", false, 3)
	require.NoError(t, err)
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1})

	_, err = l.ReviseRound(3, []ledger.Entry{{PlayerID: "B", Score: 4}})
	require.ErrorIs(t, err, ledger.ErrOutOfRangeRound)

	_, err = l.ReviseRound(2, []ledger.Entry{{PlayerID: "B", Score: 4}})
	require.NoError(t, err, "slots before the give up stay editable")

	for _, round := range []int{0, 4, 9} {
		_, err = l.ReviseRound(round, []ledger.Entry{{PlayerID: "A", Score: 4}})
		require.ErrorIs(t, err, ledger.ErrOutOfRangeRound, "round %d", round)
		assert.NotErrorIs(t, err, ledger.ErrInvalidRoundSequence, "round %d", round)
	}
}

func TestAddPlayer_MidGame(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 10, "B": 5})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 20, "B": 5})

	l, err := l.AddPlayer("C", "Carol")
	require.NoError(t, err)
	require.NoError(t, l.Validate())

	c := player(t, l, "C")
	assert.Equal(t, []float64{10, 10}, c.Scores())
	assert.Equal(t, 20.0, c.TotalScore)
	assert.Equal(t, 3, c.JoinedAtRound)
	assert.Equal(t, 2, c.Order)
	assert.True(t, c.IsActive())

	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1, "C": 4})
	assert.Equal(t, []float64{10, 10, 4}, player(t, l, "C").Scores())
	assert.Equal(t, 24.0, player(t, l, "C").TotalScore)
}

func TestAddPlayer_FractionalBackfill(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	for i := 0; i < 3; i++ {
		l = apply(t, l, map[shared.PlayerID]float64{"A": 3, "B": 2})
	}

	l, err := l.AddPlayer("C", "Carol")
	require.NoError(t, err)
	require.NoError(t, l.Validate())

	c := player(t, l, "C")
	require.Len(t, c.Scores(), 3)
	for _, v := range c.Scores() {
		assert.InDelta(t, 2.5, v, 1e-9)
	}
	assert.InDelta(t, 7.5, c.TotalScore, 1e-9)
}

func TestAddPlayer_AtRoundOne(t *testing.T) {
	l := newLedger(t, false, "A")
	l, err := l.AddPlayer("B", "Bob")
	require.NoError(t, err)

	b := player(t, l, "B")
	assert.Empty(t, b.Scores())
	assert.Equal(t, 0.0, b.TotalScore)
	assert.Equal(t, 1, b.JoinedAtRound)
	assert.Equal(t, 1, b.FirstJoinedAtRound())
}

func TestAddPlayer_NonZeroOpeningScore(t *testing.T) {
	l := &ledger.Ledger{
		CurrentRound: 1,
		Players: []ledger.Player{{
			ID:         "A",
			Name:       "Ann",
			Lifecycle:  ledger.Lifecycle{State: ledger.StateActive, JoinedAtRound: 1},
			Segments:   []ledger.Segment{{JoinedAtRound: 1, StartRound: 1, Scores: []float64{8}}},
			TotalScore: 8,
		}},
	}

	_, err := l.AddPlayer("B", "Bob")
	require.ErrorIs(t, err, ledger.ErrInvalidStartingScore)
}

func TestAddPlayer_AfterNavigatingBack(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	for i := 0; i < 3; i++ {
		l = apply(t, l, map[shared.PlayerID]float64{"A": 6, "B": 6})
	}
	l, err := l.GoToRound(2)
	require.NoError(t, err)

	l, err = l.AddPlayer("C", "Carol")
	require.NoError(t, err)
	require.NoError(t, l.Validate())
	c := player(t, l, "C")
	assert.Equal(t, 4, c.JoinedAtRound, "joiners enter at the next unplayed round")
	assert.Equal(t, []float64{6, 6, 6}, c.Scores())
	assert.Equal(t, 18.0, c.TotalScore)
	assert.Equal(t, 2, l.CurrentRound, "the cursor stays where it was")

	l = apply(t, l, map[shared.PlayerID]float64{"A": 1})
	assert.Equal(t, []float64{6, 6, 6}, player(t, l, "C").Scores(), "editing an old round skips the joiner")

	l, err = l.GoToRound(4)
	require.NoError(t, err)
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 2, "C": 3})
	assert.Equal(t, []float64{6, 6, 6, 3}, player(t, l, "C").Scores())
	assert.Equal(t, 5, l.CurrentRound)
	assert.Equal(t, 4, l.PlayedRounds)
}

func TestAddPlayer_Duplicate(t *testing.T) {
	l := newLedger(t, false, "A")
	_, err := l.AddPlayer("A", "Again")
	require.ErrorIs(t, err, ledger.ErrDuplicatePlayer)
}

func TestSetActive_GiveUpAndRejoin(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 5, "B": 3})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 5, "B": 4})

	l, err := l.SetActive("B", false, 2)
	require.NoError(t, err)
	b := player(t, l, "B")
	assert.False(t, b.IsActive())
	assert.Equal(t, 2, b.GaveUpAtRound)
	assert.Equal(t, []float64{3, 4}, b.Scores(), "giving up keeps scores")

	l = apply(t, l, map[shared.PlayerID]float64{"A": 5})

	_, err = l.SetActive("B", false, 4)
	require.ErrorIs(t, err, ledger.ErrInvalidTransition)

	l, err = l.SetActive("B", true, 4)
	require.NoError(t, err)
	require.NoError(t, l.Validate())
	b = player(t, l, "B")
	assert.True(t, b.IsActive())
	assert.Equal(t, 4, b.JoinedAtRound)
	assert.Equal(t, 2, b.GaveUpAtRound, "give up round is kept to mark the gap")
	assert.Equal(t, 7.0, b.TotalScore)
	assert.Len(t, b.Segments, 2)

	l = apply(t, l, map[shared.PlayerID]float64{"A": 5, "B": 10})
	b = player(t, l, "B")
	assert.Equal(t, []float64{3, 4, 10}, b.Scores())
	assert.Equal(t, 17.0, b.TotalScore)
	assert.False(t, b.HasSlot(3))
}

func TestSetActive_RejoinOnlyAtFrontier(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1})
	l, err := l.SetActive("B", false, 2)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		l = apply(t, l, map[shared.PlayerID]float64{"A": 1})
	}
	require.Equal(t, 4, l.PlayedRounds)

	for _, round := range []int{3, 4, 6} {
		_, err = l.SetActive("B", true, round)
		require.ErrorIs(t, err, ledger.ErrInvalidRoundSequence, "round %d", round)
	}

	rewound, err := l.GoToRound(3)
	require.NoError(t, err)
	rewound, err = rewound.SetActive("B", true, 5)
	require.NoError(t, err, "rejoining while the cursor is moved back still targets the frontier")
	rewound = apply(t, rewound, map[shared.PlayerID]float64{"A": 2})
	assert.Equal(t, []float64{1}, player(t, rewound, "B").Scores())

	l, err = l.SetActive("B", true, 5)
	require.NoError(t, err)
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 7})
	b := player(t, l, "B")
	assert.Equal(t, []float64{1, 7}, b.Scores())
	assert.True(t, b.HasSlot(5))
	assert.Equal(t, 6, l.CurrentRound)
}

func TestSetActive_Errors(t *testing.T) {
	l := newLedger(t, false, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1})
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 1})

	tests := []struct {
		name    string
		id      shared.PlayerID
		active  bool
		round   int
		wantErr error
	}{
		{name: "unknown player", id: "Z", active: false, round: 3, wantErr: ledger.ErrPlayerNotFound},
		{name: "future round", id: "B", active: false, round: 4, wantErr: ledger.ErrInvalidRoundSequence},
		{name: "give up before scored rounds", id: "B", active: false, round: 1, wantErr: ledger.ErrInvalidRoundSequence},
		{name: "rejoin while active", id: "B", active: true, round: 3, wantErr: ledger.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.SetActive(tt.id, tt.active, tt.round)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	gaveUp, err := l.SetActive("B", false, 3)
	require.NoError(t, err)
	_, err = gaveUp.SetActive("B", true, 3)
	require.ErrorIs(t, err, ledger.ErrInconsistentJoinState)
}

func TestPlayAgain(t *testing.T) {
	l := newLedger(t, true, "A", "B")
	l = apply(t, l, map[shared.PlayerID]float64{"A": 1, "B": 2})
	l, err := l.SetActive("B", false, 2)
	require.NoError(t, err)
	l, err = l.AddPlayer("C", "Carol")
	require.NoError(t, err)
	l, err = l.Finish()
	require.NoError(t, err)

	again := l.PlayAgain()
	require.NoError(t, again.Validate())
	assert.Equal(t, 1, again.CurrentRound)
	assert.Equal(t, 0, again.PlayedRounds)
	assert.False(t, again.IsFinished)
	assert.True(t, again.IsDualScoring)
	require.Len(t, again.Players, 3)
	for i, p := range again.Players {
		assert.Equal(t, l.Players[i].ID, p.ID)
		assert.Equal(t, l.Players[i].Name, p.Name)
		assert.Equal(t, l.Players[i].Order, p.Order)
		assert.True(t, p.IsActive())
		assert.Equal(t, 1, p.JoinedAtRound)
		assert.False(t, p.HasGivenUp())
		assert.Empty(t, p.Scores())
		assert.Equal(t, 0.0, p.TotalScore)
	}
	assert.True(t, l.IsFinished, "the finished snapshot is untouched")
}

func TestFinishTwice(t *testing.T) {
	l := newLedger(t, false, "A")
	l, err := l.Finish()
	require.NoError(t, err)
	_, err = l.Finish()
	require.ErrorIs(t, err, ledger.ErrGameFinished)
}

func TestWithHighScoreWins(t *testing.T) {
	l := newLedger(t, false, "A")
	low := l.WithHighScoreWins(false)
	assert.False(t, low.HighScoreWins)
	assert.True(t, l.HighScoreWins)
}

func TestTotalScoreMatchesScoresAfterEveryMutation(t *testing.T) {
	l := newLedger(t, true, "A", "B", "C")
	steps := []func(*ledger.Ledger) (*ledger.Ledger, error){
		func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ApplyRound(1, []ledger.Entry{{PlayerID: "A", Score: 3.5}, {PlayerID: "B", Score: -2}})
		},
		func(l *ledger.Ledger) (*ledger.Ledger, error) { return l.SetActive("C", false, 2) },
		func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ApplyRound(2, []ledger.Entry{{PlayerID: "A", Score: 1}, {PlayerID: "B", Score: 8}})
		},
		func(l *ledger.Ledger) (*ledger.Ledger, error) { return l.AddPlayer("D", "Dee") },
		func(l *ledger.Ledger) (*ledger.Ledger, error) { return l.SetActive("C", true, 3) },
		func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ApplyRound(3, []ledger.Entry{{PlayerID: "C", Score: 6}, {PlayerID: "D", Score: 2}})
		},
		func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ReviseRound(2, []ledger.Entry{{PlayerID: "B", Score: -3}, {PlayerID: "D", Score: 0.25}})
		},
		func(l *ledger.Ledger) (*ledger.Ledger, error) { return l.GoToRound(1) },
		func(l *ledger.Ledger) (*ledger.Ledger, error) {
			return l.ApplyRound(1, []ledger.Entry{{PlayerID: "C", Score: 11}})
		},
	}

	for i, step := range steps {
		next, err := step(l)
		require.NoError(t, err, "step %d", i)
		require.NoError(t, next.Validate(), "step %d", i)
		for _, p := range next.Players {
			var sum float64
			for _, v := range p.Scores() {
				sum += v
			}
			assert.InDelta(t, sum, p.TotalScore, 1e-9, "step %d player %s", i, p.ID)
		}
		l = next
	}
}
