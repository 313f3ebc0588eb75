package assignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveNoTracksAllNew(t *testing.T) {
	matches := Solve(nil, 3, 0, 0.3)
	require.Len(t, matches, 3)
	for i, m := range matches {
		assert.Equal(t, i, m.Candidate)
		assert.Equal(t, -1, m.Track)
	}
}

func TestSolveNoCandidates(t *testing.T) {
	matches := Solve(nil, 0, 3, 0.3)
	assert.Empty(t, matches)
}

func TestSolveStrongMatchWinsOverSelfScore(t *testing.T) {
	scores := map[Pair]float32{
		{Candidate: 0, Track: 0}: 0.9,
	}
	matches := Solve(scores, 1, 1, 0.3)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Track)
}

func TestSolveWeakMatchLosesToSelfScore(t *testing.T) {
	scores := map[Pair]float32{
		{Candidate: 0, Track: 0}: 0.1,
	}
	matches := Solve(scores, 1, 1, 0.3)
	require.Len(t, matches, 1)
	assert.Equal(t, -1, matches[0].Track)
}

func TestSolveDisjointPairsAllMatch(t *testing.T) {
	scores := map[Pair]float32{
		{Candidate: 0, Track: 0}: 0.9,
		{Candidate: 1, Track: 1}: 0.8,
	}
	matches := Solve(scores, 2, 2, 0.3)
	require.Len(t, matches, 2)
	assert.Equal(t, 0, matches[0].Track)
	assert.Equal(t, 1, matches[1].Track)
}

func TestSolveCompetingCandidatesPicksBetterTotal(t *testing.T) {
	// Both candidates want track 0; candidate 1 has a better score there,
	// so candidate 0 must fall back to its own self-score slot.
	scores := map[Pair]float32{
		{Candidate: 0, Track: 0}: 0.5,
		{Candidate: 1, Track: 0}: 0.9,
	}
	matches := Solve(scores, 2, 1, 0.3)
	require.Len(t, matches, 2)

	byCandidate := map[int]int{}
	for _, m := range matches {
		byCandidate[m.Candidate] = m.Track
	}
	assert.Equal(t, 0, byCandidate[1])
	assert.Equal(t, -1, byCandidate[0])
}
