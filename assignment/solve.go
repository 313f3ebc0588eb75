// Package assignment solves the rectangular candidate x track assignment
// problem that the SORT and Visual SORT engines pose every epoch: find a
// one-to-one matching maximizing total score, where an unmatched candidate
// is represented as matching its own "new track" slot rather than any real
// track.
package assignment

import (
	"sort"

	"github.com/arthurkushman/go-hungarian"
)

// Pair identifies one candidate-to-track edge in the score matrix.
type Pair struct {
	Candidate int
	Track     int
}

// Match is a resolved assignment: either to an existing track (Track >= 0)
// or to a freshly created one (Track == -1, i.e. the candidate's own
// self-score slot won).
type Match struct {
	Candidate int
	Track     int
}

// Solve runs maximum-weight bipartite matching over scores (gated pairs
// simply absent from the map, implying weight 0) using
// github.com/arthurkushman/go-hungarian's square-matrix solver.
//
// The matrix is built the way the original voting scheme represents "no
// match": a square matrix of size nCandidates+nTracks, candidates occupying
// the first nCandidates rows and the last nTracks columns holding real
// track scores, with each candidate's own diagonal cell seeded to
// selfScore. A candidate matched to its own diagonal cell, to any other
// candidate's empty self column, or to a track column whose pair is absent
// from scores produces no real track match — it becomes a new track. Extra
// rows beyond nCandidates are zero-padding required to square the matrix
// and are never examined.
func Solve(scores map[Pair]float32, nCandidates, nTracks int, selfScore float32) []Match {
	if nCandidates == 0 {
		return nil
	}
	if nTracks == 0 {
		matches := make([]Match, nCandidates)
		for i := 0; i < nCandidates; i++ {
			matches[i] = Match{Candidate: i, Track: -1}
		}
		return matches
	}

	size := nCandidates + nTracks
	matrix := make([][]float64, size)
	for i := range matrix {
		matrix[i] = make([]float64, size)
	}
	for i := 0; i < nCandidates; i++ {
		matrix[i][i] = float64(selfScore)
	}
	for pair, score := range scores {
		if pair.Candidate < 0 || pair.Candidate >= nCandidates || pair.Track < 0 || pair.Track >= nTracks {
			continue
		}
		matrix[pair.Candidate][nCandidates+pair.Track] = float64(score)
	}

	assignments := hungarian.SolveMax(matrix)

	matches := make([]Match, 0, nCandidates)
	seen := make(map[int]bool, nCandidates)
	for row, cols := range assignments {
		if row < 0 || row >= nCandidates {
			continue
		}
		col := firstKey(cols)
		track := -1
		if col >= nCandidates {
			// a zero-weight cell of a gated-out pair can tie with the
			// self-score slot; only pairs present in scores become matches.
			if _, ok := scores[Pair{Candidate: row, Track: col - nCandidates}]; ok {
				track = col - nCandidates
			}
		}
		matches = append(matches, Match{Candidate: row, Track: track})
		seen[row] = true
	}
	// go-hungarian may omit rows whose best assignment is implicit zero;
	// every candidate must still resolve to a decision (match or new track).
	for i := 0; i < nCandidates; i++ {
		if !seen[i] {
			matches = append(matches, Match{Candidate: i, Track: -1})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Candidate != matches[j].Candidate {
			return matches[i].Candidate < matches[j].Candidate
		}
		return matches[i].Track < matches[j].Track
	})
	return matches
}

func firstKey(m map[int]float64) int {
	for k := range m {
		return k
	}
	return -1
}
