// Package store implements the sharded, concurrent track store: each shard
// owns a disjoint partition of the live-track set behind its own lock,
// cross-shard operations acquire locks in shard-index order, and baseline
// distance computation against a batch of candidates fans out across
// shards via golang.org/x/sync/errgroup.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/LdDl/trackcore/track"
	"golang.org/x/sync/errgroup"
)

// Gate is a compatibility predicate consulted before any distance is
// computed between a candidate and a track. A false result forces an
// unconditional exclusion of the pair from the cost matrix.
type Gate func(sceneID uint64, candidateIdx int, t *track.Track) bool

// SpatioTemporal caps the center-to-center distance allowed between a
// candidate and a track's predicted box as a function of the track's idle
// age (epochs since last update); it is a step function, piecewise-constant
// by age, evaluated in absolute distance units.
type SpatioTemporal struct {
	steps []step
}

type step struct {
	ageEpochs   uint64
	maxDistance float32
}

// NewSpatioTemporal builds a constraint table from (age_epochs,
// max_distance) pairs; the effective bound for a given age is the entry
// with the smallest age >= the queried age, or unbounded if age exceeds
// every configured step.
func NewSpatioTemporal(constraints [][2]float64) *SpatioTemporal {
	st := &SpatioTemporal{steps: make([]step, 0, len(constraints))}
	for _, c := range constraints {
		st.steps = append(st.steps, step{ageEpochs: uint64(c[0]), maxDistance: float32(c[1])})
	}
	sort.Slice(st.steps, func(i, j int) bool { return st.steps[i].ageEpochs < st.steps[j].ageEpochs })
	return st
}

// Allows reports whether a center-to-center distance is permitted for a
// track of the given idle age. A nil receiver always allows (no constraint
// configured).
func (st *SpatioTemporal) Allows(ageEpochs uint64, distance float32) bool {
	if st == nil {
		return true
	}
	for _, s := range st.steps {
		if s.ageEpochs >= ageEpochs {
			return distance <= s.maxDistance
		}
	}
	return true
}

// shard owns a disjoint partition of the live-track set, identified by
// ShardIndex(track.ID), behind its own lock.
type shard struct {
	mu     sync.RWMutex
	tracks map[uint64]*track.Track
}

func newShard() *shard {
	return &shard{tracks: make(map[uint64]*track.Track)}
}

// Store owns every live track of every scene, partitioned into N shards.
type Store struct {
	shards []*shard
	wasted struct {
		mu     sync.Mutex
		tracks []*track.Track
	}
}

// New builds a store with the given shard count (>= 1).
func New(shards int) *Store {
	if shards < 1 {
		panic("store: shards must be at least 1")
	}
	s := &Store{shards: make([]*shard, shards)}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	return s
}

// ShardCount returns the number of configured shards.
func (s *Store) ShardCount() int {
	return len(s.shards)
}

// Add inserts a freshly created track into its hashed-to shard.
func (s *Store) Add(t *track.Track) {
	idx := track.ShardIndex(t.ID, len(s.shards))
	sh := s.shards[idx]
	sh.mu.Lock()
	sh.tracks[t.ID] = t
	sh.mu.Unlock()
}

// Remove deletes a track from its owning shard.
func (s *Store) Remove(id uint64) {
	idx := track.ShardIndex(id, len(s.shards))
	sh := s.shards[idx]
	sh.mu.Lock()
	delete(sh.tracks, id)
	sh.mu.Unlock()
}

// Get returns a track by id, or nil if absent.
func (s *Store) Get(id uint64) *track.Track {
	idx := track.ShardIndex(id, len(s.shards))
	sh := s.shards[idx]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return sh.tracks[id]
}

// Mutate locks the owning shard and calls fn with the track if present,
// returning whether it was found. Use this for any in-place track mutation
// (Kalman update/predict, history push) so the shard lock is held for the
// duration, per the store's "never touch Kalman state without the shard
// lock" policy.
func (s *Store) Mutate(id uint64, fn func(*track.Track)) bool {
	idx := track.ShardIndex(id, len(s.shards))
	sh := s.shards[idx]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	t, ok := sh.tracks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

// ShardStats returns the live track count of every shard, in shard-index order.
func (s *Store) ShardStats() []int {
	out := make([]int, len(s.shards))
	for i, sh := range s.shards {
		sh.mu.RLock()
		out[i] = len(sh.tracks)
		sh.mu.RUnlock()
	}
	return out
}

// ForEachScene calls fn with every live track belonging to sceneID, holding
// that track's shard under a read lock for the duration of the call. Locks
// are acquired and released shard-by-shard in ascending shard-index order.
func (s *Store) ForEachScene(sceneID uint64, fn func(*track.Track)) {
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, t := range sh.tracks {
			if t.SceneID == sceneID {
				fn(t)
			}
		}
		sh.mu.RUnlock()
	}
}

// MutateEachScene calls fn with every live track belonging to sceneID,
// holding that track's shard under a write lock. fn may mutate the track in
// place (e.g. Kalman predict).
func (s *Store) MutateEachScene(sceneID uint64, fn func(*track.Track)) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, t := range sh.tracks {
			if t.SceneID == sceneID {
				fn(t)
			}
		}
		sh.mu.Unlock()
	}
}

// SceneTracks returns a snapshot slice of every live track belonging to
// sceneID, one RLock pass per shard in ascending shard-index order.
func (s *Store) SceneTracks(sceneID uint64) []*track.Track {
	out := make([]*track.Track, 0)
	s.ForEachScene(sceneID, func(t *track.Track) {
		out = append(out, t)
	})
	return out
}

// CandidateScore is one (candidate_index, track) distance result surviving
// the compatibility/spatio-temporal gates.
type CandidateScore struct {
	CandidateIndex int
	Track          *track.Track
	Score          float32
}

// ScoreFunc computes the voting score for a (candidate, track) pair; it
// returns ok=false when the pair should be gated out (e.g. below a
// threshold), in which case score is ignored.
type ScoreFunc func(candidateIdx int, t *track.Track) (score float32, ok bool)

// FindBaseline computes, in parallel across shards, every surviving
// candidate x track score for tracks of sceneID. gate (if non-nil) is
// consulted first and short-circuits the (more expensive) score
// computation. Results from every shard are merged into one slice; order
// across shards is not significant since the caller keys by (candidate,
// track.ID).
func (s *Store) FindBaseline(ctx context.Context, sceneID uint64, nCandidates int, gate Gate, score ScoreFunc) ([]CandidateScore, error) {
	results := make([][]CandidateScore, len(s.shards))

	g, _ := errgroup.WithContext(ctx)
	for i, sh := range s.shards {
		i, sh := i, sh
		g.Go(func() error {
			sh.mu.RLock()
			defer sh.mu.RUnlock()

			local := make([]CandidateScore, 0)
			for _, t := range sh.tracks {
				if t.SceneID != sceneID {
					continue
				}
				for c := 0; c < nCandidates; c++ {
					if gate != nil && !gate(sceneID, c, t) {
						continue
					}
					sc, ok := score(c, t)
					if !ok {
						continue
					}
					local = append(local, CandidateScore{CandidateIndex: c, Track: t, Score: sc})
				}
			}
			results[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]CandidateScore, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

// Wasted drains and returns the accumulated wasted-track pool, clearing it.
func (s *Store) Wasted() []*track.Track {
	s.wasted.mu.Lock()
	defer s.wasted.mu.Unlock()
	out := s.wasted.tracks
	s.wasted.tracks = nil
	return out
}

// ClearWasted discards the wasted pool without returning its contents.
func (s *Store) ClearWasted() {
	s.wasted.mu.Lock()
	s.wasted.tracks = nil
	s.wasted.mu.Unlock()
}

// Waste moves a track from its shard into the wasted pool. Shard lock is
// released before the wasted-pool lock is acquired, per the store's lock
// ordering (shard locks, then wasted-pool lock).
func (s *Store) Waste(t *track.Track) {
	s.Remove(t.ID)
	s.wasted.mu.Lock()
	s.wasted.tracks = append(s.wasted.tracks, t)
	s.wasted.mu.Unlock()
}
