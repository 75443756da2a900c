package allocator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/pavelanni/examgen/internal/model"
)

// DefaultMaxAttempts bounds the number of draws tried for a single group.
const DefaultMaxAttempts = 100000

var (
	// ErrInvalidRequest is returned for non-positive group or question counts.
	ErrInvalidRequest = errors.New("invalid allocation request")
	// ErrInsufficientQuestions is returned when the pools hold fewer questions
	// than groups * questions per group. No group is produced.
	ErrInsufficientQuestions = errors.New("not enough questions")
	// ErrStarvedAllocation is returned when the remaining questions cannot fill a
	// group from distinct pools. Groups already handed to the sink stay written.
	ErrStarvedAllocation = errors.New("not enough distinct pools left")
)

// Sink receives every completed group, in group order.
type Sink interface {
	WriteGroup(g model.Group) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(g model.Group) error

func (f SinkFunc) WriteGroup(g model.Group) error { return f(g) }

// MultiSink hands each group to all of its sinks, stopping at the first error.
type MultiSink []Sink

func (m MultiSink) WriteGroup(g model.Group) error {
	for _, s := range m {
		if err := s.WriteGroup(g); err != nil {
			return err
		}
	}
	return nil
}

// Allocator draws file-diverse question groups without reusing any question.
type Allocator struct {
	rng         *rand.Rand
	maxAttempts int
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithMaxAttempts sets how many draws are tried per group before giving up.
// Values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// New creates an Allocator drawing from rng.
func New(rng *rand.Rand, opts ...Option) *Allocator {
	a := &Allocator{rng: rng, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate produces numGroups groups of perGroup questions each. Within a group
// every question comes from a different pool; across the run no question is
// used twice. Each group is passed to sink as soon as it is chosen; sink may be nil.
func (a *Allocator) Allocate(pools model.Pools, numGroups, perGroup int, sink Sink) ([]model.Group, error) {
	if numGroups < 1 || perGroup < 1 {
		return nil, fmt.Errorf("%w: %d group(s) of %d question(s)", ErrInvalidRequest, numGroups, perGroup)
	}

	total := pools.Total()
	// numGroups*perGroup may overflow int.
	if numGroups > total/perGroup {
		slog.Info("counted questions", "total", total, "groups", numGroups, "questions_per_group", perGroup)
		return nil, fmt.Errorf("%w: need %d group(s) of %d, found %d",
			ErrInsufficientQuestions, numGroups, perGroup, total)
	}
	slog.Info("counted questions", "total", total, "needed", numGroups*perGroup)

	available := availableIDs(pools)
	scratch := make([]int, len(available))
	groups := make([]model.Group, 0, numGroups)

	for groupID := 1; groupID <= numGroups; groupID++ {
		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.Debug("questions available for group",
				"group", groupID, "count", len(available), "ids", idsString(available))
		}

		if n := distinctPools(available); n < perGroup {
			return groups, fmt.Errorf("%w: group %d needs %d pool(s), %d left",
				ErrStarvedAllocation, groupID, perGroup, n)
		}

		picked, ok := a.draw(available, perGroup, scratch)
		if !ok {
			return groups, fmt.Errorf("%w: group %d, no distinct draw in %d attempts",
				ErrStarvedAllocation, groupID, a.maxAttempts)
		}

		g := model.Group{ID: groupID, Questions: make([]model.Question, 0, perGroup)}
		for _, pos := range picked {
			q, _ := pools.Question(available[pos])
			g.Questions = append(g.Questions, q)
		}
		available = without(available, picked)

		slog.Info("chose questions for group", "group", groupID, "ids", idsString(g.QuestionIDs()))

		if sink != nil {
			if err := sink.WriteGroup(g); err != nil {
				return groups, fmt.Errorf("write group %d: %w", groupID, err)
			}
		}
		groups = append(groups, g)
	}

	return groups, nil
}

// draw samples k positions of available uniformly without replacement until the
// sampled questions come from k different pools. Positions are in draw order.
func (a *Allocator) draw(available []model.QuestionID, k int, scratch []int) ([]int, bool) {
	n := len(available)
	seen := make(map[string]struct{}, k)
	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		idx := scratch[:n]
		for i := range idx {
			idx[i] = i
		}
		for i := 0; i < k; i++ {
			j := i + a.rng.IntN(n-i)
			idx[i], idx[j] = idx[j], idx[i]
		}

		clear(seen)
		for _, pos := range idx[:k] {
			seen[available[pos].PoolID] = struct{}{}
		}
		if len(seen) == k {
			picked := make([]int, k)
			copy(picked, idx[:k])
			return picked, true
		}
	}
	return nil, false
}

// availableIDs lists every question id, ordered by pool id then index, so that
// draws are reproducible for a given random source.
func availableIDs(pools model.Pools) []model.QuestionID {
	poolIDs := make([]string, 0, len(pools))
	for id := range pools {
		poolIDs = append(poolIDs, id)
	}
	sort.Strings(poolIDs)

	ids := make([]model.QuestionID, 0, pools.Total())
	for _, p := range poolIDs {
		for i := range pools[p] {
			ids = append(ids, model.QuestionID{PoolID: p, Index: i})
		}
	}
	return ids
}

func distinctPools(ids []model.QuestionID) int {
	seen := make(map[string]struct{})
	for _, id := range ids {
		seen[id.PoolID] = struct{}{}
	}
	return len(seen)
}

// without drops the given positions, keeping the order of the rest.
func without(ids []model.QuestionID, positions []int) []model.QuestionID {
	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		drop[p] = struct{}{}
	}
	out := ids[:0]
	for i, id := range ids {
		if _, ok := drop[i]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func idsString(ids []model.QuestionID) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = id.String()
	}
	sort.Strings(s)
	return strings.Join(s, ", ")
}
