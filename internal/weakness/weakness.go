// Package weakness aggregates a user's evaluation history into a ranked
// weakness profile.
package weakness

import (
	"errors"
	"slices"
	"strings"

	"github.com/pavelanni/interviewer/internal/model"
)

// MaxSuggestions caps the suggested practice list.
const MaxSuggestions = 5

// ErrNoHistory is returned when there are no records to analyze. It lets
// callers tell "no history" apart from "no weaknesses found".
var ErrNoHistory = errors.New("no evaluation history")

// Analyze builds a profile from records. The result depends only on the
// order and content of records.
func Analyze(records []model.EvaluationRecord) (*model.WeaknessProfile, error) {
	if len(records) == 0 {
		return nil, ErrNoHistory
	}

	points := newCounter()
	aspects := newCounter()
	var suggestions []string
	seen := make(map[string]bool)

	for _, rec := range records {
		for _, kp := range model.Dedupe(rec.KnowledgePoints) {
			points.add(kp)
		}
		for _, wa := range model.Dedupe(rec.WeakAspects) {
			aspects.add(wa)
		}
		for _, s := range rec.ImprovementSuggestions {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			suggestions = append(suggestions, s)
		}
	}

	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}
	if suggestions == nil {
		suggestions = []string{}
	}

	return &model.WeaknessProfile{
		WeakKnowledgePoints: points.counts,
		WeakAspects:         aspects.counts,
		ImprovementPriority: aspects.ranked(),
		SuggestedPractice:   suggestions,
	}, nil
}

// counter tallies keys and remembers the order they were first seen.
type counter struct {
	counts map[string]int
	order  []string
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(key string) {
	if _, ok := c.counts[key]; !ok {
		c.order = append(c.order, key)
	}
	c.counts[key]++
}

// ranked returns keys by descending count, ties in first-seen order.
func (c *counter) ranked() []string {
	out := slices.Clone(c.order)
	if out == nil {
		return []string{}
	}
	slices.SortStableFunc(out, func(a, b string) int {
		return c.counts[b] - c.counts[a]
	})
	return out
}
